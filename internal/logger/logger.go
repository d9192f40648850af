package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel 日志级别
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// Logger printf 风格的 zap 封装
type Logger struct {
	zapLogger *zap.Logger
}

// Options 日志输出配置
type Options struct {
	Level      string // debug, info, warn, error, fatal
	Output     string // stdout, stderr, file
	File       string // output 为 file 时的路径
	MaxSize    int    // 单个文件最大 MB
	MaxBackups int    // 保留旧文件数
	MaxAge     int    // 保留天数
	Compress   bool
}

var (
	mu            sync.RWMutex
	defaultLogger *Logger
)

func init() {
	l, err := New(Options{Level: "info", Output: "stdout"})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defaultLogger = l
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05"))
	}
	cfg.CallerKey = "caller"
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	cfg.LevelKey = "level"
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.MessageKey = "message"
	cfg.EncodeName = zapcore.FullNameEncoder
	return cfg
}

// New 按配置创建日志器，file 输出由 lumberjack 负责轮转
func New(opts Options) (*Logger, error) {
	level := zapLevelFromLogLevel(ParseLogLevel(opts.Level))

	var sink zapcore.WriteSyncer
	switch strings.ToLower(opts.Output) {
	case "", "stdout":
		sink = zapcore.Lock(os.Stdout)
	case "stderr":
		sink = zapcore.Lock(os.Stderr)
	case "file":
		if opts.File == "" {
			return nil, fmt.Errorf("log output is file but no file configured")
		}
		sink = zapcore.AddSync(newRotator(opts))
	default:
		return nil, fmt.Errorf("unsupported log output: %s", opts.Output)
	}

	encoder := zapcore.NewJSONEncoder(encoderConfig())
	if level == zapcore.DebugLevel {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}
	core := zapcore.NewCore(encoder, sink, zap.NewAtomicLevelAt(level))
	return &Logger{zapLogger: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2))}, nil
}

func newRotator(opts Options) *lumberjack.Logger {
	r := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSize,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAge,
		Compress:   opts.Compress,
	}
	if r.MaxSize == 0 {
		r.MaxSize = 100
	}
	if r.MaxBackups == 0 {
		r.MaxBackups = 3
	}
	if r.MaxAge == 0 {
		r.MaxAge = 28
	}
	return r
}

// NewWithCore 使用自定义 core 创建日志器，测试中用于捕获输出
func NewWithCore(core zapcore.Core) *Logger {
	return &Logger{zapLogger: zap.New(core, zap.AddCallerSkip(2))}
}

// Setup 按配置替换默认日志器
func Setup(opts Options) error {
	l, err := New(opts)
	if err != nil {
		return err
	}
	SetDefaultLogger(l)
	return nil
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.zapLogger.Debug(fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.zapLogger.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.zapLogger.Warn(fmt.Sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.zapLogger.Error(fmt.Sprintf(format, args...))
}

func (l *Logger) Fatal(format string, args ...interface{}) {
	l.zapLogger.Fatal(fmt.Sprintf(format, args...))
}

// Sync 刷新缓冲
func (l *Logger) Sync() {
	_ = l.zapLogger.Sync()
}

// SetDefaultLogger 设置默认日志器
func SetDefaultLogger(l *Logger) {
	mu.Lock()
	old := defaultLogger
	defaultLogger = l
	mu.Unlock()
	if old != nil {
		old.Sync()
	}
}

func current() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

func Debug(format string, args ...interface{}) {
	current().Debug(format, args...)
}

func Info(format string, args ...interface{}) {
	current().Info(format, args...)
}

func Warn(format string, args ...interface{}) {
	current().Warn(format, args...)
}

func Error(format string, args ...interface{}) {
	current().Error(format, args...)
}

func Fatal(format string, args ...interface{}) {
	current().Fatal(format, args...)
}

func Sync() {
	current().Sync()
}

// GetDefaultZapLogger 获取默认的 zap logger，供 gin 中间件使用
func GetDefaultZapLogger() *zap.Logger {
	return current().zapLogger
}

// ParseLogLevel 解析日志级别字符串
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "fatal":
		return FATAL
	default:
		return INFO
	}
}

func zapLevelFromLogLevel(level LogLevel) zapcore.Level {
	switch level {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

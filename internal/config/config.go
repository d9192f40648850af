package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/blues/cfs-escrow/internal/logger"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Clock    ClockConfig    `mapstructure:"clock"`
	Task     TaskConfig     `mapstructure:"task"`
	Reward   RewardConfig   `mapstructure:"reward"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, test, release
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // postgres, sqlite
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"` // sqlite 文件路径或 DSN
}

// ChainConfig 链相关配置
type ChainConfig struct {
	ChainType      string `mapstructure:"chain_type"`      // 链类型 (ethereum, polygon, etc.)
	ChainId        int64  `mapstructure:"chain_id"`        // 链ID
	RpcUrl         string `mapstructure:"rpc_url"`         // RPC节点URL，clock.source 为 chain 时必填
	FactoryAddress string `mapstructure:"factory_address"` // 活动地址派生用的工厂地址
}

// ClockConfig 时间来源
type ClockConfig struct {
	Source string `mapstructure:"source"` // system, manual, chain
}

type TaskConfig struct {
	Interval int `mapstructure:"interval"` // 秒
	Workers  int `mapstructure:"workers"`  // 协程池大小
}

// RewardConfig 贡献凭证配置
type RewardConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	MinAmount string `mapstructure:"min_amount"` // wei，十进制
}

type LogConfig struct {
	Level      string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output     string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File       string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// Options 转换为 logger 配置
func (l LogConfig) Options() logger.Options {
	return logger.Options{
		Level:      l.Level,
		Output:     l.Output,
		File:       l.File,
		MaxSize:    l.MaxSize,
		MaxBackups: l.MaxBackups,
		MaxAge:     l.MaxAge,
		Compress:   l.Compress,
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/cfs-escrow")

	// 设置默认值
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "crowdfunding")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "cfs-escrow.db")
	v.SetDefault("chain.chain_type", "ethereum")
	v.SetDefault("chain.chain_id", 1)
	v.SetDefault("chain.rpc_url", "")
	v.SetDefault("chain.factory_address", "0x00000000000000000000000000000000000cf5e5")
	v.SetDefault("clock.source", "system")
	v.SetDefault("task.interval", 60)
	v.SetDefault("task.workers", 8)
	v.SetDefault("reward.enabled", true)
	v.SetDefault("reward.min_amount", "0")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", true)

	// 环境变量覆盖，例如 CFS_DATABASE_DRIVER
	v.SetEnvPrefix("CFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadFile 从指定文件加载，path 为空时按默认路径搜索
func LoadFile(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		logger.Warn("Warning: Could not read config file: %v", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load 加载配置，失败直接退出
func Load() *Config {
	cfg, err := LoadFile("")
	if err != nil {
		logger.Fatal("Unable to load config: %v", err)
	}
	return cfg
}

// Validate 检查取值组合
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	switch c.Clock.Source {
	case "system", "manual":
	case "chain":
		if c.Chain.RpcUrl == "" {
			return fmt.Errorf("clock.source chain requires chain.rpc_url")
		}
	default:
		return fmt.Errorf("unsupported clock source: %s", c.Clock.Source)
	}
	if c.Task.Interval <= 0 {
		return fmt.Errorf("task.interval must be positive")
	}
	return nil
}

// IsRelease 是否生产模式
func (c *Config) IsRelease() bool {
	return c.Server.Mode == "release"
}

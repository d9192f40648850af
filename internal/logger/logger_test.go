package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestPackageHelpersUseDefaultLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := current()
	SetDefaultLogger(NewWithCore(core))
	t.Cleanup(func() { SetDefaultLogger(prev) })

	Info("campaign %s finalized", "0xabc")
	Debug("hidden")
	Warn("rejected: %v", "phase violation")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "campaign 0xabc finalized", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := New(Options{Level: "info", Output: "file", File: path})
	require.NoError(t, err)
	l.Info("hello %d", 1)
	l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello 1")
}

func TestNewRejectsBadOutput(t *testing.T) {
	_, err := New(Options{Output: "syslog"})
	require.Error(t, err)
	_, err = New(Options{Output: "file"})
	require.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLogLevel("DEBUG"))
	assert.Equal(t, WARN, ParseLogLevel("warning"))
	assert.Equal(t, INFO, ParseLogLevel("whatever"))
}

package logger

import (
	"bytes"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	SetOutput(buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })
	return buf
}

func TestSetOutput(t *testing.T) {
	buf := captureOutput(t)

	log := Logger("test/output")
	log.Info("test message", "key", "value")

	out := buf.String()
	assert.Contains(t, out, "test message")
	assert.Contains(t, out, "key=value")
	assert.Contains(t, out, "subsystem=test/output")
	assert.Contains(t, out, "level=info")
}

func TestSetOutput_ExistingLogger(t *testing.T) {
	// 切换输出前创建的 Logger 也要写到新目标
	log := Logger("test/existing")
	buf := captureOutput(t)

	log.Info("after switch")
	assert.Contains(t, buf.String(), "after switch")
}

func TestLogger_Cached(t *testing.T) {
	assert.Same(t, Logger("test/cached"), Logger("test/cached"))
}

func TestSetLevel(t *testing.T) {
	buf := captureOutput(t)

	log := Logger("test/level")
	SetLevel("test/level", slog.LevelWarn)
	log.Info("hidden")
	log.With("peer", "alice").Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "peer=alice")

	// 派生 Logger 共享级别
	derived := log.With("k", "v")
	SetLevel("test/level", slog.LevelDebug)
	derived.Debug("derived debug")
	assert.Contains(t, buf.String(), "derived debug")
}

func TestParseLevelConfig(t *testing.T) {
	cfg := &Config{DefaultLevel: slog.LevelInfo, SubsystemLevels: map[string]slog.Level{}}
	parseLevelConfig(cfg, "directory/store=debug, peer/control=warn ,error,bogus=loud")

	assert.Equal(t, slog.LevelError, cfg.DefaultLevel)
	assert.Equal(t, slog.LevelDebug, cfg.LevelForSubsystem("directory/store"))
	assert.Equal(t, slog.LevelWarn, cfg.LevelForSubsystem("peer/control"))
	assert.Equal(t, slog.LevelError, cfg.LevelForSubsystem("other"))
	_, ok := cfg.SubsystemLevels["bogus"]
	assert.False(t, ok)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogAddSource, "1")
	ResetConfig()
	t.Cleanup(ResetConfig)

	cfg := ConfigFromEnv()
	require.NotNil(t, cfg)
	assert.Equal(t, slog.LevelDebug, cfg.DefaultLevel)
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.True(t, cfg.AddSource)
}

func TestDiscard(t *testing.T) {
	buf := captureOutput(t)
	Discard().Error("never")
	assert.Empty(t, buf.String())
}

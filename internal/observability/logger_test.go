package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pagepilot/pagepilot/internal/config"
)

// setupTestLogger initializes the global logger to write into a buffer.
func setupTestLogger(cfg config.LoggerConfig) *bytes.Buffer {
	buf := new(bytes.Buffer)
	Initialize(cfg, zapcore.AddSync(buf))
	return buf
}

func TestInitialize_ConsoleWithColors(t *testing.T) {
	ResetForTest()

	cfg := config.LoggerConfig{
		Level:       "debug",
		Format:      "console",
		ServiceName: "test-console",
		Colors:      config.ColorConfig{Info: "green"},
	}
	buf := setupTestLogger(cfg)

	GetLogger().Info("console message")
	Sync()

	output := buf.String()
	assert.Contains(t, output, "INFO")
	assert.Contains(t, output, "console message")
	assert.Contains(t, output, colorGreen)
	assert.Contains(t, output, colorReset)
}

func TestInitialize_JSONFormat(t *testing.T) {
	ResetForTest()

	buf := setupTestLogger(config.LoggerConfig{
		Level:       "info",
		Format:      "json",
		ServiceName: "test-json",
	})

	GetLogger().Warn("structured message", zap.String("key", "value"))
	Sync()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log output should be valid JSON")
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "structured message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
}

func TestInitialize_LevelFiltering(t *testing.T) {
	ResetForTest()

	buf := setupTestLogger(config.LoggerConfig{
		Level:       "warn",
		Format:      "json",
		ServiceName: "test-level",
	})

	logger := GetLogger()
	logger.Debug("dropped")
	logger.Info("also dropped")
	logger.Warn("kept")
	Sync()

	output := buf.String()
	assert.NotContains(t, output, "dropped")
	assert.Contains(t, output, "kept")
}

func TestInitialize_BadLevelFallsBackToInfo(t *testing.T) {
	ResetForTest()

	buf := setupTestLogger(config.LoggerConfig{
		Level:       "chatty",
		Format:      "json",
		ServiceName: "test-fallback",
	})

	logger := GetLogger()
	logger.Debug("below info, dropped")
	logger.Info("at info, kept")
	Sync()

	assert.NotContains(t, buf.String(), "below info")
	assert.Contains(t, buf.String(), "at info, kept")
}

func TestInitialize_RunsOnlyOnce(t *testing.T) {
	ResetForTest()

	first := setupTestLogger(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "one"})
	second := setupTestLogger(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "two"})

	GetLogger().Info("message")
	Sync()

	assert.NotEmpty(t, first.String())
	assert.Empty(t, second.String())
}

func TestGetLogger_FallbackBeforeInit(t *testing.T) {
	ResetForTest()
	logger := GetLogger()
	require.NotNil(t, logger)
}

// internal/observability/logger_test.go
package observability

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/jakoleksy/ecobeectl/internal/config"
)

// memorySink is a WriteSyncer backed by a strings.Builder, letting tests
// inspect console output without touching os.Stdout.
type memorySink struct {
	strings.Builder
}

func (*memorySink) Sync() error { return nil }

func TestInitialize(t *testing.T) {
	t.Run("console format", func(t *testing.T) {
		ResetForTest()
		sink := &memorySink{}

		Initialize(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "test-service",
		}, zapcore.AddSync(sink))

		GetLogger().Info("hello from the test")
		out := sink.String()
		assert.Contains(t, out, "INFO")
		assert.Contains(t, out, "hello from the test")
		assert.Contains(t, out, "test-service.")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		ResetForTest()
		sink := &memorySink{}

		Initialize(config.LoggerConfig{
			Level:  "definitely-not-a-level",
			Format: "console",
		}, zapcore.AddSync(sink))

		GetLogger().Debug("should be suppressed")
		GetLogger().Info("should appear")
		out := sink.String()
		assert.NotContains(t, out, "should be suppressed")
		assert.Contains(t, out, "should appear")
	})

	t.Run("initialization happens exactly once", func(t *testing.T) {
		ResetForTest()
		first := &memorySink{}
		second := &memorySink{}

		Initialize(config.LoggerConfig{Level: "info", Format: "console"}, zapcore.AddSync(first))
		Initialize(config.LoggerConfig{Level: "info", Format: "console"}, zapcore.AddSync(second))

		GetLogger().Info("only once")
		assert.Contains(t, first.String(), "only once")
		assert.Empty(t, second.String())
	})

	t.Run("file core writes JSON", func(t *testing.T) {
		ResetForTest()
		logFile := filepath.Join(t.TempDir(), "ecobeectl.log")

		Initialize(config.LoggerConfig{
			Level:   "info",
			Format:  "console",
			LogFile: logFile,
			MaxSize: 1,
		}, zapcore.AddSync(&memorySink{}))

		GetLogger().Info("structured entry")
		Sync()

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)

		line := strings.TrimSpace(strings.SplitN(string(data), "\n", 2)[0])
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.Equal(t, "structured entry", entry["msg"])
		assert.Equal(t, "INFO", entry["level"])
	})
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	ResetForTest()
	logger := GetLogger()
	require.NotNil(t, logger)
	// The fallback must be usable even though Initialize never ran.
	logger.Info("fallback logger works")
}

package portal

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakoleksy/ecobeectl/internal/browser"
)

func TestRecorderCapture(t *testing.T) {
	t.Run("Names Artifact By Stage And Timestamp", func(t *testing.T) {
		cfg := testConfig(t)
		rec := NewRecorder(cfg, zap.NewNop())
		rec.now = func() time.Time { return time.Unix(1700000000, 0) }
		drv := newFakeDriver(&browser.Snapshot{}, testHomeURL)

		rec.Capture(context.Background(), drv, "login_username")

		data, err := os.ReadFile(cfg.Automation.ScreenshotsDir + "/login_username_1700000000.png")
		require.NoError(t, err)
		assert.Equal(t, []byte("png"), data)
	})

	t.Run("Disabled Recorder Never Touches The Driver", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Automation.ScreenshotOnError = false
		rec := NewRecorder(cfg, zap.NewNop())
		drv := newFakeDriver(&browser.Snapshot{}, testHomeURL)

		rec.Capture(context.Background(), drv, "login_username")
		assert.Zero(t, drv.screenshots)
	})

	t.Run("Capture Failure Is Swallowed", func(t *testing.T) {
		cfg := testConfig(t)
		rec := NewRecorder(cfg, zap.NewNop())
		drv := newFakeDriver(&browser.Snapshot{}, testHomeURL)
		drv.screenshotErr = errors.New("target crashed")

		rec.Capture(context.Background(), drv, "mode_change_error")

		entries, err := os.ReadDir(cfg.Automation.ScreenshotsDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

// internal/portal/diagnostics.go
package portal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/jakoleksy/ecobeectl/internal/config"
)

// screenshotter is the slice of the driver the recorder needs.
type screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// Recorder writes failure screenshots for offline diagnosis. Every capture is
// best effort: a recorder that cannot write its artifact logs the problem and
// moves on, it never turns a diagnostic into a second failure.
type Recorder struct {
	dir     string
	enabled bool
	logger  *zap.Logger
	now     func() time.Time
}

// NewRecorder builds a recorder honoring the screenshot-on-error switch.
func NewRecorder(cfg *config.Config, logger *zap.Logger) *Recorder {
	return &Recorder{
		dir:     cfg.Automation.ScreenshotsDir,
		enabled: cfg.Automation.ScreenshotOnError,
		logger:  logger.Named("recorder"),
		now:     time.Now,
	}
}

// Capture grabs a screenshot tagged with the failing stage and stores it as
// <stage>_<unix-timestamp>.png under the configured directory.
func (r *Recorder) Capture(ctx context.Context, src screenshotter, stage string) {
	if !r.enabled {
		return
	}

	buf, err := src.Screenshot(ctx)
	if err != nil {
		r.logger.Warn("Failed to capture diagnostic screenshot",
			zap.String("stage", stage), zap.Error(err))
		return
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		r.logger.Warn("Failed to create screenshot directory",
			zap.String("dir", r.dir), zap.Error(err))
		return
	}

	name := fmt.Sprintf("%s_%d.png", stage, r.now().Unix())
	path := filepath.Join(r.dir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		r.logger.Warn("Failed to write diagnostic screenshot",
			zap.String("path", path), zap.Error(err))
		return
	}

	r.logger.Info("Diagnostic screenshot saved",
		zap.String("stage", stage), zap.String("path", path))
}

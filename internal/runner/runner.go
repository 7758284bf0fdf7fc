// internal/runner/runner.go

// Package runner coordinates automation runs: one browser session per run,
// process-wide single-flight, a wall-clock ceiling, and guaranteed session
// teardown on every exit path.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/jakoleksy/ecobeectl/internal/browser"
	"github.com/jakoleksy/ecobeectl/internal/config"
	"github.com/jakoleksy/ecobeectl/internal/portal"
)

// ErrBusy is returned when a run is requested while another is in flight.
// Concurrent requests are rejected immediately, never queued.
var ErrBusy = errors.New("another automation run is in progress")

// OperationKind selects the high-level operation a run performs.
type OperationKind int

const (
	KindSetMode OperationKind = iota
	KindSetTemperature
	KindReadStatus
)

// Operation is one unit of work: a mode change or temperature change on a
// named device, or a status read.
type Operation struct {
	Kind        OperationKind
	Device      string
	Mode        string
	Temperature float64
}

// SetMode builds a mode-change operation.
func SetMode(device, mode string) Operation {
	return Operation{Kind: KindSetMode, Device: device, Mode: mode}
}

// SetTemperature builds a target-temperature operation.
func SetTemperature(device string, target float64) Operation {
	return Operation{Kind: KindSetTemperature, Device: device, Temperature: target}
}

// ReadStatus builds a status-read operation.
func ReadStatus() Operation {
	return Operation{Kind: KindReadStatus}
}

func (op Operation) String() string {
	switch op.Kind {
	case KindReadStatus:
		return "read-status"
	case KindSetTemperature:
		return fmt.Sprintf("set-temperature %s=%g", op.Device, op.Temperature)
	}
	return fmt.Sprintf("set-mode %s=%s", op.Device, op.Mode)
}

// Result is the outcome of a completed run. Failures inside a run land here
// with Success=false and a human-readable reason; only busy rejection and
// caller misuse surface as errors from Run.
type Result struct {
	Success  bool                  `json:"success"`
	Reason   string                `json:"reason,omitempty"`
	Status   *portal.HeatingStatus `json:"status,omitempty"`
	Duration time.Duration         `json:"duration"`
}

// engine is the slice of the portal engine the runner drives.
type engine interface {
	Login(ctx context.Context) error
	SetMode(ctx context.Context, device, mode string) error
	SetTemperature(ctx context.Context, device string, target float64) error
	ReadStatus(ctx context.Context) (*portal.HeatingStatus, error)
}

// engineFactory creates an engine scoped to one run along with its teardown.
// Injectable so tests run without a browser.
type engineFactory func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (engine, func(), error)

// Runner owns the single-flight gate and the session lifecycle.
type Runner struct {
	cfg       *config.Config
	logger    *zap.Logger
	gate      *semaphore.Weighted
	newEngine engineFactory
}

// New builds a runner that launches a real browser session per run.
func New(cfg *config.Config, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:       cfg,
		logger:    logger.Named("runner"),
		gate:      semaphore.NewWeighted(1),
		newEngine: launchEngine,
	}
}

func launchEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger) (engine, func(), error) {
	sess, err := browser.NewSession(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("browser session: %w", err)
	}
	drv := portal.NewSessionDriver(sess, logger)
	eng := portal.NewEngine(drv, cfg, logger, portal.NewRecorder(cfg, logger))
	return eng, sess.Close, nil
}

// Run executes one operation end to end: acquire the gate, create the
// session, log in, dispatch, tear down. A second concurrent call receives
// ErrBusy immediately. The whole run is bounded by the configured ceiling;
// exceeding it is a timeout failure, not a partial result.
func (r *Runner) Run(ctx context.Context, op Operation) (*Result, error) {
	if err := r.validate(op); err != nil {
		return nil, err
	}

	if !r.gate.TryAcquire(1) {
		r.logger.Warn("Run rejected, another run is in flight",
			zap.String("operation", op.String()))
		return nil, ErrBusy
	}
	defer r.gate.Release(1)

	if err := r.cfg.RequireCredentials(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Automation.RunTimeout)
	defer cancel()

	start := time.Now()
	r.logger.Info("Run starting", zap.String("operation", op.String()))

	result := r.execute(runCtx, op)
	result.Duration = time.Since(start)

	if result.Success {
		r.logger.Info("Run complete",
			zap.String("operation", op.String()),
			zap.Duration("duration", result.Duration))
	} else {
		r.logger.Error("Run failed",
			zap.String("operation", op.String()),
			zap.String("reason", result.Reason),
			zap.Duration("duration", result.Duration))
	}
	return result, nil
}

// validate rejects caller misuse before any browser resource is touched.
func (r *Runner) validate(op Operation) error {
	switch op.Kind {
	case KindReadStatus:
		return nil
	case KindSetMode:
		if !r.cfg.KnownDevice(op.Device) {
			return fmt.Errorf("%w: %q", portal.ErrUnknownDevice, op.Device)
		}
		if !r.cfg.KnownMode(op.Mode) {
			return fmt.Errorf("%w: %q", portal.ErrUnknownMode, op.Mode)
		}
		return nil
	case KindSetTemperature:
		if !r.cfg.KnownDevice(op.Device) {
			return fmt.Errorf("%w: %q", portal.ErrUnknownDevice, op.Device)
		}
		return nil
	}
	return fmt.Errorf("unknown operation kind %d", op.Kind)
}

func (r *Runner) execute(ctx context.Context, op Operation) *Result {
	eng, teardown, err := r.newEngine(ctx, r.cfg, r.logger)
	if err != nil {
		return &Result{Reason: reasonFor(ctx, err)}
	}
	defer teardown()

	if err := eng.Login(ctx); err != nil {
		return &Result{Reason: reasonFor(ctx, err)}
	}

	switch op.Kind {
	case KindReadStatus:
		status, err := eng.ReadStatus(ctx)
		if err != nil {
			return &Result{Reason: reasonFor(ctx, err)}
		}
		return &Result{Success: true, Status: status}
	case KindSetTemperature:
		if err := eng.SetTemperature(ctx, op.Device, op.Temperature); err != nil {
			return &Result{Reason: reasonFor(ctx, err)}
		}
		return &Result{Success: true}
	default:
		if err := eng.SetMode(ctx, op.Device, op.Mode); err != nil {
			return &Result{Reason: reasonFor(ctx, err)}
		}
		return &Result{Success: true}
	}
}

// reasonFor folds a deadline hit into an explicit timeout reason.
func reasonFor(ctx context.Context, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("run exceeded time ceiling: %v", err)
	}
	return err.Error()
}

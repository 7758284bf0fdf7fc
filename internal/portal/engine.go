// internal/portal/engine.go

// Package portal drives the thermostat web portal: authentication, device
// selection, mode changes and status reads, all built on heuristic element
// location because the portal's markup is not stable across releases.
package portal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jakoleksy/ecobeectl/internal/browser"
	"github.com/jakoleksy/ecobeectl/internal/config"
)

var (
	// ErrUnknownDevice reports a device name outside the configured set.
	// This is caller misuse, rejected before any browser interaction.
	ErrUnknownDevice = errors.New("unknown device")
	// ErrUnknownMode reports a mode label outside the configured set.
	ErrUnknownMode = errors.New("unknown mode")
	// ErrLoginFailed reports an authentication handshake that did not
	// verifiably complete.
	ErrLoginFailed = errors.New("login failed")
)

// Driver is the page-interaction surface the engine runs on. The real
// implementation wraps a browser session; tests substitute a scripted fake so
// the state machines run against synthetic pages.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	Find(ctx context.Context, q browser.Query, timeout time.Duration) (*browser.Element, bool, error)
	Click(ctx context.Context, selector string) error
	ScriptClick(ctx context.Context, selector string) error
	ParentClick(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	Settle(ctx context.Context, d time.Duration) error
	Snapshot(ctx context.Context) (*browser.Snapshot, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// sessionDriver adapts a live browser session plus its locator to the Driver
// interface.
type sessionDriver struct {
	*browser.Session
	locator *browser.Locator
}

// NewSessionDriver wraps a live session as an engine driver.
func NewSessionDriver(s *browser.Session, logger *zap.Logger) Driver {
	return &sessionDriver{
		Session: s,
		locator: browser.NewLocator(s, logger),
	}
}

func (d *sessionDriver) Find(ctx context.Context, q browser.Query, timeout time.Duration) (*browser.Element, bool, error) {
	return d.locator.Find(ctx, q, timeout)
}

func (d *sessionDriver) ParentClick(ctx context.Context, selector string) error {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el || !el.parentElement) { return false; }
		el.parentElement.click();
		return true;
	})()`, selector)
	var clicked bool
	if err := d.Evaluate(ctx, script, &clicked); err != nil {
		return fmt.Errorf("parent click on %q: %w", selector, err)
	}
	if !clicked {
		return fmt.Errorf("parent click on %q: no such element", selector)
	}
	return nil
}

// Engine sequences the portal operations for one run. It owns no browser
// resources itself; the coordinator hands it a driver scoped to the run.
type Engine struct {
	drv      Driver
	cfg      *config.Config
	logger   *zap.Logger
	recorder *Recorder
}

// NewEngine builds an engine over a driver.
func NewEngine(drv Driver, cfg *config.Config, logger *zap.Logger, recorder *Recorder) *Engine {
	return &Engine{
		drv:      drv,
		cfg:      cfg,
		logger:   logger.Named("portal"),
		recorder: recorder,
	}
}

// Login runs the authentication handshake to a verified landing or a failure.
func (e *Engine) Login(ctx context.Context) error {
	m := newLoginMachine(e.drv, e.cfg, e.logger, e.recorder)
	if err := m.Run(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	return nil
}

// activate clicks an element, falling back to a script-level click when the
// direct click is intercepted by an overlay or the element is not natively
// clickable.
func (e *Engine) activate(ctx context.Context, selector string) error {
	if err := e.drv.Click(ctx, selector); err == nil {
		return nil
	}
	return e.drv.ScriptClick(ctx, selector)
}

// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakoleksy/ecobeectl/internal/config"
)

// Session owns one browser process/tab pair for the duration of a single
// automation run. It is exclusive: sessions are never shared across runs, and
// Close must execute on every exit path.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	allocCancel context.CancelFunc

	logger *zap.Logger
	cfg    *config.Config

	mu       sync.Mutex
	isClosed bool
}

// NewSession launches a browser process and attaches a fresh tab to it.
// The caller owns the returned session and must Close it.
func NewSession(parent context.Context, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	sessionID := uuid.New().String()

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, execOptions(cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		id:          sessionID,
		ctx:         tabCtx,
		cancel:      tabCancel,
		allocCancel: allocCancel,
		logger:      logger.Named("session").With(zap.String("session_id", sessionID)),
		cfg:         cfg,
	}

	// Force the target (tab) into existence so a broken browser install
	// surfaces here instead of in the middle of a run.
	startCtx, startCancel := context.WithTimeout(tabCtx, cfg.Browser.PageLoadTimeout)
	defer startCancel()
	if err := chromedp.Run(startCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}

	s.logger.Info("Browser session started", zap.Bool("headless", cfg.Browser.Headless))
	return s, nil
}

// execOptions translates the application config into chromedp allocator options.
func execOptions(cfg *config.Config) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(cfg.Browser.WindowWidth, cfg.Browser.WindowHeight),
	)

	if cfg.Browser.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.Browser.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.Browser.DisableGPU {
		opts = append(opts, chromedp.DisableGPU)
	}
	if cfg.Browser.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.Browser.UserAgent))
	}

	// Additional flags from the config file's 'args' slice.
	for _, arg := range cfg.Browser.Args {
		arg = strings.TrimPrefix(arg, "--")
		if key, value, found := strings.Cut(arg, "="); found {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(arg, true))
		}
	}
	return opts
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

// Navigate loads the given URL and waits for the document body to be ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating", zap.String("url", url))

	navCtx, cancel := s.combined(ctx, s.cfg.Browser.PageLoadTimeout)
	defer cancel()

	if err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("navigation to %s timed out after %s: %w", url, s.cfg.Browser.PageLoadTimeout, err)
		}
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Location returns the URL currently displayed in the tab.
func (s *Session) Location(ctx context.Context) (string, error) {
	var url string
	if err := s.run(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to read current location: %w", err)
	}
	return url, nil
}

// Click dispatches a native click to the element matching the selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	s.logger.Debug("Clicking element", zap.String("selector", selector))
	if err := s.run(ctx,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("click failed for selector %q: %w", selector, err)
	}
	return nil
}

// ScriptClick invokes the element's click handler from JavaScript. Unlike a
// native click this is not intercepted by overlays or scroll state, which the
// portal's interstitial banners routinely cause.
func (s *Session) ScriptClick(ctx context.Context, selector string) error {
	s.logger.Debug("Script-clicking element", zap.String("selector", selector))
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) { return false; }
		el.click();
		return true;
	})()`, selector)

	var clicked bool
	if err := s.Evaluate(ctx, script, &clicked); err != nil {
		return fmt.Errorf("script click failed for selector %q: %w", selector, err)
	}
	if !clicked {
		return fmt.Errorf("script click: no element matches selector %q", selector)
	}
	return nil
}

// Fill clears the element matching the selector and types the given text.
func (s *Session) Fill(ctx context.Context, selector, text string) error {
	s.logger.Debug("Filling element", zap.String("selector", selector))
	if err := s.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("fill failed for selector %q: %w", selector, err)
	}
	return nil
}

// Evaluate runs a snippet of JavaScript in the current document and
// optionally unmarshals the result into res.
func (s *Session) Evaluate(ctx context.Context, script string, res interface{}) error {
	return s.run(ctx, chromedp.Evaluate(script, res))
}

// Settle pauses for the given duration to let an asynchronous re-render
// finish before the next read or action.
func (s *Session) Settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return s.run(ctx, chromedp.Sleep(d))
}

// Screenshot captures the current viewport as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().Do(c)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("screenshot capture failed: %w", err)
	}
	return buf, nil
}

// Close tears down the tab and the browser process. Safe to call multiple
// times and on partially constructed sessions.
func (s *Session) Close() {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session")
	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}

// run executes chromedp actions, ensuring they respect both the session
// lifetime (s.ctx) and the incoming operation context.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// combined derives a context bounded by the session lifetime, the caller's
// context, and a timeout.
func (s *Session) combined(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	combined, cancel := CombineContext(s.ctx, ctx)
	if timeout <= 0 {
		return combined, cancel
	}
	timed, timedCancel := context.WithTimeout(combined, timeout)
	return timed, func() {
		timedCancel()
		cancel()
	}
}

// CombineContext creates a new context that is canceled when either parentCtx
// or secondaryCtx is canceled.
func CombineContext(parentCtx, secondaryCtx context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(parentCtx)

	go func() {
		select {
		case <-secondaryCtx.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}

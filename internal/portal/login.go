// internal/portal/login.go
package portal

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jakoleksy/ecobeectl/internal/browser"
	"github.com/jakoleksy/ecobeectl/internal/config"
)

// loginState enumerates the stages of the authentication handshake. The
// portal serves either a single form with both fields or a two-step flow
// where the password renders only after a continue control; the machine
// discovers which at run time.
type loginState int

const (
	stateStart loginState = iota
	stateUsernameFilled
	statePasswordVisible
	stateContinueRequired
	statePasswordFilled
	stateSubmitted
	stateVerified
	stateSuspect
)

func (s loginState) String() string {
	switch s {
	case stateStart:
		return "start"
	case stateUsernameFilled:
		return "username_filled"
	case statePasswordVisible:
		return "password_visible"
	case stateContinueRequired:
		return "continue_required"
	case statePasswordFilled:
		return "password_filled"
	case stateSubmitted:
		return "submitted"
	case stateVerified:
		return "verified"
	case stateSuspect:
		return "suspect"
	}
	return "unknown"
}

// loginMachine walks the handshake state by state. Every stage that cannot
// locate its element within its timeout aborts the machine with a
// stage-tagged screenshot; the machine never assumes success.
type loginMachine struct {
	drv      Driver
	cfg      *config.Config
	logger   *zap.Logger
	recorder *Recorder
	trace    []loginState
}

func newLoginMachine(drv Driver, cfg *config.Config, logger *zap.Logger, recorder *Recorder) *loginMachine {
	return &loginMachine{
		drv:      drv,
		cfg:      cfg,
		logger:   logger.Named("login"),
		recorder: recorder,
		trace:    []loginState{stateStart},
	}
}

func (m *loginMachine) enter(s loginState) {
	m.trace = append(m.trace, s)
	m.logger.Debug("Login state transition", zap.Stringer("state", s))
}

// branchProbe is the short timeout used to decide between the single-step
// and two-step branches. The post-continue password wait must be strictly
// longer, since a full page transition may be in flight.
func (m *loginMachine) branchProbe() time.Duration {
	return m.cfg.Browser.ImplicitWait / 4
}

func (m *loginMachine) extendedWait() time.Duration {
	return 2 * m.cfg.Browser.ImplicitWait
}

func (m *loginMachine) fail(ctx context.Context, stage, reason string) error {
	m.logger.Error("Login stage failed",
		zap.String("stage", stage), zap.String("reason", reason))
	m.recorder.Capture(ctx, m.drv, "login_"+stage)
	return fmt.Errorf("%s: %s", stage, reason)
}

// Run drives the machine from start to verified or a terminal failure.
func (m *loginMachine) Run(ctx context.Context) error {
	if err := m.drv.Navigate(ctx, m.cfg.Portal.LoginURL); err != nil {
		return m.fail(ctx, "navigate", err.Error())
	}

	wait := m.cfg.Browser.ImplicitWait
	delay := m.cfg.Automation.Delay

	user, ok, err := m.drv.Find(ctx, browser.ForRole(browser.RoleUsername), wait)
	if err != nil {
		return fmt.Errorf("username lookup: %w", err)
	}
	if !ok {
		return m.fail(ctx, "username", "username field not found")
	}
	if err := m.drv.Fill(ctx, user.Selector, m.cfg.Portal.Username); err != nil {
		return m.fail(ctx, "username", err.Error())
	}
	m.drv.Settle(ctx, delay)
	m.enter(stateUsernameFilled)

	// Branch detection: a short probe for the password field decides
	// between the single-step and two-step forms.
	password, ok, err := m.drv.Find(ctx, browser.ForRole(browser.RolePassword), m.branchProbe())
	if err != nil {
		return fmt.Errorf("password probe: %w", err)
	}
	if ok && password.Visible {
		m.enter(statePasswordVisible)
	} else {
		m.enter(stateContinueRequired)
		password, err = m.passThroughContinue(ctx)
		if err != nil {
			return err
		}
		m.enter(statePasswordVisible)
	}

	if err := m.drv.Fill(ctx, password.Selector, m.cfg.Portal.Password); err != nil {
		return m.fail(ctx, "password", err.Error())
	}
	m.enter(statePasswordFilled)
	m.drv.Settle(ctx, delay)

	submit, ok, err := m.drv.Find(ctx, browser.ForRole(browser.RoleSubmit), wait)
	if err != nil {
		return fmt.Errorf("submit lookup: %w", err)
	}
	if !ok {
		return m.fail(ctx, "submit", "submit control not found")
	}
	if err := m.drv.Click(ctx, submit.Selector); err != nil {
		if err := m.drv.ScriptClick(ctx, submit.Selector); err != nil {
			return m.fail(ctx, "submit", err.Error())
		}
	}
	m.enter(stateSubmitted)
	m.drv.Settle(ctx, delay)

	return m.verify(ctx)
}

// passThroughContinue handles the two-step branch: a script-level click on
// the continue control (direct clicks are frequently intercepted by the
// portal's overlays), then an extended wait for the password field.
func (m *loginMachine) passThroughContinue(ctx context.Context) (*browser.Element, error) {
	wait := m.cfg.Browser.ImplicitWait

	cont, ok, err := m.drv.Find(ctx, browser.ForRole(browser.RoleContinue), wait)
	if err != nil {
		return nil, fmt.Errorf("continue lookup: %w", err)
	}
	if !ok {
		// Some portal revisions label the step-one control like a
		// plain submit.
		cont, ok, err = m.drv.Find(ctx, browser.ForRole(browser.RoleSubmit), wait)
		if err != nil {
			return nil, fmt.Errorf("continue lookup: %w", err)
		}
		if !ok {
			return nil, m.fail(ctx, "continue", "continue control not found")
		}
	}
	if err := m.drv.ScriptClick(ctx, cont.Selector); err != nil {
		return nil, m.fail(ctx, "continue", err.Error())
	}
	m.drv.Settle(ctx, m.cfg.Automation.Delay)

	password, ok, err := m.drv.Find(ctx, browser.ForRole(browser.RolePassword), m.extendedWait())
	if err != nil {
		return nil, fmt.Errorf("password lookup: %w", err)
	}
	if !ok {
		return nil, m.fail(ctx, "password", "password field did not render after continue")
	}
	return password, nil
}

// verify inspects the landing location. Remaining on the authentication host
// marks the run suspect; one bounded grace wait is allowed because the portal
// sometimes lags the redirect, after which the outcome is terminal.
func (m *loginMachine) verify(ctx context.Context) error {
	loc, err := m.drv.Location(ctx)
	if err != nil {
		return fmt.Errorf("location read: %w", err)
	}
	if !m.onAuthPage(loc) {
		m.enter(stateVerified)
		m.logger.Info("Login verified", zap.String("location", loc))
		return nil
	}

	m.enter(stateSuspect)
	m.logger.Warn("Login redirect not yet observed, allowing grace period",
		zap.String("location", loc))
	m.recorder.Capture(ctx, m.drv, "login_suspect")
	m.drv.Settle(ctx, m.cfg.Automation.GraceWait)

	loc, err = m.drv.Location(ctx)
	if err != nil {
		return fmt.Errorf("location read: %w", err)
	}
	if m.onAuthPage(loc) {
		return m.fail(ctx, "verify", "still on authentication page after grace period")
	}
	m.enter(stateVerified)
	m.logger.Info("Login verified after grace period", zap.String("location", loc))
	return nil
}

// onAuthPage reports whether loc still belongs to the authentication flow:
// the login page itself or any host that looks like an auth frontend.
func (m *loginMachine) onAuthPage(loc string) bool {
	u, err := url.Parse(loc)
	if err != nil {
		return true
	}
	login, err := url.Parse(m.cfg.Portal.LoginURL)
	if err != nil {
		return false
	}
	if strings.Contains(strings.ToLower(u.Host), "auth") {
		return true
	}
	return u.Host == login.Host && strings.HasPrefix(u.Path, login.Path)
}

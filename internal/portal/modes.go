// internal/portal/modes.go
package portal

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jakoleksy/ecobeectl/internal/browser"
)

// pageDumpLimit caps the page-structure dump emitted on mode-change failure.
const pageDumpLimit = 25

// modeSynonyms returns the text variants accepted for a mode label. The
// portal renders the auxiliary mode as "Auxiliary Heat" on some revisions,
// so "aux" is widened.
func modeSynonyms(mode string) []string {
	syn := []string{mode}
	if strings.EqualFold(mode, "aux") {
		syn = append(syn, "auxiliary")
	}
	return syn
}

// findModeControl searches a snapshot for a control matching the mode label:
// label elements first, then any visible element carrying the text. The
// returned strategy name distinguishes the two paths.
func findModeControl(snap *browser.Snapshot, mode string) (*browser.Element, string, bool) {
	synonyms := modeSynonyms(mode)

	for i := range snap.Elements {
		el := &snap.Elements[i]
		if el.Tag != "label" || !el.Visible {
			continue
		}
		for _, syn := range synonyms {
			if containsFold(el.Text, strings.ToLower(syn)) {
				return el, "label", true
			}
		}
	}

	for _, syn := range synonyms {
		if el, _, ok := browser.CascadeFind(snap, browser.ForText(syn)); ok {
			return el, "free-text", true
		}
	}

	return nil, "", false
}

// SetMode selects the named device and activates the named operating mode on
// it. The mode and device must belong to the configured sets; anything else
// is rejected before the browser is touched. Success is optimistic: the
// portal saves asynchronously without acknowledgment, so the engine reports
// success once an activation lands and an extended settle has elapsed.
func (e *Engine) SetMode(ctx context.Context, device, mode string) error {
	if !e.cfg.KnownDevice(device) {
		return fmt.Errorf("%w: %q", ErrUnknownDevice, device)
	}
	if !e.cfg.KnownMode(mode) {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	e.logger.Info("Setting mode",
		zap.String("device", device), zap.String("mode", mode))

	selected, err := e.selectDevice(ctx, device)
	if err != nil {
		return fmt.Errorf("device selection: %w", err)
	}
	if !selected {
		e.recorder.Capture(ctx, e.drv, "mode_change_error")
		return fmt.Errorf("device %q not found on devices page", device)
	}

	// The mode options live under the device's "system" control surface.
	// A missing surface is not terminal, the options are sometimes
	// rendered inline.
	if surface, ok, err := e.drv.Find(ctx, browser.ForText("system"), e.cfg.Browser.ImplicitWait); err != nil {
		return fmt.Errorf("system surface lookup: %w", err)
	} else if ok {
		if err := e.activate(ctx, surface.Selector); err != nil {
			e.logger.Warn("System surface activation failed", zap.Error(err))
		} else {
			e.drv.Settle(ctx, e.cfg.Automation.Delay)
		}
	} else {
		e.logger.Warn("System control surface not found, searching mode controls directly")
	}

	snap, err := e.drv.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("page snapshot: %w", err)
	}

	el, strat, ok := findModeControl(snap, mode)
	if !ok {
		e.logger.Error("No control found for mode",
			zap.String("device", device), zap.String("mode", mode))
		e.recorder.Capture(ctx, e.drv, "mode_change_error")
		e.dumpPageStructure(snap)
		return fmt.Errorf("no control found for mode %q", mode)
	}

	e.logger.Info("Mode control located",
		zap.String("mode", mode),
		zap.String("strategy", strat),
		zap.String("selector", el.Selector))

	if err := e.activateModeControl(ctx, el); err != nil {
		e.recorder.Capture(ctx, e.drv, "mode_change_error")
		e.dumpPageStructure(snap)
		return fmt.Errorf("mode activation: %w", err)
	}

	// The portal's save is asynchronous and unacknowledged; the extended
	// settle gives it time to fire before the session is torn down.
	e.drv.Settle(ctx, 2*e.cfg.Automation.Delay)
	e.logger.Info("Mode change submitted",
		zap.String("device", device), zap.String("mode", mode))
	return nil
}

// activateModeControl clicks the matched control. When a label click does
// not register, the label's linked input is resolved through its declared
// linkage and activated instead.
func (e *Engine) activateModeControl(ctx context.Context, el *browser.Element) error {
	err := e.activate(ctx, el.Selector)
	if err == nil {
		return nil
	}
	if el.Tag == "label" && el.For != "" {
		return e.activate(ctx, "#"+el.For)
	}
	return err
}

// dumpPageStructure logs a bounded sample of the page's interactive elements
// for offline troubleshooting of a failed mode change.
func (e *Engine) dumpPageStructure(snap *browser.Snapshot) {
	logged := 0
	for i := range snap.Elements {
		el := &snap.Elements[i]
		if !el.Visible {
			continue
		}
		switch el.Tag {
		case "input", "button", "label", "select", "a":
		default:
			continue
		}
		e.logger.Debug("Page element",
			zap.String("tag", el.Tag),
			zap.String("type", el.Type),
			zap.String("name", el.Name),
			zap.String("id", el.ID),
			zap.String("class", el.ClassName),
			zap.String("text", el.Text))
		logged++
		if logged >= pageDumpLimit {
			return
		}
	}
}

// internal/portal/devices.go
package portal

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jakoleksy/ecobeectl/internal/browser"
)

// cardClassHints are the class-name fragments that mark device tiles in the
// portal's device list markup.
var cardClassHints = []string{"card", "device", "thermostat"}

// deviceCandidate searches a snapshot for the tile of a named device through
// three strategies in fixed order: anchors whose text contains the name, any
// visible element whose text contains the name, and finally elements whose
// class names look like a device card. First success wins; a visible anchor
// match never falls through to the later strategies.
//
// Snapshots are harvested in document order, so an ancestor wrapper carries
// the device name in its text before the tile does. The any-visible strategy
// therefore prefers an element whose own text equals the name, then the
// shortest containing text, which selects the deepest node.
func deviceCandidate(snap *browser.Snapshot, name string) (*browser.Element, string, bool) {
	target := strings.ToLower(strings.TrimSpace(name))

	for i := range snap.Elements {
		el := &snap.Elements[i]
		if el.Tag == "a" && el.Visible && containsFold(el.Text, target) {
			return el, "anchor", true
		}
	}

	var best *browser.Element
	for i := range snap.Elements {
		el := &snap.Elements[i]
		if !el.Visible || !containsFold(el.Text, target) {
			continue
		}
		if strings.ToLower(strings.TrimSpace(el.Text)) == target {
			return el, "any-visible", true
		}
		if best == nil || len(el.Text) < len(best.Text) {
			best = el
		}
	}
	if best != nil {
		return best, "any-visible", true
	}

	for i := range snap.Elements {
		el := &snap.Elements[i]
		if !containsFold(el.Text, target) {
			continue
		}
		class := strings.ToLower(el.ClassName)
		for _, hint := range cardClassHints {
			if strings.Contains(class, hint) {
				return el, "card-class", true
			}
		}
	}

	return nil, "", false
}

func containsFold(text, loweredTarget string) bool {
	return strings.Contains(strings.ToLower(text), loweredTarget)
}

// selectDevice finds and activates the named device's tile, polling for it
// up to the implicit wait since the device list renders asynchronously. Each
// successful click is followed by a settle delay for the re-render. A false
// return is a normal miss; the caller owns the diagnostic capture.
func (e *Engine) selectDevice(ctx context.Context, name string) (bool, error) {
	deadline := time.Now().Add(e.cfg.Browser.ImplicitWait)

	for {
		snap, err := e.drv.Snapshot(ctx)
		if err != nil {
			return false, err
		}

		if el, strat, ok := deviceCandidate(snap, name); ok {
			e.logger.Info("Device located",
				zap.String("device", name),
				zap.String("strategy", strat),
				zap.String("selector", el.Selector))
			if err := e.activateDevice(ctx, el); err != nil {
				e.logger.Warn("Device activation failed",
					zap.String("device", name), zap.Error(err))
				return false, nil
			}
			e.drv.Settle(ctx, e.cfg.Automation.Delay)
			return true, nil
		}

		if time.Now().After(deadline) {
			e.logger.Warn("Device not found on page", zap.String("device", name))
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

// activateDevice clicks the matched element, then its script-level click,
// then its immediate parent. Device names often sit on bare text nodes whose
// parent is the real click target.
func (e *Engine) activateDevice(ctx context.Context, el *browser.Element) error {
	if err := e.drv.Click(ctx, el.Selector); err == nil {
		return nil
	}
	if err := e.drv.ScriptClick(ctx, el.Selector); err == nil {
		return nil
	}
	return e.drv.ParentClick(ctx, el.Selector)
}

// internal/portal/temperature.go
package portal

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jakoleksy/ecobeectl/internal/browser"
)

// stepDelay paces the clicks on the temperature stepper; the portal animates
// each increment.
const stepDelay = 500 * time.Millisecond

// tempDeadband is the difference below which the displayed target is
// considered already at the requested temperature.
const tempDeadband = 0.5

// findStepButton locates the temperature stepper control for the given
// direction by its identifying attributes.
func findStepButton(snap *browser.Snapshot, up bool) (*browser.Element, bool) {
	hints := []string{"temp-up", "temp_up", "increase", "arrow-up"}
	if !up {
		hints = []string{"temp-down", "temp_down", "decrease", "arrow-down"}
	}
	for i := range snap.Elements {
		el := &snap.Elements[i]
		if !el.Visible || !el.Enabled {
			continue
		}
		ident := strings.ToLower(el.ClassName + " " + el.ID + " " + el.AriaLabel)
		for _, hint := range hints {
			if strings.Contains(ident, hint) {
				return el, true
			}
		}
	}
	return nil, false
}

// findSaveControl locates the save control, if the portal revision has one.
// Some revisions auto-save, so a miss is a normal outcome.
func findSaveControl(snap *browser.Snapshot) (*browser.Element, bool) {
	for i := range snap.Elements {
		el := &snap.Elements[i]
		if !el.Visible || !el.Enabled {
			continue
		}
		ident := strings.ToLower(el.ClassName + " " + el.ID + " " + el.AriaLabel)
		if strings.Contains(ident, "save") || containsFold(el.Text, "save") {
			return el, true
		}
	}
	return nil, false
}

// SetTemperature steps the named device's target temperature to the
// requested value: read the displayed target, click the up or down stepper
// once per whole degree of difference, then save if a save control exists.
// Like SetMode, success is optimistic once the clicks and save have landed.
func (e *Engine) SetTemperature(ctx context.Context, device string, target float64) error {
	if !e.cfg.KnownDevice(device) {
		return fmt.Errorf("%w: %q", ErrUnknownDevice, device)
	}

	e.logger.Info("Setting target temperature",
		zap.String("device", device), zap.Float64("target", target))

	selected, err := e.selectDevice(ctx, device)
	if err != nil {
		return fmt.Errorf("device selection: %w", err)
	}
	if !selected {
		e.recorder.Capture(ctx, e.drv, "temp_change_error")
		return fmt.Errorf("device %q not found on devices page", device)
	}

	snap, err := e.drv.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("page snapshot: %w", err)
	}

	current, ok := readTemperature(snap, targetTempHints)
	if !ok {
		e.recorder.Capture(ctx, e.drv, "temp_change_error")
		return fmt.Errorf("current target temperature not readable")
	}

	diff := target - current
	if math.Abs(diff) < tempDeadband {
		e.logger.Info("Target temperature already set",
			zap.Float64("target", target))
		return nil
	}

	button, ok := findStepButton(snap, diff > 0)
	if !ok {
		e.logger.Error("Temperature stepper not found",
			zap.String("device", device), zap.Float64("target", target))
		e.recorder.Capture(ctx, e.drv, "temp_change_error")
		e.dumpPageStructure(snap)
		return fmt.Errorf("temperature stepper not found")
	}

	clicks := int(math.Trunc(math.Abs(diff)))
	e.logger.Info("Stepping temperature",
		zap.Float64("from", current),
		zap.Float64("to", target),
		zap.Int("clicks", clicks))
	for i := 0; i < clicks; i++ {
		if err := e.activate(ctx, button.Selector); err != nil {
			e.recorder.Capture(ctx, e.drv, "temp_change_error")
			return fmt.Errorf("temperature step: %w", err)
		}
		e.drv.Settle(ctx, stepDelay)
	}

	if save, ok := findSaveControl(snap); ok {
		if err := e.activate(ctx, save.Selector); err != nil {
			e.logger.Warn("Save control activation failed", zap.Error(err))
		} else {
			e.drv.Settle(ctx, e.cfg.Automation.Delay)
		}
	}

	e.logger.Info("Temperature change submitted",
		zap.String("device", device), zap.Float64("target", target))
	return nil
}

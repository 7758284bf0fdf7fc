// internal/portal/status.go
package portal

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jakoleksy/ecobeectl/internal/browser"
)

// HeatingStatus is a best-effort snapshot of the thermostat display. Every
// field is independently optional; IsHeating is derived from the others and
// absent whenever any input is.
type HeatingStatus struct {
	CurrentTemperature *float64 `json:"current_temperature,omitempty"`
	TargetTemperature  *float64 `json:"target_temperature,omitempty"`
	Mode               *string  `json:"mode,omitempty"`
	IsHeating          *bool    `json:"is_heating,omitempty"`
}

// Attribute fragments that identify the temperature readouts across portal
// revisions.
var (
	currentTempHints = []string{"current", "actual", "ambient"}
	targetTempHints  = []string{"target", "setpoint", "set-point", "desired"}
)

// ReadStatus extracts the currently displayed temperatures and mode. Each
// field is read independently; a field that cannot be located or parsed is
// logged and left absent rather than failing the read. Only losing the page
// itself is an error.
func (e *Engine) ReadStatus(ctx context.Context) (*HeatingStatus, error) {
	if err := e.drv.Navigate(ctx, e.cfg.Portal.HomeURL); err != nil {
		return nil, fmt.Errorf("navigate to home: %w", err)
	}
	e.drv.Settle(ctx, e.cfg.Automation.Delay)

	snap, err := e.drv.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("page snapshot: %w", err)
	}

	status := statusFromSnapshot(snap, e.cfg.Portal.Modes, e.logger)
	e.logger.Info("Status read complete",
		zap.Any("current", status.CurrentTemperature),
		zap.Any("target", status.TargetTemperature),
		zap.Any("mode", status.Mode))
	return status, nil
}

// statusFromSnapshot performs the per-field extraction over a harvested page.
func statusFromSnapshot(snap *browser.Snapshot, modes []string, logger *zap.Logger) *HeatingStatus {
	status := &HeatingStatus{}

	if v, ok := readTemperature(snap, currentTempHints); ok {
		status.CurrentTemperature = &v
	} else {
		logger.Warn("Current temperature not readable")
	}
	if v, ok := readTemperature(snap, targetTempHints); ok {
		status.TargetTemperature = &v
	} else {
		logger.Warn("Target temperature not readable")
	}
	if m, ok := readMode(snap, modes); ok {
		status.Mode = &m
	} else {
		logger.Warn("Operating mode not readable")
	}

	status.IsHeating = deriveIsHeating(status.CurrentTemperature, status.TargetTemperature, status.Mode)
	return status
}

// readTemperature finds the first visible element whose identifying
// attributes carry one of the hints and whose text parses as a temperature.
func readTemperature(snap *browser.Snapshot, hints []string) (float64, bool) {
	for i := range snap.Elements {
		el := &snap.Elements[i]
		if !el.Visible {
			continue
		}
		ident := strings.ToLower(el.ClassName + " " + el.ID + " " + el.AriaLabel)
		matched := false
		for _, hint := range hints {
			if strings.Contains(ident, hint) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		if v, err := parseTemperature(el.Text); err == nil {
			return v, true
		}
	}
	return 0, false
}

// readMode finds a visible element whose identifying attributes mention the
// mode or system surface and whose text names one of the configured modes.
func readMode(snap *browser.Snapshot, modes []string) (string, bool) {
	for i := range snap.Elements {
		el := &snap.Elements[i]
		if !el.Visible {
			continue
		}
		ident := strings.ToLower(el.ClassName + " " + el.ID + " " + el.AriaLabel)
		if !strings.Contains(ident, "mode") && !strings.Contains(ident, "system") {
			continue
		}
		text := strings.ToLower(strings.TrimSpace(el.Text))
		for _, mode := range modes {
			for _, syn := range modeSynonyms(mode) {
				if strings.Contains(text, strings.ToLower(syn)) {
					return mode, true
				}
			}
		}
	}
	return "", false
}

// parseTemperature strips the degree glyph and unit suffixes the portal
// renders around temperatures and parses the remainder.
func parseTemperature(text string) (float64, error) {
	cleaned := strings.TrimSpace(text)
	for _, junk := range []string{"°", "°", "F", "f", "C", "c"} {
		cleaned = strings.ReplaceAll(cleaned, junk, "")
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, fmt.Errorf("empty temperature text %q", text)
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parse temperature %q: %w", text, err)
	}
	return v, nil
}

// deriveIsHeating computes the heating indicator: below target while in a
// heat-capable mode. Absent whenever any input is absent.
func deriveIsHeating(current, target *float64, mode *string) *bool {
	if current == nil || target == nil || mode == nil {
		return nil
	}
	m := strings.ToLower(*mode)
	heating := *current < *target && (m == "heat" || m == "auto")
	return &heating
}

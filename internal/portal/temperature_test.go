package portal

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakoleksy/ecobeectl/internal/browser"
)

func thermostatPage(targetText string, extra ...browser.Element) *browser.Snapshot {
	elements := []browser.Element{
		{Selector: "#device", Tag: "a", Text: "Main Floor", Visible: true, Enabled: true},
		{Selector: "#tgt", Tag: "span", ClassName: "target-temp", Text: targetText, Visible: true, Enabled: true},
		{Selector: "#up", Tag: "button", ClassName: "temp-up", Visible: true, Enabled: true},
		{Selector: "#down", Tag: "button", ClassName: "temp-down", Visible: true, Enabled: true},
		{Selector: "#save", Tag: "button", ClassName: "save-changes", Text: "Save", Visible: true, Enabled: true},
	}
	return &browser.Snapshot{Elements: append(elements, extra...)}
}

func countClicks(clicks []string, selector string) int {
	n := 0
	for _, c := range clicks {
		if c == selector {
			n++
		}
	}
	return n
}

func TestFindStepButton(t *testing.T) {
	snap := thermostatPage("70°")

	up, ok := findStepButton(snap, true)
	require.True(t, ok)
	assert.Equal(t, "#up", up.Selector)

	down, ok := findStepButton(snap, false)
	require.True(t, ok)
	assert.Equal(t, "#down", down.Selector)

	_, ok = findStepButton(&browser.Snapshot{}, true)
	assert.False(t, ok)
}

func TestFindSaveControl(t *testing.T) {
	t.Run("By Class", func(t *testing.T) {
		el, ok := findSaveControl(thermostatPage("70°"))
		require.True(t, ok)
		assert.Equal(t, "#save", el.Selector)
	})

	t.Run("By Text", func(t *testing.T) {
		snap := &browser.Snapshot{Elements: []browser.Element{
			{Selector: "#btn", Tag: "button", Text: "Save Changes", Visible: true, Enabled: true},
		}}
		el, ok := findSaveControl(snap)
		require.True(t, ok)
		assert.Equal(t, "#btn", el.Selector)
	})

	t.Run("Missing Is A Normal Miss", func(t *testing.T) {
		_, ok := findSaveControl(&browser.Snapshot{})
		assert.False(t, ok)
	})
}

func TestSetTemperature(t *testing.T) {
	t.Run("Steps Up Once Per Whole Degree Then Saves", func(t *testing.T) {
		drv := newFakeDriver(thermostatPage("70°"), testHomeURL)
		e := testEngine(t, drv)

		require.NoError(t, e.SetTemperature(context.Background(), "Main Floor", 73))
		assert.Equal(t, 3, countClicks(drv.clicks, "#up"))
		assert.Zero(t, countClicks(drv.clicks, "#down"))
		assert.Contains(t, drv.clicks, "#save")
	})

	t.Run("Steps Down For A Lower Target", func(t *testing.T) {
		drv := newFakeDriver(thermostatPage("72°"), testHomeURL)
		e := testEngine(t, drv)

		require.NoError(t, e.SetTemperature(context.Background(), "Main Floor", 70))
		assert.Equal(t, 2, countClicks(drv.clicks, "#down"))
		assert.Zero(t, countClicks(drv.clicks, "#up"))
	})

	t.Run("Already At Target Short-Circuits", func(t *testing.T) {
		drv := newFakeDriver(thermostatPage("72°"), testHomeURL)
		e := testEngine(t, drv)

		require.NoError(t, e.SetTemperature(context.Background(), "Main Floor", 72.2))
		assert.Zero(t, countClicks(drv.clicks, "#up"))
		assert.Zero(t, countClicks(drv.clicks, "#down"))
		assert.Zero(t, countClicks(drv.clicks, "#save"))
	})

	t.Run("Unknown Device Rejected Before Browser Use", func(t *testing.T) {
		drv := newFakeDriver(thermostatPage("70°"), testHomeURL)
		e := testEngine(t, drv)

		err := e.SetTemperature(context.Background(), "Basement", 72)
		require.ErrorIs(t, err, ErrUnknownDevice)
		assert.Empty(t, drv.clicks)
	})

	t.Run("Unreadable Target Captures Tagged Screenshot", func(t *testing.T) {
		drv := newFakeDriver(&browser.Snapshot{Elements: []browser.Element{
			{Selector: "#device", Tag: "a", Text: "Main Floor", Visible: true, Enabled: true},
		}}, testHomeURL)
		e := testEngine(t, drv)

		err := e.SetTemperature(context.Background(), "Main Floor", 72)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not readable")

		entries, rerr := os.ReadDir(e.cfg.Automation.ScreenshotsDir)
		require.NoError(t, rerr)
		require.Len(t, entries, 1)
		assert.True(t, strings.HasPrefix(entries[0].Name(), "temp_change_error_"))
	})

	t.Run("Missing Stepper Captures Tagged Screenshot", func(t *testing.T) {
		drv := newFakeDriver(&browser.Snapshot{Elements: []browser.Element{
			{Selector: "#device", Tag: "a", Text: "Main Floor", Visible: true, Enabled: true},
			{Selector: "#tgt", Tag: "span", ClassName: "target-temp", Text: "70°", Visible: true, Enabled: true},
		}}, testHomeURL)
		e := testEngine(t, drv)

		err := e.SetTemperature(context.Background(), "Main Floor", 73)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stepper")

		entries, rerr := os.ReadDir(e.cfg.Automation.ScreenshotsDir)
		require.NoError(t, rerr)
		require.Len(t, entries, 1)
		assert.True(t, strings.HasPrefix(entries[0].Name(), "temp_change_error_"))
	})
}

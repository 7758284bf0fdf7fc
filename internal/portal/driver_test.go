package portal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jakoleksy/ecobeectl/internal/browser"
)

// findCall records one locator query with the timeout the caller granted it.
type findCall struct {
	query   browser.Query
	timeout time.Duration
}

// fakeDriver is a scripted page for the engine's state machines. It resolves
// queries against a swappable synthetic snapshot and records every action so
// tests can assert on the exact interaction sequence.
type fakeDriver struct {
	mu sync.Mutex

	snap     *browser.Snapshot
	location string

	navigations  []string
	finds        []findCall
	clicks       []string
	scriptClicks []string
	parentClicks []string
	fills        map[string]string
	settles      []time.Duration
	screenshots  int

	clickErr       map[string]error
	scriptClickErr map[string]error
	screenshotErr  error

	// onScriptClick, onClick and onSettle fire after the action is
	// recorded, letting a test mutate the page the way a real portal
	// would.
	onScriptClick func(selector string)
	onClick       func(selector string)
	onSettle      func(d time.Duration)
}

func newFakeDriver(snap *browser.Snapshot, location string) *fakeDriver {
	return &fakeDriver{
		snap:           snap,
		location:       location,
		fills:          map[string]string{},
		clickErr:       map[string]error{},
		scriptClickErr: map[string]error{},
	}
}

func (f *fakeDriver) setSnapshot(snap *browser.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = snap
}

func (f *fakeDriver) setLocation(loc string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.location = loc
}

func (f *fakeDriver) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigations = append(f.navigations, url)
	return nil
}

func (f *fakeDriver) Location(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.location, nil
}

func (f *fakeDriver) Find(_ context.Context, q browser.Query, timeout time.Duration) (*browser.Element, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds = append(f.finds, findCall{query: q, timeout: timeout})
	el, _, ok := browser.CascadeFind(f.snap, q)
	return el, ok, nil
}

func (f *fakeDriver) Click(_ context.Context, selector string) error {
	f.mu.Lock()
	f.clicks = append(f.clicks, selector)
	err := f.clickErr[selector]
	hook := f.onClick
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		hook(selector)
	}
	return nil
}

func (f *fakeDriver) ScriptClick(_ context.Context, selector string) error {
	f.mu.Lock()
	f.scriptClicks = append(f.scriptClicks, selector)
	err := f.scriptClickErr[selector]
	hook := f.onScriptClick
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		hook(selector)
	}
	return nil
}

func (f *fakeDriver) ParentClick(_ context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parentClicks = append(f.parentClicks, selector)
	return nil
}

func (f *fakeDriver) Fill(_ context.Context, selector, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fills[selector] = value
	return nil
}

func (f *fakeDriver) Settle(_ context.Context, d time.Duration) error {
	f.mu.Lock()
	f.settles = append(f.settles, d)
	hook := f.onSettle
	f.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return nil
}

func (f *fakeDriver) Snapshot(_ context.Context) (*browser.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snap == nil {
		return nil, errors.New("no page")
	}
	return f.snap, nil
}

func (f *fakeDriver) Screenshot(_ context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.screenshots++
	if f.screenshotErr != nil {
		return nil, f.screenshotErr
	}
	return []byte("png"), nil
}

func (f *fakeDriver) findsForRole(r browser.Role) []findCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []findCall
	for _, c := range f.finds {
		if !c.query.ByText && c.query.Role == r {
			out = append(out, c)
		}
	}
	return out
}

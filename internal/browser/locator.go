// internal/browser/locator.go
package browser

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Role is a logical target on the page - "the username field", "the submit
// control" - decoupled from any concrete markup. A Role never names a
// selector; it names intent, resolved against the live page at run time.
type Role int

const (
	RoleUsername Role = iota
	RolePassword
	RoleSubmit
	RoleContinue
)

func (r Role) String() string {
	switch r {
	case RoleUsername:
		return "username"
	case RolePassword:
		return "password"
	case RoleSubmit:
		return "submit"
	case RoleContinue:
		return "continue"
	}
	return "unknown"
}

// Query asks the locator for either a role-bearing control or a free-text
// match (device names, mode labels).
type Query struct {
	Role Role
	Text string
	// ByText selects the free-text search path; Role is ignored then.
	ByText bool
}

// ForRole builds a role query.
func ForRole(r Role) Query { return Query{Role: r} }

// ForText builds a case-insensitive free-text query.
func ForText(text string) Query { return Query{Text: text, ByText: true} }

// roleKeywords are the lowercase substrings tested against an element's
// concatenated attributes in the attribute-substring strategy.
var roleKeywords = map[Role][]string{
	RoleUsername: {"user", "email", "login", "account"},
	RolePassword: {"pass"},
	RoleSubmit:   {"sign in", "log in", "login", "submit"},
	RoleContinue: {"continue", "next", "proceed"},
}

// roleTags are the broad tag classes scanned for each role.
var roleTags = map[Role][]string{
	RoleUsername: {"input", "textarea"},
	RolePassword: {"input"},
	RoleSubmit:   {"button", "input", "a"},
	RoleContinue: {"button", "input", "a"},
}

// strategy is one step of the search cascade: a pure function from a page
// snapshot and a query to a match or nil. Keeping each step pure lets the
// whole cascade run against synthetic fixtures without a browser.
type strategy struct {
	name string
	find func(snap *Snapshot, q Query) *Element
}

// cascade is the ordered strategy list. First success wins; order is part of
// the contract (a structural match always beats a keyword match).
var cascade = []strategy{
	{"structural", findStructural},
	{"attribute-substring", findByKeyword},
	{"free-text", findByText},
	{"fallback-first-visible", findFallback},
}

// CascadeFind runs the strategy cascade over a snapshot and returns the first
// match along with the name of the strategy that produced it. A miss is a
// normal outcome, not an error.
func CascadeFind(snap *Snapshot, q Query) (*Element, string, bool) {
	for _, st := range cascade {
		if el := st.find(snap, q); el != nil {
			return el, st.name, true
		}
	}
	return nil, "", false
}

// findStructural matches on declared element structure alone: a
// password-typed input for the password role, an email-typed input for the
// username role, a submit-typed control for the submit role.
func findStructural(snap *Snapshot, q Query) *Element {
	if q.ByText {
		return nil
	}
	for i := range snap.Elements {
		el := &snap.Elements[i]
		switch q.Role {
		case RolePassword:
			if el.Tag == "input" && el.Type == "password" {
				return el
			}
		case RoleUsername:
			if el.Tag == "input" && el.Type == "email" {
				return el
			}
		case RoleSubmit:
			if (el.Tag == "button" || el.Tag == "input") && el.Type == "submit" {
				return el
			}
		}
	}
	return nil
}

// findByKeyword scans the role's tag class and tests the role keywords
// against a concatenation of each element's identifying attributes and text.
func findByKeyword(snap *Snapshot, q Query) *Element {
	if q.ByText {
		return nil
	}
	keywords := roleKeywords[q.Role]
	tags := roleTags[q.Role]
	for i := range snap.Elements {
		el := &snap.Elements[i]
		if !tagAllowed(el.Tag, tags) {
			continue
		}
		haystack := attributeBlob(el)
		for _, kw := range keywords {
			if strings.Contains(haystack, kw) {
				return el
			}
		}
	}
	return nil
}

// findByText serves free-text lookups: visible, enabled elements whose
// rendered text contains the target. An element whose own text equals the
// target beats an ancestor that merely contains it; among plain containment
// matches the shortest text wins, which selects the deepest node.
func findByText(snap *Snapshot, q Query) *Element {
	if !q.ByText || q.Text == "" {
		return nil
	}
	target := strings.ToLower(strings.TrimSpace(q.Text))

	var best *Element
	for i := range snap.Elements {
		el := &snap.Elements[i]
		if !el.Visible || !el.Enabled {
			continue
		}
		text := strings.ToLower(strings.TrimSpace(el.Text))
		if text == target {
			return el
		}
		if !strings.Contains(text, target) {
			continue
		}
		if best == nil || len(el.Text) < len(best.Text) {
			best = el
		}
	}
	return best
}

// findFallback is the last resort for submit-like roles only: the first
// visible, enabled control of the expected shape, used when nothing on the
// page carries a recognizable keyword.
func findFallback(snap *Snapshot, q Query) *Element {
	if q.ByText || (q.Role != RoleSubmit && q.Role != RoleContinue) {
		return nil
	}
	for i := range snap.Elements {
		el := &snap.Elements[i]
		if !el.Visible || !el.Enabled {
			continue
		}
		if el.Tag == "button" || (el.Tag == "input" && (el.Type == "submit" || el.Type == "button")) {
			return el
		}
	}
	return nil
}

func tagAllowed(tag string, tags []string) bool {
	for _, t := range tags {
		if tag == t {
			return true
		}
	}
	return false
}

// attributeBlob concatenates the attributes the keyword strategy matches
// against, lowercased.
func attributeBlob(el *Element) string {
	return strings.ToLower(strings.Join([]string{
		el.Type, el.Name, el.ID, el.Placeholder, el.Autocomplete, el.AriaLabel, el.Text,
	}, " "))
}

// Locator resolves queries against the live page by repeatedly harvesting
// snapshots and running the cascade until a match appears or the timeout
// elapses. A timeout is a NotFound outcome; only session loss is an error.
type Locator struct {
	session *Session
	logger  *zap.Logger
	poll    time.Duration
}

// NewLocator creates a locator bound to a session.
func NewLocator(s *Session, logger *zap.Logger) *Locator {
	return &Locator{
		session: s,
		logger:  logger.Named("locator"),
		poll:    250 * time.Millisecond,
	}
}

// Find resolves a query within the given timeout. found == false is the
// normal "not found" outcome; err != nil signals infrastructure failure
// (session loss, evaluation failure) only.
func (l *Locator) Find(ctx context.Context, q Query, timeout time.Duration) (*Element, bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		snap, err := l.session.Snapshot(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			return nil, false, err
		}

		if el, strat, ok := CascadeFind(snap, q); ok {
			l.logger.Debug("Element located",
				zap.String("query", l.describe(q)),
				zap.String("strategy", strat),
				zap.String("selector", el.Selector))
			return el, true, nil
		}

		if time.Now().After(deadline) {
			l.logger.Debug("Element not found within timeout",
				zap.String("query", l.describe(q)),
				zap.Duration("timeout", timeout))
			return nil, false, nil
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(l.poll):
		}
	}
}

func (l *Locator) describe(q Query) string {
	if q.ByText {
		return "text:" + q.Text
	}
	return "role:" + q.Role.String()
}

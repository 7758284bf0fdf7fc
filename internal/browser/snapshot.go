// internal/browser/snapshot.go
package browser

import (
	"context"
	"fmt"
)

// Element is an immutable view of one candidate page element, captured at
// snapshot time. Selector addresses the live element via the reference
// attribute the harvest script stamped onto it.
type Element struct {
	Selector     string `json:"selector"`
	Tag          string `json:"tag"`
	Type         string `json:"type"`
	Name         string `json:"name"`
	ID           string `json:"id"`
	ClassName    string `json:"className"`
	Placeholder  string `json:"placeholder"`
	Autocomplete string `json:"autocomplete"`
	AriaLabel    string `json:"ariaLabel"`
	For          string `json:"htmlFor"`
	Href         string `json:"href"`
	Text         string `json:"text"`
	Visible      bool   `json:"visible"`
	Enabled      bool   `json:"enabled"`
}

// Snapshot is a point-in-time harvest of the candidate elements on the
// current page. Search strategies operate on snapshots only, never on the
// live DOM, so they stay pure and testable against synthetic fixtures.
type Snapshot struct {
	Elements []Element
}

// refAttribute is stamped onto every harvested element so a later click or
// fill can address exactly the element the cascade matched, even if the DOM
// shifts underneath a CSS re-query.
const refAttribute = "data-ecobeectl-ref"

// harvestScript walks the broad tag classes the cascade searches (form
// controls, links, labels, generic text carriers), tags each element with a
// stable reference attribute and returns its key properties. Text is capped
// so pathological pages cannot balloon the snapshot.
const harvestScript = `(() => {
	const tags = 'input, button, a, label, select, textarea, span, div, li, p, h1, h2, h3, h4, td';
	const out = [];
	let seq = 0;
	for (const el of document.querySelectorAll(tags)) {
		seq++;
		el.setAttribute('` + refAttribute + `', String(seq));
		const style = window.getComputedStyle(el);
		const rect = el.getBoundingClientRect();
		const visible = style.display !== 'none' && style.visibility !== 'hidden' &&
			rect.width > 0 && rect.height > 0;
		let text = (el.innerText || el.value || '').trim();
		if (text.length > 200) { text = text.slice(0, 200); }
		out.push({
			selector: '[` + refAttribute + `="' + seq + '"]',
			tag: el.tagName.toLowerCase(),
			type: (el.getAttribute('type') || '').toLowerCase(),
			name: el.getAttribute('name') || '',
			id: el.id || '',
			className: el.className && el.className.toString ? el.className.toString() : '',
			placeholder: el.getAttribute('placeholder') || '',
			autocomplete: el.getAttribute('autocomplete') || '',
			ariaLabel: el.getAttribute('aria-label') || '',
			htmlFor: el.getAttribute('for') || '',
			href: el.getAttribute('href') || '',
			text: text,
			visible: visible,
			enabled: !el.disabled,
		});
	}
	return out;
})()`

// Snapshot harvests the current page into an immutable element list.
func (s *Session) Snapshot(ctx context.Context) (*Snapshot, error) {
	var elements []Element
	if err := s.Evaluate(ctx, harvestScript, &elements); err != nil {
		return nil, fmt.Errorf("failed to harvest page snapshot: %w", err)
	}
	return &Snapshot{Elements: elements}, nil
}

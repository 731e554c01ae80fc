package resolver

import (
	"context"
	"strings"
)

// TypeHint narrows the candidate scan to elements plausibly interactive for
// the caller's intent.
type TypeHint string

const (
	HintAny    TypeHint = "any"
	HintInput  TypeHint = "input"
	HintButton TypeHint = "button"
	HintLink   TypeHint = "link"
)

// ScrollBlock names the vertical alignment for scroll-into-view.
type ScrollBlock string

const (
	BlockStart  ScrollBlock = "start"
	BlockCenter ScrollBlock = "center"
	BlockEnd    ScrollBlock = "end"
)

// Rect is an axis-aligned bounding box in viewport coordinates.
type Rect struct {
	X, Y, Width, Height float64
}

// Center returns the geometric center of the box.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Element is a snapshot of one candidate DOM node, taken by a Page
// implementation during a single scoring pass. It is ephemeral: the scoring
// and interaction code never caches it across actions, because the underlying
// node may be mutated or removed at any time. ID is the directory's stable
// handle for reaching the live node again within the same page generation.
type Element struct {
	ID   string
	Tag  string
	Role string

	// Attrs holds the raw attributes with lowercase keys.
	Attrs map[string]string

	// Labels are the texts of associated <label> elements, collected via
	// for=id lookup and the ancestor-label walk.
	Labels []string
	// LabelledBy is the joined text of elements referenced by
	// aria-labelledby.
	LabelledBy string
	// Text is the element's own trimmed text content, truncated by the
	// directory.
	Text string

	Box     Rect
	Visible bool

	Disabled          bool
	PointerEventsNone bool
	Focusable         bool
	Editable          bool
}

// Attr returns the named attribute or the empty string.
func (e *Element) Attr(name string) string {
	if e.Attrs == nil {
		return ""
	}
	return e.Attrs[name]
}

// InputType returns the lowercase type attribute, relevant for inputs only.
func (e *Element) InputType() string {
	return strings.ToLower(e.Attr("type"))
}

// Interactable reports whether the element would accept input right now.
func (e *Element) Interactable() bool {
	return e.Visible && !e.Disabled && !e.PointerEventsNone
}

// TextFragment is one visible text node with the geometry of its owning
// element, used by the nearby-text scoring signal.
type TextFragment struct {
	Text string
	Box  Rect
}

// Page is the minimal element directory the resolver needs. Implementations
// exist for a live Chrome tab (internal/browser) and for parsed offline
// snapshots (internal/staticdom); tests substitute in-memory fakes.
type Page interface {
	// QueryCandidates returns fresh snapshots of the elements plausibly
	// interactive for the hint. Every call re-reads the live document.
	QueryCandidates(ctx context.Context, hint TypeHint) ([]*Element, error)

	// VisibleTextFragments returns the document's rendered text nodes. The
	// resolver calls this at most once per scoring pass; directories should
	// keep it cheap and may truncate pathological documents.
	VisibleTextFragments(ctx context.Context) ([]TextFragment, error)

	// ScrollIntoView smooth-scrolls the element to the given block position.
	ScrollIntoView(ctx context.Context, el *Element, block ScrollBlock) error

	// Refresh re-snapshots geometry and visibility in place, reporting
	// whether the node is still attached to the document.
	Refresh(ctx context.Context, el *Element) (bool, error)
}

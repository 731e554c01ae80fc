package engine

import (
	"context"

	"github.com/pagepilot/pagepilot/api/schemas"
	"github.com/pagepilot/pagepilot/internal/resolver"
)

// Page is the full automation surface the engine drives. It extends the
// resolver's read-mostly directory with focus control, value mutation and
// synthetic event dispatch. Implementations exist for a live Chrome tab
// (internal/browser) and parsed offline snapshots (internal/staticdom).
type Page interface {
	resolver.Page

	// Focus moves input focus to the element.
	Focus(ctx context.Context, el *resolver.Element) error

	// ActiveElement returns a snapshot of the currently focused element,
	// or nil when focus sits on the document body.
	ActiveElement(ctx context.Context) (*resolver.Element, error)

	// Value reads the element's current value (inputs, textareas,
	// contenteditable text).
	Value(ctx context.Context, el *resolver.Element) (string, error)

	// SetValue replaces the element's value without dispatching any
	// events; the engine synthesizes those separately.
	SetValue(ctx context.Context, el *resolver.Element, value string) error

	// DispatchMouse raises one synthetic mouse event on the element.
	DispatchMouse(ctx context.Context, el *resolver.Element, ev schemas.MouseEventData) error

	// DispatchKey raises one synthetic keyboard event. A nil element
	// targets the active element, falling back to the document body.
	DispatchKey(ctx context.Context, el *resolver.Element, ev schemas.KeyEventData) error

	// DispatchElementEvent raises an element-scoped event (input, change)
	// used by framework change detection.
	DispatchElementEvent(ctx context.Context, el *resolver.Element, ev schemas.ElementEventType) error

	// AssociatedLabel returns the label element tied to an input via for=id
	// or ancestry, or nil when there is none.
	AssociatedLabel(ctx context.Context, el *resolver.Element) (*resolver.Element, error)

	// ScrollPosition reports the current viewport scroll offsets.
	ScrollPosition(ctx context.Context) (x, y float64, err error)
}

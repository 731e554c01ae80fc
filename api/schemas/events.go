package schemas

// -- Synthetic Event Schemas --
//
// These structures are deliberately agnostic of the underlying automation
// transport (CDP, an in-memory DOM, ...) so the engine logic can be unit
// tested against a fake page.

// MouseEventType defines the type of a mouse event.
type MouseEventType string

const (
	MouseDown  MouseEventType = "mousedown"
	MouseUp    MouseEventType = "mouseup"
	MouseClick MouseEventType = "click"
)

// MouseButton defines the mouse button being pressed.
type MouseButton string

const (
	ButtonNone MouseButton = "none"
	ButtonLeft MouseButton = "left"
)

// MouseEventData encapsulates all data for a synthetic mouse event. X and Y
// are viewport coordinates, normally the center of the target's bounding box.
type MouseEventData struct {
	Type       MouseEventType `json:"type"`
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	Button     MouseButton    `json:"button"`
	ClickCount int            `json:"clickCount"`
}

// KeyEventType defines the type of a keyboard event.
type KeyEventType string

const (
	KeyDown  KeyEventType = "keydown"
	KeyPress KeyEventType = "keypress"
	KeyUp    KeyEventType = "keyup"
)

// KeyEventData encapsulates one synthetic keyboard event. Key holds the DOM
// KeyboardEvent.key value ("a", "Tab", ...).
type KeyEventData struct {
	Type KeyEventType `json:"type"`
	Key  string       `json:"key"`
}

// ElementEventType names the element-scoped events the engine dispatches for
// framework compatibility after mutating a value.
type ElementEventType string

const (
	EventInput  ElementEventType = "input"
	EventChange ElementEventType = "change"
)

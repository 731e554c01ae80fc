// Package staticdom implements the page directory over a parsed HTML
// snapshot instead of a live browser tab. It exists for offline resolution
// (pagepilot resolve --snapshot) and as a deterministic harness for plan
// dry-runs: synthetic events are recorded, not delivered to any script.
//
// Geometry is approximated with a fixed flow layout (one layout line per
// rendered element, 24px tall) which is crude but stable, and enough for
// the proximity scoring and scroll simulation to behave like they do on a
// real page.
package staticdom

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/pagepilot/pagepilot/api/schemas"
	"github.com/pagepilot/pagepilot/internal/resolver"
)

const (
	defaultViewportWidth  = 1280.0
	defaultViewportHeight = 800.0
)

// RecordedEvent is one synthetic event captured by the snapshot page.
type RecordedEvent struct {
	ElementID string
	Kind      string // "mouse", "key" or "element"
	Mouse     schemas.MouseEventData
	Key       schemas.KeyEventData
	Element   schemas.ElementEventType
}

// Page is an offline element directory over one parsed document. It
// implements engine.Page.
type Page struct {
	mu sync.Mutex

	doc    *html.Node
	layout map[*html.Node]box
	ids    map[*html.Node]string
	nodes  map[string]*html.Node

	viewportW float64
	viewportH float64
	scrollX   float64
	scrollY   float64

	values   map[string]string
	activeID string
	events   []RecordedEvent
}

// Load parses an HTML document into a snapshot page.
func Load(r io.Reader) (*Page, error) {
	doc, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML snapshot: %w", err)
	}

	p := &Page{
		doc:       doc,
		layout:    make(map[*html.Node]box),
		ids:       make(map[*html.Node]string),
		nodes:     make(map[string]*html.Node),
		viewportW: defaultViewportWidth,
		viewportH: defaultViewportHeight,
		values:    make(map[string]string),
	}
	p.computeLayout()
	return p, nil
}

// LoadString parses an in-memory HTML document.
func LoadString(src string) (*Page, error) {
	return Load(strings.NewReader(src))
}

// LoadFile parses an HTML snapshot from disk.
func LoadFile(path string) (*Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Events returns a copy of all recorded synthetic events, in dispatch order.
func (p *Page) Events() []RecordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]RecordedEvent, len(p.events))
	copy(out, p.events)
	return out
}

// Value returns the simulated value of the element, or its initial value
// attribute when nothing was typed yet.
func (p *Page) Value(_ context.Context, el *resolver.Element) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.values[el.ID]; ok {
		return v, nil
	}
	if node := p.nodes[el.ID]; node != nil {
		return htmlquery.SelectAttr(node, "value"), nil
	}
	return "", nil
}

// SetValue records the element's new value.
func (p *Page) SetValue(_ context.Context, el *resolver.Element, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[el.ID] = value
	return nil
}

// Focus marks the element as the active one.
func (p *Page) Focus(_ context.Context, el *resolver.Element) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.nodes[el.ID]; !ok {
		return fmt.Errorf("unknown element %s", el.ID)
	}
	p.activeID = el.ID
	return nil
}

// ActiveElement returns the currently focused element, nil when focus is on
// the body.
func (p *Page) ActiveElement(_ context.Context) (*resolver.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.activeID == "" {
		return nil, nil
	}
	node := p.nodes[p.activeID]
	if node == nil {
		return nil, nil
	}
	return p.snapshot(node), nil
}

func (p *Page) DispatchMouse(_ context.Context, el *resolver.Element, ev schemas.MouseEventData) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, RecordedEvent{ElementID: el.ID, Kind: "mouse", Mouse: ev})
	return nil
}

func (p *Page) DispatchKey(_ context.Context, el *resolver.Element, ev schemas.KeyEventData) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.activeID
	if el != nil {
		id = el.ID
	}
	p.events = append(p.events, RecordedEvent{ElementID: id, Kind: "key", Key: ev})

	// Simulate the browser's tab order: Tab keyup advances focus to the
	// next focusable element in document order.
	if ev.Key == "Tab" && ev.Type == schemas.KeyUp {
		p.advanceFocus()
	}
	return nil
}

func (p *Page) DispatchElementEvent(_ context.Context, el *resolver.Element, ev schemas.ElementEventType) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, RecordedEvent{ElementID: el.ID, Kind: "element", Element: ev})
	return nil
}

// ScrollPosition reports the simulated scroll offsets.
func (p *Page) ScrollPosition(_ context.Context) (float64, float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrollX, p.scrollY, nil
}

// ScrollIntoView adjusts the simulated scroll offset so the element lands at
// the requested block position. The snapshot has no smooth scrolling; the
// jump is instantaneous.
func (p *Page) ScrollIntoView(_ context.Context, el *resolver.Element, block resolver.ScrollBlock) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	node := p.nodes[el.ID]
	if node == nil {
		return fmt.Errorf("unknown element %s", el.ID)
	}
	b, ok := p.layout[node]
	if !ok {
		return nil
	}

	switch block {
	case resolver.BlockStart:
		p.scrollY = b.y
	case resolver.BlockEnd:
		p.scrollY = b.y + b.h - p.viewportH
	default:
		p.scrollY = b.y + b.h/2 - p.viewportH/2
	}
	if p.scrollY < 0 {
		p.scrollY = 0
	}
	return nil
}

// Refresh re-derives geometry and visibility for the given snapshot against
// the current scroll position.
func (p *Page) Refresh(_ context.Context, el *resolver.Element) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	node := p.nodes[el.ID]
	if node == nil {
		return false, nil
	}
	fresh := p.snapshot(node)
	el.Box = fresh.Box
	el.Visible = fresh.Visible
	return true, nil
}

// advanceFocus moves activeID to the next focusable element in document
// order, wrapping to the first one. Caller holds the lock.
func (p *Page) advanceFocus() {
	focusables := p.focusableNodes()
	if len(focusables) == 0 {
		return
	}
	if p.activeID == "" {
		p.activeID = p.ids[focusables[0]]
		return
	}
	for i, node := range focusables {
		if p.ids[node] == p.activeID {
			p.activeID = p.ids[focusables[(i+1)%len(focusables)]]
			return
		}
	}
	p.activeID = p.ids[focusables[0]]
}

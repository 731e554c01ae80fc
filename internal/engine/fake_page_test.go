package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pagepilot/pagepilot/api/schemas"
	"github.com/pagepilot/pagepilot/internal/config"
	"github.com/pagepilot/pagepilot/internal/resolver"
)

// dispatchedEvent is one recorded synthetic event, in dispatch order.
type dispatchedEvent struct {
	ElementID string
	Kind      string // "mouse", "key", "element"
	Mouse     schemas.MouseEventData
	Key       schemas.KeyEventData
	Element   schemas.ElementEventType
}

// fakeEnginePage is an in-memory Page that records every dispatched event so
// tests can assert on exact ordering.
type fakeEnginePage struct {
	mu       sync.Mutex
	elements []*resolver.Element
	frags    []resolver.TextFragment
	values   map[string]string
	labels   map[string]*resolver.Element
	activeID string
	scrollY  float64

	events []dispatchedEvent

	// scripting hooks
	focusErr  error
	onTab     func()
	detached  map[string]bool
	onScroll  func()
	scrollLog []string
}

func newFakeEnginePage(elements ...*resolver.Element) *fakeEnginePage {
	return &fakeEnginePage{
		elements: elements,
		values:   make(map[string]string),
		labels:   make(map[string]*resolver.Element),
		detached: make(map[string]bool),
	}
}

func (p *fakeEnginePage) find(id string) *resolver.Element {
	for _, el := range p.elements {
		if el.ID == id {
			return el
		}
	}
	return nil
}

func (p *fakeEnginePage) QueryCandidates(_ context.Context, _ resolver.TypeHint) ([]*resolver.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*resolver.Element, len(p.elements))
	copy(out, p.elements)
	return out, nil
}

func (p *fakeEnginePage) VisibleTextFragments(_ context.Context) ([]resolver.TextFragment, error) {
	return p.frags, nil
}

func (p *fakeEnginePage) ScrollIntoView(_ context.Context, el *resolver.Element, block resolver.ScrollBlock) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrollLog = append(p.scrollLog, fmt.Sprintf("%s:%s", el.ID, block))
	if p.onScroll != nil {
		p.onScroll()
	}
	return nil
}

func (p *fakeEnginePage) Refresh(_ context.Context, el *resolver.Element) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.detached[el.ID], nil
}

func (p *fakeEnginePage) Focus(_ context.Context, el *resolver.Element) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.focusErr != nil {
		return p.focusErr
	}
	p.activeID = el.ID
	return nil
}

func (p *fakeEnginePage) ActiveElement(_ context.Context) (*resolver.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.activeID == "" {
		return nil, nil
	}
	return p.find(p.activeID), nil
}

func (p *fakeEnginePage) Value(_ context.Context, el *resolver.Element) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[el.ID], nil
}

func (p *fakeEnginePage) SetValue(_ context.Context, el *resolver.Element, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[el.ID] = value
	return nil
}

func (p *fakeEnginePage) DispatchMouse(_ context.Context, el *resolver.Element, ev schemas.MouseEventData) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, dispatchedEvent{ElementID: el.ID, Kind: "mouse", Mouse: ev})
	return nil
}

func (p *fakeEnginePage) DispatchKey(_ context.Context, el *resolver.Element, ev schemas.KeyEventData) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := ""
	if el != nil {
		id = el.ID
	}
	p.events = append(p.events, dispatchedEvent{ElementID: id, Kind: "key", Key: ev})
	if ev.Key == "Tab" && ev.Type == schemas.KeyUp && p.onTab != nil {
		p.onTab()
	}
	return nil
}

func (p *fakeEnginePage) DispatchElementEvent(_ context.Context, el *resolver.Element, ev schemas.ElementEventType) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, dispatchedEvent{ElementID: el.ID, Kind: "element", Element: ev})
	return nil
}

func (p *fakeEnginePage) AssociatedLabel(_ context.Context, el *resolver.Element) (*resolver.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.labels[el.ID], nil
}

func (p *fakeEnginePage) ScrollPosition(_ context.Context) (float64, float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return 0, p.scrollY, nil
}

// eventTrace flattens the event log to compact "kind:type" strings.
func (p *fakeEnginePage) eventTrace() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		switch ev.Kind {
		case "mouse":
			out = append(out, "mouse:"+string(ev.Mouse.Type))
		case "key":
			out = append(out, "key:"+string(ev.Key.Type)+":"+ev.Key.Key)
		case "element":
			out = append(out, "element:"+string(ev.Element))
		}
	}
	return out
}

// instantClock advances on Sleep without real waiting, mirroring the
// resolver test clock.
type instantClock struct {
	mu  sync.Mutex
	now time.Time
}

func newInstantClock() *instantClock {
	return &instantClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *instantClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *instantClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	return nil
}

// newTestEngine wires an engine, its resolver and deterministic timing over
// the fake page.
func newTestEngine(page *fakeEnginePage) *Engine {
	cfg := config.NewDefaultConfig()
	cfg.Engine.StepPacing = 0 // rate.Every(0) disables pacing in tests

	res := resolver.NewResolver(page, cfg.Resolver, nil)
	clock := newInstantClock()
	res.SetClock(clock)

	eng := NewEngine(page, res, cfg.Engine, nil)
	eng.SetClock(clock)
	eng.SetDelayFunc(ZeroDelay)
	return eng
}

func visibleInput(id string, labels ...string) *resolver.Element {
	return &resolver.Element{
		ID:        id,
		Tag:       "input",
		Attrs:     map[string]string{"type": "text"},
		Labels:    labels,
		Box:       resolver.Rect{X: 100, Y: 100, Width: 200, Height: 30},
		Visible:   true,
		Focusable: true,
		Editable:  true,
	}
}

func visibleButton(id string, label string) *resolver.Element {
	return &resolver.Element{
		ID:        id,
		Tag:       "button",
		Attrs:     map[string]string{"aria-label": label},
		Box:       resolver.Rect{X: 300, Y: 400, Width: 120, Height: 40},
		Visible:   true,
		Focusable: true,
	}
}

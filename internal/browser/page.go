package browser

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/pagepilot/pagepilot/api/schemas"
	"github.com/pagepilot/pagepilot/internal/resolver"
)

//go:embed collector.js
var collectorJS string

// elementSnapshot mirrors the JSON the collector script produces.
type elementSnapshot struct {
	ID         string            `json:"id"`
	Tag        string            `json:"tag"`
	Role       string            `json:"role"`
	Attrs      map[string]string `json:"attrs"`
	Labels     []string          `json:"labels"`
	LabelledBy string            `json:"labelledBy"`
	Text       string            `json:"text"`
	Box        boxSnapshot       `json:"box"`
	Visible    bool              `json:"visible"`
	Disabled   bool              `json:"disabled"`
	PointerNon bool              `json:"pointerEventsNone"`
	Focusable  bool              `json:"focusable"`
	Editable   bool              `json:"editable"`
}

type boxSnapshot struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (s *elementSnapshot) toElement() *resolver.Element {
	return &resolver.Element{
		ID:                s.ID,
		Tag:               s.Tag,
		Role:              s.Role,
		Attrs:             s.Attrs,
		Labels:            s.Labels,
		LabelledBy:        s.LabelledBy,
		Text:              s.Text,
		Box:               resolver.Rect{X: s.Box.X, Y: s.Box.Y, Width: s.Box.W, Height: s.Box.H},
		Visible:           s.Visible,
		Disabled:          s.Disabled,
		PointerEventsNone: s.PointerNon,
		Focusable:         s.Focusable,
		Editable:          s.Editable,
	}
}

// Page is one live browser tab exposed as an engine.Page. All element
// handles refer to the collector's in-page registry and die on navigation.
type Page struct {
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
	onClose func()
}

func newPage(ctx context.Context, cancel context.CancelFunc, logger *zap.Logger) *Page {
	return &Page{ctx: ctx, cancel: cancel, logger: logger.Named("page")}
}

// Close tears down the tab.
func (p *Page) Close() {
	p.cancel()
	if p.onClose != nil {
		p.onClose()
	}
}

// installCollector injects the element directory script into the page.
func (p *Page) installCollector(ctx context.Context) error {
	var ok bool
	err := p.run(ctx, chromedp.Evaluate(collectorJS+"; window.__pagepilot != null", &ok))
	if err != nil {
		return fmt.Errorf("failed to install element collector: %w", err)
	}
	if !ok {
		return fmt.Errorf("element collector did not initialize")
	}
	return nil
}

// run executes chromedp actions on the tab context while honoring the
// caller's context for cancellation.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(p.ctx, actions...)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (p *Page) eval(ctx context.Context, expr string, out any) error {
	if out == nil {
		var discard any
		return p.run(ctx, chromedp.Evaluate(expr, &discard))
	}
	return p.run(ctx, chromedp.Evaluate(expr, out))
}

// QueryCandidates snapshots the candidate elements for the hint.
func (p *Page) QueryCandidates(ctx context.Context, hint resolver.TypeHint) ([]*resolver.Element, error) {
	var snaps []elementSnapshot
	expr := fmt.Sprintf("window.__pagepilot.collect(%q)", string(hint))
	if err := p.eval(ctx, expr, &snaps); err != nil {
		return nil, fmt.Errorf("failed to collect candidates: %w", err)
	}
	out := make([]*resolver.Element, 0, len(snaps))
	for i := range snaps {
		out = append(out, snaps[i].toElement())
	}
	return out, nil
}

// VisibleTextFragments reads the page's on-screen text nodes.
func (p *Page) VisibleTextFragments(ctx context.Context) ([]resolver.TextFragment, error) {
	var raw []struct {
		Text string      `json:"text"`
		Box  boxSnapshot `json:"box"`
	}
	if err := p.eval(ctx, "window.__pagepilot.textFragments()", &raw); err != nil {
		return nil, fmt.Errorf("failed to collect text fragments: %w", err)
	}
	out := make([]resolver.TextFragment, 0, len(raw))
	for _, f := range raw {
		out = append(out, resolver.TextFragment{
			Text: f.Text,
			Box:  resolver.Rect{X: f.Box.X, Y: f.Box.Y, Width: f.Box.W, Height: f.Box.H},
		})
	}
	return out, nil
}

// ScrollIntoView smooth-scrolls the element to the requested block position.
func (p *Page) ScrollIntoView(ctx context.Context, el *resolver.Element, block resolver.ScrollBlock) error {
	var ok bool
	expr := fmt.Sprintf("window.__pagepilot.scrollIntoView(%q, %q)", el.ID, string(block))
	if err := p.eval(ctx, expr, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element %s is no longer attached", el.ID)
	}
	return nil
}

// Refresh re-reads geometry and visibility, reporting attachment.
func (p *Page) Refresh(ctx context.Context, el *resolver.Element) (bool, error) {
	var fresh *struct {
		Box     boxSnapshot `json:"box"`
		Visible bool        `json:"visible"`
	}
	expr := fmt.Sprintf("window.__pagepilot.refresh(%q)", el.ID)
	if err := p.eval(ctx, expr, &fresh); err != nil {
		return false, err
	}
	if fresh == nil {
		return false, nil
	}
	el.Box = resolver.Rect{X: fresh.Box.X, Y: fresh.Box.Y, Width: fresh.Box.W, Height: fresh.Box.H}
	el.Visible = fresh.Visible
	return true, nil
}

// Focus moves input focus to the element via its native focus method.
func (p *Page) Focus(ctx context.Context, el *resolver.Element) error {
	var ok bool
	expr := fmt.Sprintf("window.__pagepilot.focus(%q)", el.ID)
	if err := p.eval(ctx, expr, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element %s did not take focus", el.ID)
	}
	return nil
}

// ActiveElement snapshots the currently focused element.
func (p *Page) ActiveElement(ctx context.Context) (*resolver.Element, error) {
	var snap *elementSnapshot
	if err := p.eval(ctx, "window.__pagepilot.activeElement()", &snap); err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}
	return snap.toElement(), nil
}

// Value reads the element's current value.
func (p *Page) Value(ctx context.Context, el *resolver.Element) (string, error) {
	var v string
	expr := fmt.Sprintf("window.__pagepilot.value(%q)", el.ID)
	if err := p.eval(ctx, expr, &v); err != nil {
		return "", err
	}
	return v, nil
}

// SetValue assigns the element's value without raising events.
func (p *Page) SetValue(ctx context.Context, el *resolver.Element, value string) error {
	var ok bool
	expr := fmt.Sprintf("window.__pagepilot.setValue(%q, %q)", el.ID, value)
	if err := p.eval(ctx, expr, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element %s does not accept a value", el.ID)
	}
	return nil
}

// DispatchMouse raises a synthetic mouse event through the Input domain.
// The click event itself is a no-op here: the browser synthesizes click from
// the mouseReleased it just received, and dispatching another would
// double-fire page handlers.
func (p *Page) DispatchMouse(ctx context.Context, el *resolver.Element, ev schemas.MouseEventData) error {
	var mt input.MouseType
	switch ev.Type {
	case schemas.MouseDown:
		mt = input.MousePressed
	case schemas.MouseUp:
		mt = input.MouseReleased
	case schemas.MouseClick:
		return nil
	default:
		return fmt.Errorf("unsupported mouse event %q", ev.Type)
	}

	dispatch := input.DispatchMouseEvent(mt, ev.X, ev.Y).
		WithButton(input.Left).
		WithClickCount(int64(ev.ClickCount))
	return p.run(ctx, dispatch)
}

// DispatchKey raises a synthetic keyboard event. A nil element is fine: the
// Input domain always targets the focused element.
func (p *Page) DispatchKey(ctx context.Context, _ *resolver.Element, ev schemas.KeyEventData) error {
	// Named keys (Tab, Enter, ...) carry virtual key codes the kb package
	// already knows; route them through its encoder.
	if len([]rune(ev.Key)) > 1 {
		return p.dispatchNamedKey(ctx, ev)
	}

	r := []rune(ev.Key)[0]
	var params *input.DispatchKeyEventParams
	switch ev.Type {
	case schemas.KeyDown:
		params = input.DispatchKeyEvent(input.KeyDown).WithText(ev.Key).WithKey(ev.Key)
	case schemas.KeyPress:
		params = input.DispatchKeyEvent(input.KeyChar).WithText(string(r)).WithKey(ev.Key)
	case schemas.KeyUp:
		params = input.DispatchKeyEvent(input.KeyUp).WithKey(ev.Key)
	default:
		return fmt.Errorf("unsupported key event %q", ev.Type)
	}
	return p.run(ctx, params)
}

func (p *Page) dispatchNamedKey(ctx context.Context, ev schemas.KeyEventData) error {
	key, ok := keyRunes[ev.Key]
	if !ok {
		return fmt.Errorf("unsupported key %q", ev.Key)
	}
	encoded := kb.Encode(key)
	for _, params := range encoded {
		// The encoder emits the full down/up cycle; pick the half that
		// matches the requested event.
		if ev.Type == schemas.KeyDown && params.Type == input.KeyUp {
			continue
		}
		if ev.Type == schemas.KeyUp && params.Type != input.KeyUp {
			continue
		}
		if err := p.run(ctx, params); err != nil {
			return err
		}
	}
	return nil
}

// keyRunes maps DOM KeyboardEvent.key names onto the control runes the kb
// package encodes.
var keyRunes = map[string]rune{
	"Tab":       '\t',
	"Enter":     '\n',
	"Backspace": '\b',
}

// DispatchElementEvent raises an input or change event on the element.
func (p *Page) DispatchElementEvent(ctx context.Context, el *resolver.Element, ev schemas.ElementEventType) error {
	var ok bool
	expr := fmt.Sprintf("window.__pagepilot.elementEvent(%q, %q)", el.ID, string(ev))
	if err := p.eval(ctx, expr, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element %s is no longer attached", el.ID)
	}
	return nil
}

// AssociatedLabel returns the element's label, or nil.
func (p *Page) AssociatedLabel(ctx context.Context, el *resolver.Element) (*resolver.Element, error) {
	var snap *elementSnapshot
	expr := fmt.Sprintf("window.__pagepilot.associatedLabel(%q)", el.ID)
	if err := p.eval(ctx, expr, &snap); err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}
	return snap.toElement(), nil
}

// ScrollPosition reads the viewport scroll offsets.
func (p *Page) ScrollPosition(ctx context.Context) (float64, float64, error) {
	var pos struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := p.eval(ctx, "window.__pagepilot.scrollPosition()", &pos); err != nil {
		return 0, 0, err
	}
	return pos.X, pos.Y, nil
}

// Package engine replays automation actions against a page through synthetic
// human-like input. It resolves natural-language targets via the resolver,
// enforces the sensitive-field security gate, and tracks the logical focus
// target across consecutive actions.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pagepilot/pagepilot/api/schemas"
	"github.com/pagepilot/pagepilot/internal/config"
	"github.com/pagepilot/pagepilot/internal/resolver"
)

// Machine-oriented failure reasons carried in ActionResult.Error. The plan
// runner maps them onto abort reasons.
const (
	ReasonElementNotFound   = "element_not_found"
	ReasonTargetUnavailable = "target_unavailable"
	ReasonTimeout           = "timeout"
	ReasonPermissionDenied  = "permission_denied"
	ReasonUnknownAction     = "unknown_action"
	ReasonUnknown           = "unknown"
)

// ActionResult is the outcome of one executed action. Element, when set, is
// the live handle acted on; it is only valid until the next action runs.
type ActionResult struct {
	Success bool
	Message string
	Element *resolver.Element
	// Error is a machine-oriented reason string, empty on success.
	Error string
}

// InteractionRecord is one diagnostic history entry.
type InteractionRecord struct {
	Action    schemas.AutomationAction
	Result    ActionResult
	Timestamp time.Time
}

// scrollPollInterval is how often the settle detector samples the scroll
// position while waiting for smooth scrolling to finish.
const scrollPollInterval = 50 * time.Millisecond

// Engine executes automation actions one at a time. It is not safe for
// concurrent use: exactly one plan runs per page context, enforced by the
// caller.
type Engine struct {
	page     Page
	resolver *resolver.Resolver
	cfg      config.EngineConfig
	logger   *zap.Logger
	clock    resolver.Clock
	delay    DelayFunc

	// lastFocused is the logical focus target carried between actions so a
	// plan can say "find X" then "click" without repeating the target. It
	// is a weak reference: liveness is re-checked before every reuse.
	lastFocused *resolver.Element

	mu      sync.Mutex
	history []InteractionRecord
}

// NewEngine wires an engine over page. A nil logger is replaced with a no-op
// one; the delay generator defaults to uniform randomness.
func NewEngine(page Page, res *resolver.Resolver, cfg config.EngineConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		page:     page,
		resolver: res,
		cfg:      cfg,
		logger:   logger,
		clock:    resolver.RealClock(),
		delay:    RandomDelay(rand.New(rand.NewSource(time.Now().UnixNano()))),
	}
}

// SetClock swaps the time source. Intended for tests.
func (e *Engine) SetClock(c resolver.Clock) { e.clock = c }

// SetDelayFunc swaps the randomized delay generator. Intended for tests.
func (e *Engine) SetDelayFunc(d DelayFunc) { e.delay = d }

// ExecuteAction dispatches one action. It never returns a Go error for page
// or plan problems: every failure mode is folded into the result so one bad
// action cannot crash a plan run. Only context cancellation propagates.
func (e *Engine) ExecuteAction(ctx context.Context, action schemas.AutomationAction) (result ActionResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Recovered panic during action execution",
				zap.String("act", string(action.Act)),
				zap.Any("panic", r))
			result = failure(fmt.Sprintf("Unknown error: %v", r), ReasonUnknown)
		}
		e.record(action, result)
	}()

	if !schemas.KnownVerb(action.Act) {
		return failure(fmt.Sprintf("Unknown action: %s", action.Act), ReasonUnknownAction)
	}
	if err := action.Validate(); err != nil {
		return failure(fmt.Sprintf("Invalid action: %v", err), ReasonUnknownAction)
	}

	e.logger.Debug("Executing action",
		zap.String("act", string(action.Act)),
		zap.String("target", action.Target))

	switch action.Act {
	case schemas.VerbFind:
		return e.handleFind(ctx, action)
	case schemas.VerbScroll:
		return e.handleScroll(ctx, action)
	case schemas.VerbFocus:
		return e.handleFocus(ctx, action)
	case schemas.VerbType:
		return e.handleType(ctx, action)
	case schemas.VerbClick:
		return e.handleClick(ctx, action)
	case schemas.VerbTab:
		return e.handleTab(ctx, action)
	case schemas.VerbWait:
		return e.handleWait(ctx, action)
	}
	return failure(fmt.Sprintf("Unknown action: %s", action.Act), ReasonUnknownAction)
}

// History returns a copy of the interaction log.
func (e *Engine) History() []InteractionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]InteractionRecord, len(e.history))
	copy(out, e.history)
	return out
}

// ClearHistory drops the interaction log.
func (e *Engine) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = nil
}

func (e *Engine) record(action schemas.AutomationAction, result ActionResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, InteractionRecord{
		Action:    action,
		Result:    result,
		Timestamp: e.clock.Now(),
	})
}

func (e *Engine) handleFind(ctx context.Context, action schemas.AutomationAction) ActionResult {
	match, err := e.resolver.FindElement(ctx, action.Target, resolver.Options{})
	if err != nil {
		return ctxFailure(err)
	}
	if match == nil {
		return failure(fmt.Sprintf("Could not find element matching %q", action.Target), ReasonElementNotFound)
	}
	e.lastFocused = match.Element
	return ActionResult{
		Success: true,
		Message: fmt.Sprintf("Found element (%s confidence: %s)", match.Confidence, match.Reason),
		Element: match.Element,
	}
}

func (e *Engine) handleScroll(ctx context.Context, action schemas.AutomationAction) ActionResult {
	el, res := e.resolveOrLast(ctx, action.Target, resolver.HintAny)
	if el == nil {
		return res
	}

	block := resolver.BlockCenter
	switch action.To {
	case schemas.ScrollTop:
		block = resolver.BlockStart
	case schemas.ScrollBottom:
		block = resolver.BlockEnd
	}

	if err := e.page.ScrollIntoView(ctx, el, block); err != nil {
		return failure(fmt.Sprintf("Failed to scroll: %v", err), ReasonUnknown)
	}
	if err := e.waitScrollSettle(ctx); err != nil {
		return ctxFailure(err)
	}
	return ActionResult{Success: true, Message: "Scrolled element into view", Element: el}
}

// waitScrollSettle polls the scroll position until it has been stable for the
// configured quiet window, bounded by the hard ceiling. Hitting the ceiling
// is not a failure; smooth scrolling on long pages legitimately takes a
// while and the element position is re-read afterwards anyway.
func (e *Engine) waitScrollSettle(ctx context.Context) error {
	start := e.clock.Now()
	lastX, lastY, err := e.page.ScrollPosition(ctx)
	if err != nil {
		return nil
	}
	stableSince := start

	for {
		if err := e.clock.Sleep(ctx, scrollPollInterval); err != nil {
			return err
		}
		now := e.clock.Now()

		x, y, err := e.page.ScrollPosition(ctx)
		if err != nil {
			return nil
		}
		if x != lastX || y != lastY {
			lastX, lastY = x, y
			stableSince = now
		}

		if now.Sub(stableSince) >= e.cfg.ScrollQuiet {
			return nil
		}
		if now.Sub(start) >= e.cfg.ScrollCeiling {
			return nil
		}
	}
}

func (e *Engine) handleFocus(ctx context.Context, action schemas.AutomationAction) ActionResult {
	el, res := e.resolveOrLast(ctx, action.Target, resolver.HintAny)
	if el == nil {
		return res
	}

	if !el.Focusable {
		return failure("Element is not focusable", ReasonTargetUnavailable)
	}
	if err := e.page.Focus(ctx, el); err != nil {
		return failure(fmt.Sprintf("Failed to focus element: %v", err), ReasonTargetUnavailable)
	}

	active, err := e.page.ActiveElement(ctx)
	if err != nil || active == nil || active.ID != el.ID {
		return failure("Failed to focus element", ReasonTargetUnavailable)
	}

	e.lastFocused = el
	return ActionResult{Success: true, Message: "Focused element", Element: el}
}

func (e *Engine) handleClick(ctx context.Context, action schemas.AutomationAction) ActionResult {
	el, res := e.resolveOrLast(ctx, action.Target, resolver.HintButton)
	if el == nil {
		return res
	}

	// confirm is advisory metadata: the orchestration layer gates high-risk
	// clicks before they ever reach the engine, so here it is only logged.
	if action.Confirm {
		e.logger.Info("Executing confirmed high-risk click",
			zap.String("element", el.ID))
	}

	// For inputs, an associated label is the better click target: it
	// toggles checkboxes and radios reliably and matches what a person
	// actually aims for.
	clickTarget := el
	if el.Tag == "input" {
		if label, err := e.page.AssociatedLabel(ctx, el); err == nil && label != nil {
			clickTarget = label
		}
	}

	x, y := clickTarget.Box.Center()

	down := schemas.MouseEventData{Type: schemas.MouseDown, X: x, Y: y, Button: schemas.ButtonLeft, ClickCount: 1}
	up := schemas.MouseEventData{Type: schemas.MouseUp, X: x, Y: y, Button: schemas.ButtonLeft, ClickCount: 1}
	click := schemas.MouseEventData{Type: schemas.MouseClick, X: x, Y: y, Button: schemas.ButtonLeft, ClickCount: 1}

	if err := e.page.DispatchMouse(ctx, clickTarget, down); err != nil {
		return failure(fmt.Sprintf("Failed to click: %v", err), ReasonUnknown)
	}
	if err := e.clock.Sleep(ctx, e.delay(e.cfg.ClickHoldMin, e.cfg.ClickHoldMax)); err != nil {
		return ctxFailure(err)
	}
	if err := e.page.DispatchMouse(ctx, clickTarget, up); err != nil {
		return failure(fmt.Sprintf("Failed to click: %v", err), ReasonUnknown)
	}
	if err := e.page.DispatchMouse(ctx, clickTarget, click); err != nil {
		return failure(fmt.Sprintf("Failed to click: %v", err), ReasonUnknown)
	}

	return ActionResult{Success: true, Message: "Clicked element", Element: el}
}

func (e *Engine) handleTab(ctx context.Context, action schemas.AutomationAction) ActionResult {
	before, _ := e.page.ActiveElement(ctx)

	// A nil element targets the active element (or body) in DispatchKey.
	if err := e.page.DispatchKey(ctx, nil, schemas.KeyEventData{Type: schemas.KeyDown, Key: "Tab"}); err != nil {
		return failure(fmt.Sprintf("Failed to dispatch Tab: %v", err), ReasonUnknown)
	}
	if err := e.page.DispatchKey(ctx, nil, schemas.KeyEventData{Type: schemas.KeyUp, Key: "Tab"}); err != nil {
		return failure(fmt.Sprintf("Failed to dispatch Tab: %v", err), ReasonUnknown)
	}

	if err := e.clock.Sleep(ctx, e.cfg.TabSettle); err != nil {
		return ctxFailure(err)
	}

	after, err := e.page.ActiveElement(ctx)
	if err == nil && after != nil && (before == nil || after.ID != before.ID) {
		e.lastFocused = after
		return ActionResult{Success: true, Message: "Focus moved to next element", Element: after}
	}
	return ActionResult{Success: true, Message: "Dispatched Tab key"}
}

func (e *Engine) handleWait(ctx context.Context, action schemas.AutomationAction) ActionResult {
	d := e.cfg.DefaultWait
	if action.WaitMs > 0 {
		d = time.Duration(action.WaitMs) * time.Millisecond
	}
	if err := e.clock.Sleep(ctx, d); err != nil {
		return ctxFailure(err)
	}
	return ActionResult{Success: true, Message: fmt.Sprintf("Waited %v", d)}
}

// resolveOrLast resolves the given target, or falls back to the last focused
// element when the target is empty. The fallback is re-validated against the
// live document first; a detached node is discarded rather than reused. On
// failure the element is nil and the second value is the result to return.
// It never updates lastFocused: only find, focus and a successful tab move
// the logical focus target.
func (e *Engine) resolveOrLast(ctx context.Context, target string, hint resolver.TypeHint) (*resolver.Element, ActionResult) {
	if target != "" {
		match, err := e.resolver.FindElement(ctx, target, resolver.Options{Type: hint})
		if err != nil {
			return nil, ctxFailure(err)
		}
		if match == nil {
			return nil, failure(fmt.Sprintf("Could not find element matching %q", target), ReasonElementNotFound)
		}
		return match.Element, ActionResult{}
	}

	if e.lastFocused == nil {
		return nil, failure("No target specified and no element in focus", ReasonTargetUnavailable)
	}
	attached, err := e.page.Refresh(ctx, e.lastFocused)
	if err != nil || !attached {
		e.lastFocused = nil
		return nil, failure("Previously focused element is no longer on the page", ReasonTargetUnavailable)
	}
	return e.lastFocused, ActionResult{}
}

func failure(message, reason string) ActionResult {
	return ActionResult{Success: false, Message: message, Error: reason}
}

// ctxFailure converts a context cancellation into a timeout-flavored failed
// result so the plan loop still produces a complete summary.
func ctxFailure(err error) ActionResult {
	return ActionResult{Success: false, Message: fmt.Sprintf("Aborted: %v", err), Error: ReasonTimeout}
}

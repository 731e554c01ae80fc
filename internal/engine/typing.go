package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pagepilot/pagepilot/api/schemas"
	"github.com/pagepilot/pagepilot/internal/resolver"
)

// sensitiveMessage is shown verbatim to the user when the security gate
// refuses a type action.
const sensitiveMessage = "Cannot type into password or payment fields for security reasons"

// autocomplete tokens that mark a field as payment data.
var paymentAutocompleteTokens = []string{"cc-name", "cc-number", "cc-exp", "cc-csc", "cc-type"}

// IsSensitiveField reports whether typing into el must be refused: password
// inputs and anything whose autocomplete metadata marks it as credit card
// data. The check runs before any event is dispatched.
func IsSensitiveField(el *resolver.Element) bool {
	if el.InputType() == "password" {
		return true
	}
	auto := strings.ToLower(el.Attr("autocomplete"))
	if auto == "" {
		return false
	}
	for _, tok := range paymentAutocompleteTokens {
		if strings.Contains(auto, tok) {
			return true
		}
	}
	return false
}

func (e *Engine) handleType(ctx context.Context, action schemas.AutomationAction) ActionResult {
	el, res := e.resolveOrLast(ctx, action.Target, resolver.HintInput)
	if el == nil {
		return res
	}

	if IsSensitiveField(el) {
		e.logger.Warn("Refused to type into sensitive field",
			zap.String("element", el.ID))
		return failure(sensitiveMessage, ReasonPermissionDenied)
	}

	if err := e.page.Focus(ctx, el); err != nil {
		return failure(fmt.Sprintf("Failed to focus element: %v", err), ReasonTargetUnavailable)
	}
	if err := e.page.SetValue(ctx, el, ""); err != nil {
		return failure(fmt.Sprintf("Failed to clear element value: %v", err), ReasonUnknown)
	}

	var err error
	if action.PerChar {
		err = e.typePerChar(ctx, el, action.Text)
	} else {
		err = e.typeByWord(ctx, el, action.Text)
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctxFailure(err)
		}
		return failure(fmt.Sprintf("Failed to type text: %v", err), ReasonUnknown)
	}

	// One final change event, whichever mode ran.
	if err := e.page.DispatchElementEvent(ctx, el, schemas.EventChange); err != nil {
		return failure(fmt.Sprintf("Failed to dispatch change event: %v", err), ReasonUnknown)
	}

	return ActionResult{
		Success: true,
		Message: fmt.Sprintf("Typed %d characters", len([]rune(action.Text))),
		Element: el,
	}
}

// typePerChar synthesizes the full keyboard cycle for every character. It is
// the high-fidelity mode: per-key events trigger framework validators that
// value assignment alone would miss.
func (e *Engine) typePerChar(ctx context.Context, el *resolver.Element, text string) error {
	var typed strings.Builder
	for _, r := range text {
		key := string(r)
		if err := e.page.DispatchKey(ctx, el, schemas.KeyEventData{Type: schemas.KeyDown, Key: key}); err != nil {
			return err
		}
		if err := e.page.DispatchKey(ctx, el, schemas.KeyEventData{Type: schemas.KeyPress, Key: key}); err != nil {
			return err
		}
		typed.WriteRune(r)
		if err := e.page.SetValue(ctx, el, typed.String()); err != nil {
			return err
		}
		if err := e.page.DispatchElementEvent(ctx, el, schemas.EventInput); err != nil {
			return err
		}
		if err := e.page.DispatchKey(ctx, el, schemas.KeyEventData{Type: schemas.KeyUp, Key: key}); err != nil {
			return err
		}
		if err := e.clock.Sleep(ctx, e.delay(e.cfg.CharDelayMin, e.cfg.CharDelayMax)); err != nil {
			return err
		}
	}
	return nil
}

// typeByWord appends characters quickly and raises one input event per
// completed word, with a longer pause between words. Faster than per-char at
// the cost of fewer per-key side effects.
func (e *Engine) typeByWord(ctx context.Context, el *resolver.Element, text string) error {
	words := strings.Split(text, " ")
	var typed strings.Builder

	for i, word := range words {
		if i > 0 {
			typed.WriteString(" ")
			if err := e.page.SetValue(ctx, el, typed.String()); err != nil {
				return err
			}
			if err := e.clock.Sleep(ctx, e.delay(e.cfg.WordPauseMin, e.cfg.WordPauseMax)); err != nil {
				return err
			}
		}
		for _, r := range word {
			typed.WriteRune(r)
			if err := e.page.SetValue(ctx, el, typed.String()); err != nil {
				return err
			}
			if err := e.clock.Sleep(ctx, e.delay(e.cfg.WordCharDelayMin, e.cfg.WordCharDelayMax)); err != nil {
				return err
			}
		}
		if err := e.page.DispatchElementEvent(ctx, el, schemas.EventInput); err != nil {
			return err
		}
	}
	return nil
}

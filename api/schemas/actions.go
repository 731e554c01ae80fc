package schemas

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// -- Plan Schemas --

// ActionVerb identifies one of the interaction verbs the engine understands.
// Plans arrive from an external planner as untrusted JSON, so the verb set is
// open on the wire; the engine rejects anything outside this list with a
// failed result rather than an error.
type ActionVerb string

const (
	VerbFind   ActionVerb = "find"
	VerbScroll ActionVerb = "scroll"
	VerbFocus  ActionVerb = "focus"
	VerbType   ActionVerb = "type"
	VerbClick  ActionVerb = "click"
	VerbTab    ActionVerb = "tab"
	VerbWait   ActionVerb = "wait"
)

// KnownVerb reports whether v is one of the verbs the engine implements.
func KnownVerb(v ActionVerb) bool {
	switch v {
	case VerbFind, VerbScroll, VerbFocus, VerbType, VerbClick, VerbTab, VerbWait:
		return true
	}
	return false
}

// ScrollAnchor names the viewport position a scroll action aims for.
type ScrollAnchor string

const (
	ScrollCenter ScrollAnchor = "center"
	ScrollTop    ScrollAnchor = "top"
	ScrollBottom ScrollAnchor = "bottom"
)

// AutomationAction is a single step in a plan. Optional fields are only
// meaningful for certain verbs; the engine validates on dispatch.
type AutomationAction struct {
	Act     ActionVerb   `json:"act"`
	Target  string       `json:"target,omitempty"`
	To      ScrollAnchor `json:"to,omitempty"`
	Text    string       `json:"text,omitempty"`
	PerChar bool         `json:"perChar,omitempty"`
	Confirm bool         `json:"confirm,omitempty"`
	WaitMs  int          `json:"waitMs,omitempty"`
}

// Validate checks the structural invariants that do not depend on page state.
// An unknown verb is NOT a validation error here: the engine turns it into a
// failed step so a single bad action never sinks plan decoding.
func (a AutomationAction) Validate() error {
	if a.Act == VerbType && a.Text == "" {
		return fmt.Errorf("type action requires text")
	}
	if a.Act == VerbFind && strings.TrimSpace(a.Target) == "" {
		return fmt.Errorf("find action requires a target description")
	}
	return nil
}

var planJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// DecodePlan parses an externally produced plan. It is deliberately lenient:
// unknown fields and unknown verbs are preserved as-is and handled at
// execution time.
func DecodePlan(data []byte) ([]AutomationAction, error) {
	var plan []AutomationAction
	if err := planJSON.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("malformed plan JSON: %w", err)
	}
	return plan, nil
}

// EncodeSummary renders an ExecutionSummary for the caller as plain JSON.
func EncodeSummary(s ExecutionSummary) ([]byte, error) {
	out, err := planJSON.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode summary: %w", err)
	}
	return out, nil
}

package schemas

// -- Execution Result Schemas --

// StepStatus records the fate of one planned action.
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepSkipped StepStatus = "skipped"
	StepFailed  StepStatus = "failed"
)

// AbortReason classifies why a plan stopped before completing.
type AbortReason string

const (
	// AbortResolverConfidenceLow: best match below the usable threshold, or
	// the resolver timed out with no candidates at all.
	AbortResolverConfidenceLow AbortReason = "resolver_confidence_low"
	// AbortTargetUnavailable: an element was found but stayed invisible or
	// non-interactable after retries.
	AbortTargetUnavailable AbortReason = "target_unavailable"
	// AbortTimeout: an action's own wait or polling ceiling elapsed.
	AbortTimeout AbortReason = "timeout"
	// AbortPermissionDenied: sensitive-field or confirmation-gate refusal.
	AbortPermissionDenied AbortReason = "permission_denied"
	// AbortUnknown: an unexpected failure during event dispatch or DOM
	// access, recovered at the action boundary.
	AbortUnknown AbortReason = "unknown"
)

// ExecutionStepResult pairs a planned action with its outcome.
type ExecutionStepResult struct {
	Action  AutomationAction `json:"action"`
	Status  StepStatus       `json:"status"`
	Message string           `json:"message,omitempty"`
}

// ExecutionSummary is the final, immutable record of one plan run. Steps
// always has exactly one entry per planned action; entries past the point of
// failure carry StepSkipped.
type ExecutionSummary struct {
	RunID       string                `json:"run_id"`
	Completed   bool                  `json:"completed"`
	AbortReason AbortReason           `json:"abort_reason,omitempty"`
	Steps       []ExecutionStepResult `json:"steps"`
	DurationMs  int64                 `json:"duration_ms"`
}

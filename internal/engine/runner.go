package engine

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pagepilot/pagepilot/api/schemas"
)

// ExecutePlan runs an ordered plan to completion or first failure. The
// returned summary always lists one step per planned action: steps after the
// failure point are recorded as skipped, never attempted. ExecutePlan never
// returns an error; even a cancelled context yields a complete summary with
// the remaining steps skipped.
func (e *Engine) ExecutePlan(ctx context.Context, plan []schemas.AutomationAction) schemas.ExecutionSummary {
	runID := uuid.NewString()
	log := e.logger.With(zap.String("run_id", runID))
	log.Info("Executing plan", zap.Int("steps", len(plan)))

	start := e.clock.Now()

	// Pacing between steps so rapid synthetic events do not overwhelm the
	// page. The limiter's first token is free, so the wait lands between
	// steps rather than before the first one.
	pacing := rate.NewLimiter(rate.Every(e.cfg.StepPacing), 1)

	summary := schemas.ExecutionSummary{
		RunID:     runID,
		Completed: true,
		Steps:     make([]schemas.ExecutionStepResult, 0, len(plan)),
	}

	aborted := false
	for _, action := range plan {
		if aborted {
			summary.Steps = append(summary.Steps, schemas.ExecutionStepResult{
				Action: action,
				Status: schemas.StepSkipped,
			})
			continue
		}

		if err := pacing.Wait(ctx); err != nil {
			aborted = true
			summary.Completed = false
			summary.AbortReason = schemas.AbortTimeout
			summary.Steps = append(summary.Steps, schemas.ExecutionStepResult{
				Action:  action,
				Status:  schemas.StepFailed,
				Message: "Aborted: " + err.Error(),
			})
			continue
		}

		result := e.ExecuteAction(ctx, action)
		if result.Success {
			summary.Steps = append(summary.Steps, schemas.ExecutionStepResult{
				Action:  action,
				Status:  schemas.StepSuccess,
				Message: result.Message,
			})
			continue
		}

		log.Warn("Plan step failed, skipping remainder",
			zap.String("act", string(action.Act)),
			zap.String("message", result.Message),
			zap.String("reason", result.Error))

		aborted = true
		summary.Completed = false
		summary.AbortReason = abortReasonFor(result.Error)
		summary.Steps = append(summary.Steps, schemas.ExecutionStepResult{
			Action:  action,
			Status:  schemas.StepFailed,
			Message: result.Message,
		})
	}

	summary.DurationMs = e.clock.Now().Sub(start).Milliseconds()
	log.Info("Plan finished",
		zap.Bool("completed", summary.Completed),
		zap.Int64("duration_ms", summary.DurationMs))
	return summary
}

// abortReasonFor maps an ActionResult failure reason onto the summary's
// abort taxonomy.
func abortReasonFor(reason string) schemas.AbortReason {
	switch reason {
	case ReasonElementNotFound:
		return schemas.AbortResolverConfidenceLow
	case ReasonTargetUnavailable:
		return schemas.AbortTargetUnavailable
	case ReasonTimeout:
		return schemas.AbortTimeout
	case ReasonPermissionDenied:
		return schemas.AbortPermissionDenied
	default:
		return schemas.AbortUnknown
	}
}

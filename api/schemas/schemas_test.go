package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePlan(t *testing.T) {
	data := []byte(`[
		{"act":"find","target":"student id"},
		{"act":"scroll","to":"center"},
		{"act":"focus"},
		{"act":"type","text":"12345678","perChar":true},
		{"act":"find","target":"save"},
		{"act":"click","confirm":true}
	]`)

	plan, err := DecodePlan(data)
	require.NoError(t, err)
	require.Len(t, plan, 6)

	assert.Equal(t, VerbFind, plan[0].Act)
	assert.Equal(t, "student id", plan[0].Target)
	assert.Equal(t, ScrollCenter, plan[1].To)
	assert.True(t, plan[3].PerChar)
	assert.True(t, plan[5].Confirm)
}

func TestDecodePlan_UnknownVerbSurvivesDecoding(t *testing.T) {
	// Plans come from an external planner; a verb this build does not know
	// must decode fine and be rejected at execution time instead.
	plan, err := DecodePlan([]byte(`[{"act":"hover","target":"menu"}]`))
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.False(t, KnownVerb(plan[0].Act))
}

func TestDecodePlan_Malformed(t *testing.T) {
	_, err := DecodePlan([]byte(`{"act":"find"}`)) // object, not array
	assert.Error(t, err)

	_, err = DecodePlan([]byte(`[{`))
	assert.Error(t, err)
}

func TestKnownVerb(t *testing.T) {
	for _, v := range []ActionVerb{VerbFind, VerbScroll, VerbFocus, VerbType, VerbClick, VerbTab, VerbWait} {
		assert.True(t, KnownVerb(v), string(v))
	}
	assert.False(t, KnownVerb("submit"))
	assert.False(t, KnownVerb(""))
}

func TestValidate(t *testing.T) {
	assert.Error(t, AutomationAction{Act: VerbType}.Validate())
	assert.NoError(t, AutomationAction{Act: VerbType, Text: "x"}.Validate())
	assert.Error(t, AutomationAction{Act: VerbFind, Target: "  "}.Validate())
	assert.NoError(t, AutomationAction{Act: VerbFind, Target: "save"}.Validate())
	assert.NoError(t, AutomationAction{Act: VerbWait}.Validate())
}

func TestEncodeSummary(t *testing.T) {
	summary := ExecutionSummary{
		RunID:       "run-1",
		Completed:   false,
		AbortReason: AbortPermissionDenied,
		Steps: []ExecutionStepResult{
			{Action: AutomationAction{Act: VerbType, Target: "password", Text: "x"}, Status: StepFailed, Message: "refused"},
		},
		DurationMs: 42,
	}

	out, err := EncodeSummary(summary)
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, `"abort_reason": "permission_denied"`)
	assert.Contains(t, s, `"status": "failed"`)
	assert.Contains(t, s, `"duration_ms": 42`)
}

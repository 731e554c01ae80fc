package engine

import (
	"fmt"

	"github.com/pagepilot/pagepilot/api/schemas"
)

// textPreviewLimit bounds how much of a type action's text appears in
// human-readable output.
const textPreviewLimit = 32

// DescribeAction renders an action for display. It is a pure function of the
// action: typed text is truncated to a short preview so summaries never leak
// unbounded strings into the UI.
func DescribeAction(a schemas.AutomationAction) string {
	switch a.Act {
	case schemas.VerbFind:
		return fmt.Sprintf("Find %q", a.Target)
	case schemas.VerbScroll:
		if a.Target != "" {
			return fmt.Sprintf("Scroll to %q", a.Target)
		}
		return "Scroll to current element"
	case schemas.VerbFocus:
		if a.Target != "" {
			return fmt.Sprintf("Focus %q", a.Target)
		}
		return "Focus current element"
	case schemas.VerbType:
		if a.Target != "" {
			return fmt.Sprintf("Type %q into %q", truncateText(a.Text), a.Target)
		}
		return fmt.Sprintf("Type %q", truncateText(a.Text))
	case schemas.VerbClick:
		if a.Target != "" {
			return fmt.Sprintf("Click %q", a.Target)
		}
		return "Click current element"
	case schemas.VerbTab:
		return "Press Tab"
	case schemas.VerbWait:
		if a.WaitMs > 0 {
			return fmt.Sprintf("Wait %dms", a.WaitMs)
		}
		return "Wait"
	}
	return fmt.Sprintf("Unknown action: %s", a.Act)
}

func truncateText(s string) string {
	runes := []rune(s)
	if len(runes) <= textPreviewLimit {
		return s
	}
	return string(runes[:textPreviewLimit]) + "…"
}

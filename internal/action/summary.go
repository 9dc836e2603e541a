package action

import (
	"fmt"
	"strings"

	"donna/internal/model"
)

// Summarize folds an outcome list into one user-facing narrative,
// preserving outcome order.
func Summarize(outcomes []model.ActionOutcome) string {
	if len(outcomes) == 0 {
		return "I didn't find anything to do for that request."
	}

	if len(outcomes) == 1 {
		o := outcomes[0]
		if o.Success {
			return o.Message
		}
		return o.Message + " Please try again or rephrase your request."
	}

	succeeded := 0
	lines := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Success {
			succeeded++
			lines = append(lines, "- "+o.Message)
		} else {
			lines = append(lines, "- Failed: "+o.Message)
		}
	}

	var header string
	switch {
	case succeeded == len(outcomes):
		header = fmt.Sprintf("Done. All %d actions succeeded.", len(outcomes))
	case succeeded == 0:
		header = fmt.Sprintf("None of the %d actions succeeded. Please try again or rephrase your request.", len(outcomes))
	default:
		header = fmt.Sprintf("%d of %d actions succeeded.", succeeded, len(outcomes))
	}

	return header + "\n" + strings.Join(lines, "\n")
}

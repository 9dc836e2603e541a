package model

// ActionOutcome records the result of one executed action. Outcome lists
// are append-only per request; a failed action never removes or replaces
// a sibling's outcome.
type ActionOutcome struct {
	Action  Action
	Success bool
	Message string
	Result  map[string]any
}

func SuccessOutcome(a Action, message string, result map[string]any) ActionOutcome {
	return ActionOutcome{Action: a, Success: true, Message: message, Result: result}
}

func FailureOutcome(a Action, message string) ActionOutcome {
	return ActionOutcome{Action: a, Success: false, Message: message}
}

package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"donna/internal/model"
)

// Workflow statuses recorded in the outcome log.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// ErrShortCircuit marks a step whose dependency from an earlier step is
// missing; the chain stops with a degraded partial-success outcome
// instead of crashing.
var ErrShortCircuit = errors.New("missing result from earlier step")

// Step is one unit of a workflow: an operation plus the outcome wording
// used when it fails. Steps communicate through Run.Values.
type Step struct {
	Name string
	Run  func(ctx context.Context, run *Run) (string, error)
}

// Run is the mutable state of one workflow execution.
type Run struct {
	Rule     model.AutomationRule
	Event    model.TriggerEvent
	Values   map[string]any
	Messages []string
}

func newRun(rule model.AutomationRule, evt model.TriggerEvent) *Run {
	return &Run{Rule: rule, Event: evt, Values: make(map[string]any)}
}

// WorkflowOutcome summarizes one rule execution against one event.
type WorkflowOutcome struct {
	Status  string
	Message string
}

// runSteps executes steps in order. A step failure halts only the
// remaining steps of this rule's execution; each step's result is
// independently logged.
func runSteps(ctx context.Context, logger *zap.Logger, run *Run, steps []Step) WorkflowOutcome {
	completed := 0
	for _, step := range steps {
		msg, err := step.Run(ctx, run)
		if err != nil {
			logger.Warn("Workflow step failed",
				zap.String("rule_id", run.Rule.ID),
				zap.String("step", step.Name),
				zap.Error(err),
			)
			run.Messages = append(run.Messages, fmt.Sprintf("%s failed: %v", step.Name, err))

			status := StatusFailed
			if completed > 0 {
				status = StatusPartial
			}
			return WorkflowOutcome{Status: status, Message: strings.Join(run.Messages, "; ")}
		}

		logger.Info("Workflow step completed",
			zap.String("rule_id", run.Rule.ID),
			zap.String("step", step.Name),
		)
		if msg != "" {
			run.Messages = append(run.Messages, msg)
		}
		completed++
	}

	return WorkflowOutcome{Status: StatusSuccess, Message: strings.Join(run.Messages, "; ")}
}

func (r *Run) stringValue(key string) (string, error) {
	v, ok := r.Values[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrShortCircuit, key)
	}
	return v, nil
}

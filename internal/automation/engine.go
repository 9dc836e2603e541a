package automation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"donna/internal/model"
	"donna/pkg/metrics"
)

type ruleStore interface {
	ListActive(ctx context.Context, ownerID int, trigger model.TriggerType) ([]model.AutomationRule, error)
}

type outcomeStore interface {
	Insert(ctx context.Context, ownerID int, ruleID, eventID, status, message string) error
}

type eventDeduper interface {
	AcquireOnce(ctx context.Context, eventID, ruleID string) bool
}

type pendingTaskStore interface {
	ListPending(ctx context.Context, ownerID int) ([]model.PendingTask, error)
	Complete(ctx context.Context, id string) (bool, error)
}

type workflowExecutor interface {
	Execute(ctx context.Context, rule model.AutomationRule, evt model.TriggerEvent) WorkflowOutcome
}

// Engine replays persisted automation rules against inbound trigger
// events. Rule executions are isolated from each other and guarded by a
// per-(event, rule) idempotency key, so redelivered events do not repeat
// side effects.
type Engine struct {
	rules     ruleStore
	outcomes  outcomeStore
	tasks     pendingTaskStore
	deduper   eventDeduper
	workflows workflowExecutor
	logger    *zap.Logger
}

func NewEngine(
	rules ruleStore,
	outcomes outcomeStore,
	tasks pendingTaskStore,
	deduper eventDeduper,
	workflows workflowExecutor,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		rules:     rules,
		outcomes:  outcomes,
		tasks:     tasks,
		deduper:   deduper,
		workflows: workflows,
		logger:    logger,
	}
}

// HandleEvent looks up the owner's active rules for the event's trigger
// type and executes each matching one. A rule's workflow failure is
// recorded, never returned: only infrastructure errors (store lookups)
// propagate, so the message queue retries those and only those.
func (e *Engine) HandleEvent(ctx context.Context, evt model.TriggerEvent) error {
	rules, err := e.rules.ListActive(ctx, evt.OwnerID, evt.TriggerType)
	if err != nil {
		return fmt.Errorf("list active rules: %w", err)
	}

	e.logger.Info("Trigger event received",
		zap.String("event_id", evt.ID),
		zap.String("trigger", string(evt.TriggerType)),
		zap.Int("owner_id", evt.OwnerID),
		zap.Int("matched_rules", len(rules)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, rule := range rules {
		g.Go(func() error {
			e.executeRule(gctx, rule, evt)
			return nil
		})
	}
	_ = g.Wait()

	e.completePendingTasks(ctx, evt)
	return nil
}

func (e *Engine) executeRule(ctx context.Context, rule model.AutomationRule, evt model.TriggerEvent) {
	trigger := string(evt.TriggerType)

	if !guardMatches(rule, evt) {
		e.logger.Debug("Rule guard mismatch, skipping",
			zap.String("rule_id", rule.ID),
			zap.String("event_id", evt.ID),
			zap.String("person_filter", rule.Params.PersonName),
		)
		metrics.IncrementRuleExecution(trigger, "skipped")
		return
	}

	if !e.deduper.AcquireOnce(ctx, evt.ID, rule.ID) {
		e.logger.Info("Duplicate event delivery for rule, skipping",
			zap.String("rule_id", rule.ID),
			zap.String("event_id", evt.ID),
		)
		metrics.IncrementRuleExecution(trigger, "duplicate")
		return
	}

	outcome := e.workflows.Execute(ctx, rule, evt)
	metrics.IncrementRuleExecution(trigger, outcome.Status)

	e.logger.Info("Rule executed",
		zap.String("rule_id", rule.ID),
		zap.String("event_id", evt.ID),
		zap.String("status", outcome.Status),
		zap.String("message", outcome.Message),
	)

	// Outcomes are logged, not surfaced to chat.
	if err := e.outcomes.Insert(ctx, rule.OwnerID, rule.ID, evt.ID, outcome.Status, outcome.Message); err != nil {
		e.logger.Error("Failed to record rule outcome",
			zap.String("rule_id", rule.ID),
			zap.Error(err),
		)
	}
}

// guardMatches applies the rule's sender filter, when present, to the
// event. A mismatch is not an error; the rule simply does not fire.
func guardMatches(rule model.AutomationRule, evt model.TriggerEvent) bool {
	person := strings.ToLower(rule.Params.PersonName)
	if person == "" {
		return true
	}
	switch {
	case evt.Email != nil:
		return strings.Contains(strings.ToLower(evt.Email.Sender), person)
	case evt.CRM != nil:
		return strings.Contains(strings.ToLower(evt.CRM.Name), person)
	default:
		return true
	}
}

// completePendingTasks resolves parked tasks whose context matches the
// event: every recognized context key must match the corresponding
// event field (case-insensitive substring for sender-ish keys).
func (e *Engine) completePendingTasks(ctx context.Context, evt model.TriggerEvent) {
	tasks, err := e.tasks.ListPending(ctx, evt.OwnerID)
	if err != nil {
		e.logger.Error("Failed to list pending tasks", zap.Error(err))
		return
	}

	for _, task := range tasks {
		if !taskMatchesEvent(task, evt) {
			continue
		}
		won, err := e.tasks.Complete(ctx, task.ID)
		if err != nil {
			e.logger.Error("Failed to complete pending task",
				zap.String("task_id", task.ID),
				zap.Error(err),
			)
			continue
		}
		if won {
			e.logger.Info("Pending task completed by event",
				zap.String("task_id", task.ID),
				zap.String("event_id", evt.ID),
			)
		}
	}
}

func taskMatchesEvent(task model.PendingTask, evt model.TriggerEvent) bool {
	if len(task.Context) == 0 {
		return false
	}

	matched := false
	for key, want := range task.Context {
		var got string
		switch key {
		case "trigger_type":
			got = string(evt.TriggerType)
		case "sender":
			if evt.Email == nil {
				return false
			}
			got = evt.Email.Sender
		case "subject", "subject_contains":
			if evt.Email == nil {
				return false
			}
			got = evt.Email.Subject
		case "title":
			if evt.Calendar == nil {
				return false
			}
			got = evt.Calendar.Title
		case "name":
			if evt.CRM == nil {
				return false
			}
			got = evt.CRM.Name
		default:
			// unrecognized keys are carried context, not constraints
			continue
		}
		if !strings.Contains(strings.ToLower(got), strings.ToLower(want)) {
			return false
		}
		matched = true
	}
	return matched
}

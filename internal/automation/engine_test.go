package automation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"donna/internal/model"
)

type fakeRuleStore struct {
	rules []model.AutomationRule
	err   error
}

func (f *fakeRuleStore) ListActive(ctx context.Context, ownerID int, trigger model.TriggerType) ([]model.AutomationRule, error) {
	return f.rules, f.err
}

type fakeOutcomeStore struct {
	mu       sync.Mutex
	statuses []string
}

func (f *fakeOutcomeStore) Insert(ctx context.Context, ownerID int, ruleID, eventID, status, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return nil
}

type fakeDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (f *fakeDeduper) AcquireOnce(ctx context.Context, eventID, ruleID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	key := eventID + ":" + ruleID
	if f.seen[key] {
		return false
	}
	f.seen[key] = true
	return true
}

type fakePendingTasks struct {
	tasks     []model.PendingTask
	completed []string
}

func (f *fakePendingTasks) ListPending(ctx context.Context, ownerID int) ([]model.PendingTask, error) {
	return f.tasks, nil
}

func (f *fakePendingTasks) Complete(ctx context.Context, id string) (bool, error) {
	f.completed = append(f.completed, id)
	return true, nil
}

type fakeWorkflows struct {
	mu       sync.Mutex
	executed []string
	outcome  WorkflowOutcome
}

func (f *fakeWorkflows) Execute(ctx context.Context, rule model.AutomationRule, evt model.TriggerEvent) WorkflowOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, rule.ID)
	if f.outcome.Status == "" {
		return WorkflowOutcome{Status: StatusSuccess, Message: "ok"}
	}
	return f.outcome
}

func newTestEngine(rules *fakeRuleStore, outcomes *fakeOutcomeStore, tasks *fakePendingTasks, wf *fakeWorkflows) *Engine {
	return NewEngine(rules, outcomes, tasks, &fakeDeduper{}, wf, zap.NewNop())
}

func TestHandleEventExecutesMatchingRules(t *testing.T) {
	rules := &fakeRuleStore{rules: []model.AutomationRule{
		{ID: "r-1", OwnerID: 7, TriggerType: model.TriggerEmailReceived},
		{ID: "r-2", OwnerID: 7, TriggerType: model.TriggerEmailReceived},
	}}
	outcomes := &fakeOutcomeStore{}
	wf := &fakeWorkflows{}
	e := newTestEngine(rules, outcomes, &fakePendingTasks{}, wf)

	err := e.HandleEvent(context.Background(), emailEvent("jane@example.com", "Hi"))
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"r-1", "r-2"}, wf.executed)
	require.Len(t, outcomes.statuses, 2)
}

func TestHandleEventGuardSkipsMismatchedSender(t *testing.T) {
	rules := &fakeRuleStore{rules: []model.AutomationRule{
		{ID: "r-1", OwnerID: 7, Params: model.RuleParams{PersonName: "jane"}},
	}}
	outcomes := &fakeOutcomeStore{}
	wf := &fakeWorkflows{}
	e := newTestEngine(rules, outcomes, &fakePendingTasks{}, wf)

	err := e.HandleEvent(context.Background(), emailEvent("someone-else@example.com", "Hi"))
	require.NoError(t, err)
	require.Empty(t, wf.executed, "guard mismatch must not execute the workflow")
	require.Empty(t, outcomes.statuses)
}

func TestHandleEventGuardMatchesSenderSubstring(t *testing.T) {
	rules := &fakeRuleStore{rules: []model.AutomationRule{
		{ID: "r-1", OwnerID: 7, Params: model.RuleParams{PersonName: "jane"}},
	}}
	wf := &fakeWorkflows{}
	e := newTestEngine(rules, &fakeOutcomeStore{}, &fakePendingTasks{}, wf)

	err := e.HandleEvent(context.Background(), emailEvent("Jane Doe <jane@example.com>", "Hi"))
	require.NoError(t, err)
	require.Equal(t, []string{"r-1"}, wf.executed)
}

func TestHandleEventRedeliveryIsDeduplicated(t *testing.T) {
	rules := &fakeRuleStore{rules: []model.AutomationRule{{ID: "r-1", OwnerID: 7}}}
	wf := &fakeWorkflows{}
	e := newTestEngine(rules, &fakeOutcomeStore{}, &fakePendingTasks{}, wf)

	evt := emailEvent("jane@example.com", "Hi")
	require.NoError(t, e.HandleEvent(context.Background(), evt))
	require.NoError(t, e.HandleEvent(context.Background(), evt))

	require.Equal(t, []string{"r-1"}, wf.executed, "the second delivery must not repeat side effects")
}

func TestHandleEventStoreErrorPropagates(t *testing.T) {
	cause := errors.New("db down")
	e := newTestEngine(&fakeRuleStore{err: cause}, &fakeOutcomeStore{}, &fakePendingTasks{}, &fakeWorkflows{})

	err := e.HandleEvent(context.Background(), emailEvent("jane@example.com", "Hi"))
	require.ErrorIs(t, err, cause)
}

func TestHandleEventRecordsWorkflowStatus(t *testing.T) {
	rules := &fakeRuleStore{rules: []model.AutomationRule{{ID: "r-1", OwnerID: 7}}}
	outcomes := &fakeOutcomeStore{}
	wf := &fakeWorkflows{outcome: WorkflowOutcome{Status: StatusPartial, Message: "note failed"}}
	e := newTestEngine(rules, outcomes, &fakePendingTasks{}, wf)

	require.NoError(t, e.HandleEvent(context.Background(), emailEvent("jane@example.com", "Hi")))
	require.Equal(t, []string{StatusPartial}, outcomes.statuses)
}

func TestHandleEventCompletesMatchingPendingTask(t *testing.T) {
	tasks := &fakePendingTasks{tasks: []model.PendingTask{
		{ID: "t-1", OwnerID: 7, Status: model.TaskPending, Context: map[string]string{
			"trigger_type": string(model.TriggerEmailReceived),
			"sender":       "bob@example.com",
		}},
		{ID: "t-2", OwnerID: 7, Status: model.TaskPending, Context: map[string]string{
			"trigger_type": string(model.TriggerEmailReceived),
			"sender":       "carol@example.com",
		}},
	}}
	e := newTestEngine(&fakeRuleStore{}, &fakeOutcomeStore{}, tasks, &fakeWorkflows{})

	err := e.HandleEvent(context.Background(), emailEvent("Bob <bob@example.com>", "Re: Q3 numbers"))
	require.NoError(t, err)
	require.Equal(t, []string{"t-1"}, tasks.completed)
}

func TestTaskMatchesEventIgnoresUnknownKeys(t *testing.T) {
	task := model.PendingTask{Context: map[string]string{
		"sender": "bob@example.com",
		"origin": "rule r-2", // carried context, not a constraint
	}}
	require.True(t, taskMatchesEvent(task, emailEvent("bob@example.com", "Hi")))

	// A context with no recognized keys never matches.
	vague := model.PendingTask{Context: map[string]string{"origin": "rule r-2"}}
	require.False(t, taskMatchesEvent(vague, emailEvent("bob@example.com", "Hi")))
}

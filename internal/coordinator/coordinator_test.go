package coordinator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"donna/internal/action"
	"donna/internal/automation"
	"donna/internal/llm"
	"donna/internal/model"
)

type fakeCompleter struct {
	content string
	err     error
	calls   int
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Completion{Provider: "fake", Content: f.content}, nil
}

type fakeDispatcher struct {
	dispatched [][]model.Action
	outcomes   []model.ActionOutcome
}

func (f *fakeDispatcher) DispatchAll(ctx context.Context, dc action.DispatchContext, actions []model.Action) []model.ActionOutcome {
	f.dispatched = append(f.dispatched, actions)
	if f.outcomes != nil {
		return f.outcomes
	}
	out := make([]model.ActionOutcome, 0, len(actions))
	for _, a := range actions {
		out = append(out, model.SuccessOutcome(a, "done", nil))
	}
	return out
}

type fakeAutomations struct {
	rule         *model.AutomationRule
	err          error
	instructions []string
}

func (f *fakeAutomations) CreateFromInstruction(ctx context.Context, ownerID int, instruction string) (*model.AutomationRule, error) {
	f.instructions = append(f.instructions, instruction)
	return f.rule, f.err
}

type alwaysMatcher struct{}

func (alwaysMatcher) Canonicalize(string) (automation.Canonical, error) {
	return automation.Canonical{}, nil
}

type fakeLookup struct{ context string }

func (f *fakeLookup) RelevantContext(ctx context.Context, ownerID int, text string) string {
	return f.context
}

type fakeHistory struct {
	appended []string
}

func (f *fakeHistory) Append(ctx context.Context, conversationID, role, content string) {
	f.appended = append(f.appended, role+": "+content)
}

func (f *fakeHistory) Recent(ctx context.Context, conversationID string) []llm.Message {
	return nil
}

func allCaps() action.Capabilities {
	return action.Capabilities{Email: true, Calendar: true, CRM: true, Automation: true}
}

func newTestCoordinator(router completer, disp *fakeDispatcher, autos *fakeAutomations) *Coordinator {
	if disp == nil {
		disp = &fakeDispatcher{}
	}
	if autos == nil {
		autos = &fakeAutomations{rule: &model.AutomationRule{ID: "r-1", Active: true}}
	}
	return New(router, disp, autos, automation.NewMatcher(), &fakeLookup{}, &fakeHistory{}, allCaps(), zap.NewNop())
}

func request(text string) model.Request {
	return model.Request{UserID: 7, ConversationID: "conv-1", Text: text}
}

func TestHandleReplyPassedVerbatim(t *testing.T) {
	router := &fakeCompleter{content: `{"response": "You have no meetings today."}`}
	c := newTestCoordinator(router, nil, nil)

	reply := c.Handle(context.Background(), request("what's on my calendar?"))
	require.Equal(t, "You have no meetings today.", reply)
}

func TestHandleDispatchesActionSet(t *testing.T) {
	router := &fakeCompleter{content: `{"actions": [{"type": "send_email", "params": {"to": "sam@example.com"}}]}`}
	disp := &fakeDispatcher{}
	c := newTestCoordinator(router, disp, nil)

	reply := c.Handle(context.Background(), request("email sam@example.com that I'm running late"))
	require.Equal(t, "done", reply)
	require.Len(t, disp.dispatched, 1)
	require.Equal(t, model.ActionSendEmail, disp.dispatched[0][0].Kind)
}

func TestHandleAutomationPhraseSkipsModel(t *testing.T) {
	router := &fakeCompleter{content: "unused"}
	autos := &fakeAutomations{rule: &model.AutomationRule{
		ID: "r-1", Active: true,
		TriggerType: model.TriggerEmailReceived,
		ActionType:  model.ActionHandleEmailReceived,
	}}
	c := newTestCoordinator(router, nil, autos)

	reply := c.Handle(context.Background(), request("When I get an email from Jane, add her to the CRM"))
	require.Contains(t, reply, "Done")
	require.Len(t, autos.instructions, 1)
	require.Equal(t, 0, router.calls, "rule creation must not spend a model call")
}

func TestHandleWhenQuestionGoesToModel(t *testing.T) {
	router := &fakeCompleter{content: `{"response": "Your next meeting is at 3pm."}`}
	autos := &fakeAutomations{}
	c := newTestCoordinator(router, nil, autos)

	reply := c.Handle(context.Background(), request("When is my next meeting?"))
	require.Equal(t, "Your next meeting is at 3pm.", reply)
	require.Equal(t, 1, router.calls)
	require.Empty(t, autos.instructions, "a question is not an automation rule")
}

func TestHandleUnrecognizedAutomationPhraseUsesModel(t *testing.T) {
	router := &fakeCompleter{content: `{"response": "I can't automate that one."}`}
	autos := &fakeAutomations{}
	c := newTestCoordinator(router, nil, autos)

	reply := c.Handle(context.Background(), request("Whenever mercury is in retrograde, fix it"))
	require.Equal(t, "I can't automate that one.", reply)
	require.Equal(t, 1, router.calls)
	require.Empty(t, autos.instructions)
}

func TestHandleInactiveRuleReplyRecorded(t *testing.T) {
	autos := &fakeAutomations{rule: &model.AutomationRule{
		ID: "r-2", Active: false,
		Note: "unrecognized automation type: could not determine a trigger and action from this instruction",
	}}
	hist := &fakeHistory{}
	c := New(&fakeCompleter{}, &fakeDispatcher{}, autos, alwaysMatcher{}, &fakeLookup{}, hist, allCaps(), zap.NewNop())

	reply := c.Handle(context.Background(), request("When I get an email from Jane, add her to the CRM"))
	require.Contains(t, reply, "stored inactive")
	require.Len(t, hist.appended, 2)
	require.Equal(t, "assistant: "+reply, hist.appended[1])
}

func TestFallbackAsksForAddressInsteadOfGuessing(t *testing.T) {
	router := &fakeCompleter{err: errors.New("all providers failed")}
	disp := &fakeDispatcher{}
	c := newTestCoordinator(router, disp, nil)

	reply := c.Handle(context.Background(), request("send my accountant an email about the Q3 numbers"))
	require.Contains(t, reply, "exact email address")
	require.Empty(t, disp.dispatched, "no address means nothing may be dispatched")
}

func TestFallbackSendsDirectEmailWhenAddressPresent(t *testing.T) {
	router := &fakeCompleter{err: errors.New("all providers failed")}
	disp := &fakeDispatcher{}
	c := newTestCoordinator(router, disp, nil)

	reply := c.Handle(context.Background(), request("send bob@example.com an email about the Q3 numbers"))
	require.Equal(t, "done", reply)
	require.Len(t, disp.dispatched, 1)
	a := disp.dispatched[0][0]
	require.Equal(t, model.ActionSendEmail, a.Kind)
	require.Equal(t, "bob@example.com", a.Params["to"])
	require.Equal(t, "the Q3 numbers", a.Params["subject"])
}

func TestFallbackCreatesEventWithExplicitTime(t *testing.T) {
	router := &fakeCompleter{err: errors.New("all providers failed")}
	disp := &fakeDispatcher{}
	c := newTestCoordinator(router, disp, nil)

	reply := c.Handle(context.Background(), request("schedule a meeting on 2026-09-03 14:00"))
	require.Equal(t, "done", reply)
	require.Len(t, disp.dispatched, 1)
	a := disp.dispatched[0][0]
	require.Equal(t, model.ActionCreateCalendarEvent, a.Kind)
	require.Equal(t, "2026-09-03 14:00", a.Params["start"])
}

func TestFallbackGenericWhenNothingExtractable(t *testing.T) {
	router := &fakeCompleter{err: errors.New("all providers failed")}
	disp := &fakeDispatcher{}
	c := newTestCoordinator(router, disp, nil)

	reply := c.Handle(context.Background(), request("how are you today?"))
	require.Contains(t, reply, "try again in a moment")
	require.Empty(t, disp.dispatched)
}

func TestHandleUnparseableModelOutput(t *testing.T) {
	router := &fakeCompleter{content: "   "}
	c := newTestCoordinator(router, nil, nil)

	reply := c.Handle(context.Background(), request("do the thing"))
	require.Contains(t, reply, "rephrase")
}

func TestHandleRecordsConversationTurn(t *testing.T) {
	router := &fakeCompleter{content: `{"response": "Sure."}`}
	hist := &fakeHistory{}
	c := New(router, &fakeDispatcher{}, &fakeAutomations{}, automation.NewMatcher(), &fakeLookup{}, hist, allCaps(), zap.NewNop())

	c.Handle(context.Background(), request("thanks"))
	require.Equal(t, []string{"user: thanks", "assistant: Sure."}, hist.appended)
}

func TestFallbackReplyRecorded(t *testing.T) {
	router := &fakeCompleter{err: errors.New("all providers failed")}
	hist := &fakeHistory{}
	c := New(router, &fakeDispatcher{}, &fakeAutomations{}, automation.NewMatcher(), &fakeLookup{}, hist, allCaps(), zap.NewNop())

	reply := c.Handle(context.Background(), request("how are you today?"))
	require.Contains(t, reply, "try again in a moment")
	require.Equal(t, []string{"user: how are you today?", "assistant: " + reply}, hist.appended)
}

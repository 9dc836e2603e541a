package action

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"donna/internal/integration"
	"donna/internal/model"
)

type stubMessaging struct {
	sendErr  error
	sent     []string
	hits     []integration.EmailSummary
	searched []string
}

func (m *stubMessaging) Send(ctx context.Context, to, subject, body string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, to)
	return nil
}

func (m *stubMessaging) Search(ctx context.Context, query string) ([]integration.EmailSummary, error) {
	m.searched = append(m.searched, query)
	return m.hits, nil
}

type stubCalendar struct {
	createErr error
	created   []integration.EventParams
	deleted   []string
}

func (c *stubCalendar) CreateEvent(ctx context.Context, p integration.EventParams) (*integration.CalendarEvent, error) {
	if c.createErr != nil {
		return nil, c.createErr
	}
	c.created = append(c.created, p)
	return &integration.CalendarEvent{ID: "ev-1", Title: p.Title, Start: p.Start, End: p.End}, nil
}

func (c *stubCalendar) GetEvent(ctx context.Context, id string) (*integration.CalendarEvent, error) {
	return &integration.CalendarEvent{ID: id, Title: "Existing", Start: time.Now(), End: time.Now().Add(time.Hour)}, nil
}

func (c *stubCalendar) UpdateEvent(ctx context.Context, id string, p integration.EventParams) (*integration.CalendarEvent, error) {
	return &integration.CalendarEvent{ID: id, Title: p.Title, Start: p.Start, End: p.End}, nil
}

func (c *stubCalendar) DeleteEvent(ctx context.Context, id string) error {
	c.deleted = append(c.deleted, id)
	return nil
}

type stubCRM struct {
	contacts map[string]*integration.Contact
	notes    []string
	created  []integration.ContactFields
}

func (c *stubCRM) FindContactByEmail(ctx context.Context, email string) (*integration.Contact, error) {
	return c.contacts[email], nil
}

func (c *stubCRM) CreateContact(ctx context.Context, fields integration.ContactFields) (*integration.Contact, error) {
	c.created = append(c.created, fields)
	return &integration.Contact{ID: "ct-1", Email: fields.Email}, nil
}

func (c *stubCRM) AddNote(ctx context.Context, contactID, text string) error {
	c.notes = append(c.notes, text)
	return nil
}

type stubAutomations struct {
	rule *model.AutomationRule
	err  error
}

func (s *stubAutomations) CreateFromInstruction(ctx context.Context, ownerID int, instruction string) (*model.AutomationRule, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rule, nil
}

func allCapabilities() DispatchContext {
	return DispatchContext{
		OwnerID:      7,
		Capabilities: Capabilities{Email: true, Calendar: true, CRM: true, Automation: true},
	}
}

func newTestDispatcher(m *stubMessaging, c *stubCalendar, crm *stubCRM) *Dispatcher {
	if m == nil {
		m = &stubMessaging{}
	}
	if c == nil {
		c = &stubCalendar{}
	}
	if crm == nil {
		crm = &stubCRM{}
	}
	return NewDispatcher(m, c, crm, &stubAutomations{}, zap.NewNop())
}

func TestDispatchSendEmail(t *testing.T) {
	m := &stubMessaging{}
	d := newTestDispatcher(m, nil, nil)

	out := d.Dispatch(context.Background(), allCapabilities(), model.Action{
		Kind:   model.ActionSendEmail,
		Params: map[string]any{"to": "sam@example.com", "subject": "Hi", "body": "Hello"},
	})
	require.True(t, out.Success)
	require.Contains(t, out.Message, "sam@example.com")
	require.Equal(t, []string{"sam@example.com"}, m.sent)
}

func TestDispatchParamSynonyms(t *testing.T) {
	m := &stubMessaging{}
	d := newTestDispatcher(m, nil, nil)

	// recipient/message instead of to/body
	out := d.Dispatch(context.Background(), allCapabilities(), model.Action{
		Kind:   model.ActionSendEmail,
		Params: map[string]any{"recipient": "sam@example.com", "message": "Hello"},
	})
	require.True(t, out.Success)
	require.Contains(t, out.Message, "(no subject)")
}

func TestDispatchUnknownAction(t *testing.T) {
	d := newTestDispatcher(nil, nil, nil)

	out := d.Dispatch(context.Background(), allCapabilities(), model.Action{
		Kind:    model.ActionUnknown,
		RawType: "reticulate_splines",
	})
	require.False(t, out.Success)
	require.Contains(t, out.Message, `"reticulate_splines"`)
}

func TestDispatchCapabilityGate(t *testing.T) {
	d := newTestDispatcher(nil, nil, nil)
	dc := DispatchContext{OwnerID: 7, Capabilities: Capabilities{Email: false}}

	out := d.Dispatch(context.Background(), dc, model.Action{
		Kind:   model.ActionSendEmail,
		Params: map[string]any{"to": "sam@example.com"},
	})
	require.False(t, out.Success)
	require.Contains(t, out.Message, "not enabled")
}

func TestDispatchAllIsolatesFailures(t *testing.T) {
	m := &stubMessaging{}
	c := &stubCalendar{createErr: errors.New("calendar down")}
	d := newTestDispatcher(m, c, nil)

	actions := []model.Action{
		{Kind: model.ActionSendEmail, Params: map[string]any{"to": "a@b.com"}},
		{Kind: model.ActionCreateCalendarEvent, Params: map[string]any{"title": "Sync", "start": "2026-09-01T10:00:00Z"}},
		{Kind: model.ActionSendEmail, Params: map[string]any{"to": "c@d.com"}},
	}
	outcomes := d.DispatchAll(context.Background(), allCapabilities(), actions)

	require.Len(t, outcomes, 3)
	require.True(t, outcomes[0].Success)
	require.False(t, outcomes[1].Success)
	require.True(t, outcomes[2].Success, "failure in the middle must not stop later actions")
	require.Equal(t, []string{"a@b.com", "c@d.com"}, m.sent)
}

func TestDispatchFindContactMiss(t *testing.T) {
	crm := &stubCRM{contacts: map[string]*integration.Contact{}}
	d := newTestDispatcher(nil, nil, crm)

	out := d.Dispatch(context.Background(), allCapabilities(), model.Action{
		Kind:   model.ActionFindCRMContact,
		Params: map[string]any{"email": "nobody@example.com"},
	})
	require.True(t, out.Success, "a clean miss is not a failure")
	require.Equal(t, false, out.Result["found"])
}

func TestDispatchAddNoteByEmail(t *testing.T) {
	crm := &stubCRM{contacts: map[string]*integration.Contact{
		"jane@example.com": {ID: "ct-9", Email: "jane@example.com"},
	}}
	d := newTestDispatcher(nil, nil, crm)

	out := d.Dispatch(context.Background(), allCapabilities(), model.Action{
		Kind:   model.ActionAddCRMNote,
		Params: map[string]any{"email": "jane@example.com", "note": "met at conference"},
	})
	require.True(t, out.Success)
	require.Equal(t, []string{"met at conference"}, crm.notes)
}

func TestDispatchCreateAutomationInactive(t *testing.T) {
	auto := &stubAutomations{rule: &model.AutomationRule{
		ID:     "r-1",
		Active: false,
		Note:   "unrecognized automation type: could not determine a trigger and action from this instruction",
	}}
	d := NewDispatcher(&stubMessaging{}, &stubCalendar{}, &stubCRM{}, auto, zap.NewNop())

	out := d.Dispatch(context.Background(), allCapabilities(), model.Action{
		Kind:   model.ActionCreateAutomation,
		Params: map[string]any{"instruction": "do something vague"},
	})
	require.True(t, out.Success)
	require.Contains(t, out.Message, "stored inactive")
	require.Equal(t, false, out.Result["active"])
}

func TestSummarizeSingleAndMixed(t *testing.T) {
	a := model.Action{Kind: model.ActionSendEmail}

	require.Equal(t, "I didn't find anything to do for that request.", Summarize(nil))

	single := []model.ActionOutcome{model.SuccessOutcome(a, "Email sent to a@b.com (subject: Hi).", nil)}
	require.Equal(t, "Email sent to a@b.com (subject: Hi).", Summarize(single))

	failed := []model.ActionOutcome{model.FailureOutcome(a, "I couldn't send the email.")}
	require.Equal(t, "I couldn't send the email. Please try again or rephrase your request.", Summarize(failed))

	mixed := []model.ActionOutcome{
		model.SuccessOutcome(a, "Email sent.", nil),
		model.FailureOutcome(a, "Calendar down."),
	}
	got := Summarize(mixed)
	require.Contains(t, got, "1 of 2 actions succeeded.")
	require.Contains(t, got, "- Email sent.")
	require.Contains(t, got, "- Failed: Calendar down.")
}

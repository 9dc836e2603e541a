package automation

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

type fakeMessaging struct {
	sendErr error
	sent    []sentMail
}

type sentMail struct {
	to, subject, body string
}

func (f *fakeMessaging) Send(ctx context.Context, to, subject, body string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMail{to, subject, body})
	return nil
}

func (f *fakeMessaging) Search(ctx context.Context, query string) ([]integration.EmailSummary, error) {
	return nil, nil
}

type fakeCalendar struct {
	event   *integration.CalendarEvent
	getErr  error
	created []integration.EventParams
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, p integration.EventParams) (*integration.CalendarEvent, error) {
	f.created = append(f.created, p)
	return &integration.CalendarEvent{ID: "fu-1", Title: p.Title, Start: p.Start, End: p.End}, nil
}

func (f *fakeCalendar) GetEvent(ctx context.Context, id string) (*integration.CalendarEvent, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.event, nil
}

func (f *fakeCalendar) UpdateEvent(ctx context.Context, id string, p integration.EventParams) (*integration.CalendarEvent, error) {
	return f.event, nil
}

func (f *fakeCalendar) DeleteEvent(ctx context.Context, id string) error { return nil }

type fakeCRM struct {
	contacts map[string]*integration.Contact
	noteErr  error
	created  []integration.ContactFields
	notes    []string
}

func (f *fakeCRM) FindContactByEmail(ctx context.Context, email string) (*integration.Contact, error) {
	return f.contacts[email], nil
}

func (f *fakeCRM) CreateContact(ctx context.Context, fields integration.ContactFields) (*integration.Contact, error) {
	f.created = append(f.created, fields)
	return &integration.Contact{ID: "ct-new", Email: fields.Email}, nil
}

func (f *fakeCRM) AddNote(ctx context.Context, contactID, text string) error {
	if f.noteErr != nil {
		return f.noteErr
	}
	f.notes = append(f.notes, text)
	return nil
}

type fakeTaskStore struct {
	inserted []*model.PendingTask
}

func (f *fakeTaskStore) Insert(ctx context.Context, task *model.PendingTask) error {
	f.inserted = append(f.inserted, task)
	return nil
}

type fakeUsers struct{ email string }

func (f *fakeUsers) FindByID(ctx context.Context, id int) (*model.User, error) {
	return &model.User{ID: id, Email: f.email}, nil
}

func emailEvent(sender, subject string) model.TriggerEvent {
	return model.TriggerEvent{
		ID:          "evt-1",
		OwnerID:     7,
		TriggerType: model.TriggerEmailReceived,
		Email:       &model.EmailEventPayload{Sender: sender, Subject: subject, Body: "hello"},
	}
}

func TestEmailReceivedCreatesMissingContact(t *testing.T) {
	crm := &fakeCRM{contacts: map[string]*integration.Contact{}}
	w := newWorkflowsForTest(&fakeMessaging{}, &fakeCalendar{}, crm, &fakeTaskStore{}, &fakeUsers{}, zap.NewNop())

	rule := model.AutomationRule{
		ID: "r-1", OwnerID: 7,
		ActionType: model.ActionHandleEmailReceived,
		Params:     model.RuleParams{CheckCRM: true, CreateIfMissing: true, AddNote: true},
	}
	out := w.Execute(context.Background(), rule, emailEvent("Jane Doe <jane@example.com>", "Intro"))

	require.Equal(t, StatusSuccess, out.Status)
	require.Len(t, crm.created, 1)
	require.Equal(t, "jane@example.com", crm.created[0].Email)
	require.Equal(t, "Jane", crm.created[0].FirstName)
	require.Equal(t, "Doe", crm.created[0].LastName)
	require.Equal(t, []string{"Email received: Intro"}, crm.notes)
}

func TestEmailReceivedSkipsCreateWhenContactExists(t *testing.T) {
	crm := &fakeCRM{contacts: map[string]*integration.Contact{
		"jane@example.com": {ID: "ct-9", Email: "jane@example.com"},
	}}
	w := newWorkflowsForTest(&fakeMessaging{}, &fakeCalendar{}, crm, &fakeTaskStore{}, &fakeUsers{}, zap.NewNop())

	rule := model.AutomationRule{
		ID: "r-1", OwnerID: 7,
		ActionType: model.ActionHandleEmailReceived,
		Params:     model.RuleParams{CheckCRM: true, CreateIfMissing: true},
	}
	out := w.Execute(context.Background(), rule, emailEvent("jane@example.com", "Hi"))

	require.Equal(t, StatusSuccess, out.Status)
	require.Empty(t, crm.created)
}

func TestEmailReceivedForwardParksPendingTask(t *testing.T) {
	msg := &fakeMessaging{}
	tasks := &fakeTaskStore{}
	w := newWorkflowsForTest(msg, &fakeCalendar{}, &fakeCRM{}, tasks, &fakeUsers{}, zap.NewNop())

	rule := model.AutomationRule{
		ID: "r-2", OwnerID: 7,
		ActionType: model.ActionHandleEmailReceived,
		Params:     model.RuleParams{ForwardTo: "bob@example.com"},
	}
	out := w.Execute(context.Background(), rule, emailEvent("accountant@firm.com", "Q3 numbers"))

	require.Equal(t, StatusSuccess, out.Status)
	require.Len(t, msg.sent, 1)
	require.Equal(t, "bob@example.com", msg.sent[0].to)
	require.Equal(t, "Fwd: Q3 numbers", msg.sent[0].subject)

	require.Len(t, tasks.inserted, 1)
	task := tasks.inserted[0]
	require.Equal(t, model.TaskPending, task.Status)
	require.Equal(t, "bob@example.com", task.Context["sender"])
	require.Equal(t, string(model.TriggerEmailReceived), task.Context["trigger_type"])
}

func TestEmailReceivedNoteFailureIsPartial(t *testing.T) {
	crm := &fakeCRM{
		contacts: map[string]*integration.Contact{"jane@example.com": {ID: "ct-9"}},
		noteErr:  errors.New("crm unavailable"),
	}
	w := newWorkflowsForTest(&fakeMessaging{}, &fakeCalendar{}, crm, &fakeTaskStore{}, &fakeUsers{}, zap.NewNop())

	rule := model.AutomationRule{
		ID: "r-3", OwnerID: 7,
		ActionType: model.ActionHandleEmailReceived,
		Params:     model.RuleParams{CheckCRM: true, AddNote: true},
	}
	out := w.Execute(context.Background(), rule, emailEvent("jane@example.com", "Hi"))

	require.Equal(t, StatusPartial, out.Status, "lookup succeeded before the note failed")
	require.Contains(t, out.Message, "crm unavailable")
}

func TestAppointmentFollowUpScheduled(t *testing.T) {
	start := time.Date(2026, 9, 10, 14, 0, 0, 0, time.UTC)
	cal := &fakeCalendar{event: &integration.CalendarEvent{
		ID: "appt-1", Title: "Consultation", Start: start,
		Attendees: []string{"client@example.com"},
	}}
	crm := &fakeCRM{contacts: map[string]*integration.Contact{}}
	w := newWorkflowsForTest(&fakeMessaging{}, cal, crm, &fakeTaskStore{}, &fakeUsers{}, zap.NewNop())

	rule := model.AutomationRule{
		ID: "r-4", OwnerID: 7,
		ActionType: model.ActionHandleAppointment,
		Params:     model.RuleParams{CheckCRM: true, CreateIfMissing: true, AddNote: true, FollowUpDays: 3},
	}
	evt := model.TriggerEvent{
		ID: "evt-2", OwnerID: 7,
		TriggerType: model.TriggerCalendarEvent,
		Calendar:    &model.CalendarEventPayload{EventID: "appt-1", Title: "Consultation", Change: "created"},
	}
	out := w.Execute(context.Background(), rule, evt)

	require.Equal(t, StatusSuccess, out.Status)
	require.Len(t, crm.created, 1)
	require.Equal(t, "client@example.com", crm.created[0].Email)
	require.Equal(t, []string{"Appointment booked: Consultation"}, crm.notes)
	require.Len(t, cal.created, 1)
	require.Equal(t, start.AddDate(0, 0, 3), cal.created[0].Start)
	require.Equal(t, "Follow up: Consultation", cal.created[0].Title)
}

func TestAppointmentFetchFailureIsFailed(t *testing.T) {
	cal := &fakeCalendar{getErr: errors.New("calendar down")}
	w := newWorkflowsForTest(&fakeMessaging{}, cal, &fakeCRM{}, &fakeTaskStore{}, &fakeUsers{}, zap.NewNop())

	rule := model.AutomationRule{
		ID: "r-5", OwnerID: 7,
		ActionType: model.ActionHandleAppointment,
		Params:     model.RuleParams{FollowUpDays: 3},
	}
	evt := model.TriggerEvent{
		ID: "evt-3", OwnerID: 7,
		TriggerType: model.TriggerCalendarEvent,
		Calendar:    &model.CalendarEventPayload{EventID: "appt-9"},
	}
	out := w.Execute(context.Background(), rule, evt)

	require.Equal(t, StatusFailed, out.Status)
	require.Contains(t, out.Message, "calendar down")
}

func TestNotifyFallsBackToOwnerEmail(t *testing.T) {
	msg := &fakeMessaging{}
	w := newWorkflowsForTest(msg, &fakeCalendar{}, &fakeCRM{}, &fakeTaskStore{}, &fakeUsers{email: "owner@example.com"}, zap.NewNop())

	rule := model.AutomationRule{
		ID: "r-6", OwnerID: 7,
		ActionType: model.ActionSendEmail,
		Params:     model.RuleParams{Notify: true},
	}
	out := w.Execute(context.Background(), rule, emailEvent("jane@example.com", "Hi"))

	require.Equal(t, StatusSuccess, out.Status)
	require.Len(t, msg.sent, 1)
	require.Equal(t, "owner@example.com", msg.sent[0].to)
}

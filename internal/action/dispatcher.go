// Package action maps recognized actions to concrete collaborator calls.
// Every failure becomes an ActionOutcome, never a propagated error: one
// failed action must not abort its siblings.
package action

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"donna/internal/integration"
	"donna/internal/model"
	"donna/pkg/metrics"
)

// Capabilities are the per-owner feature grants checked before any
// collaborator call.
type Capabilities struct {
	Email      bool `yaml:"email"`
	Calendar   bool `yaml:"calendar"`
	CRM        bool `yaml:"crm"`
	Automation bool `yaml:"automation"`
}

// DispatchContext carries who the actions run for and what they may touch.
type DispatchContext struct {
	OwnerID      int
	Capabilities Capabilities
}

// AutomationCreator persists an automation rule from a free-text
// instruction. Implemented by the automation service; a local interface
// keeps this package independent of it.
type AutomationCreator interface {
	CreateFromInstruction(ctx context.Context, ownerID int, instruction string) (*model.AutomationRule, error)
}

type handlerFunc func(ctx context.Context, dc DispatchContext, a model.Action) model.ActionOutcome

// Dispatcher routes typed actions to collaborator operations.
type Dispatcher struct {
	messaging   integration.Messaging
	calendar    integration.Calendar
	crm         integration.CRM
	automations AutomationCreator
	logger      *zap.Logger
	handlers    map[model.ActionKind]handlerFunc
}

func NewDispatcher(
	messaging integration.Messaging,
	calendar integration.Calendar,
	crm integration.CRM,
	automations AutomationCreator,
	logger *zap.Logger,
) *Dispatcher {
	d := &Dispatcher{
		messaging:   messaging,
		calendar:    calendar,
		crm:         crm,
		automations: automations,
		logger:      logger,
	}
	d.handlers = map[model.ActionKind]handlerFunc{
		model.ActionSendEmail:           d.handleSendEmail,
		model.ActionSearchEmails:        d.handleSearchEmails,
		model.ActionCreateCalendarEvent: d.handleCreateEvent,
		model.ActionUpdateCalendarEvent: d.handleUpdateEvent,
		model.ActionDeleteCalendarEvent: d.handleDeleteEvent,
		model.ActionFindCRMContact:      d.handleFindContact,
		model.ActionCreateCRMContact:    d.handleCreateContact,
		model.ActionAddCRMNote:          d.handleAddNote,
		model.ActionCreateAutomation:    d.handleCreateAutomation,
	}
	return d
}

// Dispatch executes one action. Unknown types and handler panics become
// failure outcomes.
func (d *Dispatcher) Dispatch(ctx context.Context, dc DispatchContext, a model.Action) (outcome model.ActionOutcome) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Action handler panic recovered",
				zap.String("action", string(a.Kind)),
				zap.Any("panic", r),
			)
			outcome = model.FailureOutcome(a, fmt.Sprintf("The %q action failed unexpectedly.", a.RawType))
		}
		status := "failed"
		if outcome.Success {
			status = "success"
		}
		metrics.IncrementActionDispatch(actionLabel(a), status)
	}()

	h, ok := d.handlers[a.Kind]
	if !ok {
		return model.FailureOutcome(a, fmt.Sprintf("I don't know how to perform the action %q.", a.RawType))
	}
	return h(ctx, dc, a)
}

// DispatchAll executes an ActionSet in list order. Outcomes are
// append-only and keep the original order; a failure never stops the
// remaining actions.
func (d *Dispatcher) DispatchAll(ctx context.Context, dc DispatchContext, actions []model.Action) []model.ActionOutcome {
	outcomes := make([]model.ActionOutcome, 0, len(actions))
	for _, a := range actions {
		outcomes = append(outcomes, d.Dispatch(ctx, dc, a))
	}
	return outcomes
}

func actionLabel(a model.Action) string {
	if a.Kind != model.ActionUnknown {
		return string(a.Kind)
	}
	return "unknown"
}

func (d *Dispatcher) handleSendEmail(ctx context.Context, dc DispatchContext, a model.Action) model.ActionOutcome {
	if !dc.Capabilities.Email {
		return model.FailureOutcome(a, "Email access is not enabled for your account.")
	}

	to := stringParam(a.Params, "to", "recipient", "email", "address")
	if to == "" {
		return model.FailureOutcome(a, "I need an email address to send to.")
	}
	subject := stringParam(a.Params, "subject", "title")
	if subject == "" {
		subject = "(no subject)"
	}
	body := stringParam(a.Params, "body", "message", "content", "text")

	if err := d.messaging.Send(ctx, to, subject, body); err != nil {
		d.logger.Warn("Send email failed", zap.String("to", to), zap.Error(err))
		return model.FailureOutcome(a, fmt.Sprintf("I couldn't send the email to %s: %v", to, err))
	}
	return model.SuccessOutcome(a,
		fmt.Sprintf("Email sent to %s (subject: %s).", to, subject),
		map[string]any{"to": to, "subject": subject},
	)
}

func (d *Dispatcher) handleSearchEmails(ctx context.Context, dc DispatchContext, a model.Action) model.ActionOutcome {
	if !dc.Capabilities.Email {
		return model.FailureOutcome(a, "Email access is not enabled for your account.")
	}

	query := stringParam(a.Params, "query", "q", "search", "keywords")
	if query == "" {
		return model.FailureOutcome(a, "I need something to search your email for.")
	}

	hits, err := d.messaging.Search(ctx, query)
	if err != nil {
		return model.FailureOutcome(a, fmt.Sprintf("The email search for %q failed: %v", query, err))
	}
	if len(hits) == 0 {
		return model.SuccessOutcome(a, fmt.Sprintf("No emails matched %q.", query), map[string]any{"count": 0})
	}

	lines := make([]string, 0, len(hits))
	for _, h := range hits {
		lines = append(lines, fmt.Sprintf("%s - from %s (%s)", h.Subject, h.From, h.Date.Format("Jan 2")))
	}
	return model.SuccessOutcome(a,
		fmt.Sprintf("Found %d emails matching %q:\n%s", len(hits), query, strings.Join(lines, "\n")),
		map[string]any{"count": len(hits)},
	)
}

func (d *Dispatcher) handleCreateEvent(ctx context.Context, dc DispatchContext, a model.Action) model.ActionOutcome {
	if !dc.Capabilities.Calendar {
		return model.FailureOutcome(a, "Calendar access is not enabled for your account.")
	}

	title := stringParam(a.Params, "title", "summary", "name", "subject")
	if title == "" {
		title = "New event"
	}
	startRaw := stringParam(a.Params, "start", "time", "when", "date", "start_time")
	if startRaw == "" {
		return model.FailureOutcome(a, "I need a date or time for the event.")
	}
	start, err := parseTimeParam(startRaw)
	if err != nil {
		return model.FailureOutcome(a, fmt.Sprintf("I couldn't understand the event time %q.", startRaw))
	}

	end := start.Add(time.Hour)
	if endRaw := stringParam(a.Params, "end", "end_time", "until"); endRaw != "" {
		if parsed, err := parseTimeParam(endRaw); err == nil {
			end = parsed
		}
	}

	ev, err := d.calendar.CreateEvent(ctx, integration.EventParams{
		Title:       title,
		Description: stringParam(a.Params, "description", "details", "body"),
		Start:       start,
		End:         end,
		Attendees:   stringListParam(a.Params, "attendees", "guests", "participants"),
		Location:    stringParam(a.Params, "location", "place"),
	})
	if err != nil {
		return model.FailureOutcome(a, fmt.Sprintf("I couldn't create the event %q: %v", title, err))
	}
	return model.SuccessOutcome(a,
		fmt.Sprintf("Created %q on %s.", ev.Title, ev.Start.Format("Mon Jan 2 15:04")),
		map[string]any{"event_id": ev.ID},
	)
}

func (d *Dispatcher) handleUpdateEvent(ctx context.Context, dc DispatchContext, a model.Action) model.ActionOutcome {
	if !dc.Capabilities.Calendar {
		return model.FailureOutcome(a, "Calendar access is not enabled for your account.")
	}

	id := stringParam(a.Params, "id", "event_id", "event")
	if id == "" {
		return model.FailureOutcome(a, "I need the id of the event to update.")
	}

	current, err := d.calendar.GetEvent(ctx, id)
	if err != nil {
		return model.FailureOutcome(a, fmt.Sprintf("I couldn't find event %s: %v", id, err))
	}

	params := integration.EventParams{
		Title:       current.Title,
		Description: current.Description,
		Start:       current.Start,
		End:         current.End,
		Attendees:   current.Attendees,
		Location:    current.Location,
	}
	if title := stringParam(a.Params, "title", "summary", "name"); title != "" {
		params.Title = title
	}
	if startRaw := stringParam(a.Params, "start", "time", "when"); startRaw != "" {
		if start, err := parseTimeParam(startRaw); err == nil {
			shift := start.Sub(params.Start)
			params.Start = start
			params.End = params.End.Add(shift)
		}
	}
	if loc := stringParam(a.Params, "location", "place"); loc != "" {
		params.Location = loc
	}

	ev, err := d.calendar.UpdateEvent(ctx, id, params)
	if err != nil {
		return model.FailureOutcome(a, fmt.Sprintf("I couldn't update event %s: %v", id, err))
	}
	return model.SuccessOutcome(a,
		fmt.Sprintf("Updated %q, now on %s.", ev.Title, ev.Start.Format("Mon Jan 2 15:04")),
		map[string]any{"event_id": ev.ID},
	)
}

func (d *Dispatcher) handleDeleteEvent(ctx context.Context, dc DispatchContext, a model.Action) model.ActionOutcome {
	if !dc.Capabilities.Calendar {
		return model.FailureOutcome(a, "Calendar access is not enabled for your account.")
	}

	id := stringParam(a.Params, "id", "event_id", "event")
	if id == "" {
		return model.FailureOutcome(a, "I need the id of the event to delete.")
	}
	if err := d.calendar.DeleteEvent(ctx, id); err != nil {
		return model.FailureOutcome(a, fmt.Sprintf("I couldn't delete event %s: %v", id, err))
	}
	return model.SuccessOutcome(a, "Event deleted.", map[string]any{"event_id": id})
}

func (d *Dispatcher) handleFindContact(ctx context.Context, dc DispatchContext, a model.Action) model.ActionOutcome {
	if !dc.Capabilities.CRM {
		return model.FailureOutcome(a, "CRM access is not enabled for your account.")
	}

	email := stringParam(a.Params, "email", "address", "contact")
	if email == "" {
		return model.FailureOutcome(a, "I need an email address to look up.")
	}

	contact, err := d.crm.FindContactByEmail(ctx, email)
	if err != nil {
		return model.FailureOutcome(a, fmt.Sprintf("The CRM lookup for %s failed: %v", email, err))
	}
	if contact == nil {
		return model.SuccessOutcome(a,
			fmt.Sprintf("No CRM contact found for %s.", email),
			map[string]any{"found": false},
		)
	}
	return model.SuccessOutcome(a,
		fmt.Sprintf("Found CRM contact %s %s (%s).", contact.FirstName, contact.LastName, contact.Email),
		map[string]any{"found": true, "contact_id": contact.ID},
	)
}

func (d *Dispatcher) handleCreateContact(ctx context.Context, dc DispatchContext, a model.Action) model.ActionOutcome {
	if !dc.Capabilities.CRM {
		return model.FailureOutcome(a, "CRM access is not enabled for your account.")
	}

	email := stringParam(a.Params, "email", "address")
	if email == "" {
		return model.FailureOutcome(a, "I need an email address for the new contact.")
	}

	first := stringParam(a.Params, "first_name", "firstname")
	last := stringParam(a.Params, "last_name", "lastname")
	if first == "" && last == "" {
		first, last = splitName(stringParam(a.Params, "name", "full_name"))
	}

	contact, err := d.crm.CreateContact(ctx, integration.ContactFields{
		Email:     email,
		FirstName: first,
		LastName:  last,
		Company:   stringParam(a.Params, "company", "organization"),
	})
	if err != nil {
		return model.FailureOutcome(a, fmt.Sprintf("I couldn't create a CRM contact for %s: %v", email, err))
	}
	return model.SuccessOutcome(a,
		fmt.Sprintf("Created CRM contact for %s.", email),
		map[string]any{"contact_id": contact.ID},
	)
}

func (d *Dispatcher) handleAddNote(ctx context.Context, dc DispatchContext, a model.Action) model.ActionOutcome {
	if !dc.Capabilities.CRM {
		return model.FailureOutcome(a, "CRM access is not enabled for your account.")
	}

	note := stringParam(a.Params, "note", "text", "content", "body")
	if note == "" {
		return model.FailureOutcome(a, "I need the note text to add.")
	}

	contactID := stringParam(a.Params, "contact_id", "id")
	if contactID == "" {
		email := stringParam(a.Params, "email", "address", "contact")
		if email == "" {
			return model.FailureOutcome(a, "I need a contact id or email address for the note.")
		}
		contact, err := d.crm.FindContactByEmail(ctx, email)
		if err != nil {
			return model.FailureOutcome(a, fmt.Sprintf("The CRM lookup for %s failed: %v", email, err))
		}
		if contact == nil {
			return model.FailureOutcome(a, fmt.Sprintf("No CRM contact found for %s, so I couldn't attach the note.", email))
		}
		contactID = contact.ID
	}

	if err := d.crm.AddNote(ctx, contactID, note); err != nil {
		return model.FailureOutcome(a, fmt.Sprintf("I couldn't add the note: %v", err))
	}
	return model.SuccessOutcome(a, "Note added to the CRM contact.", map[string]any{"contact_id": contactID})
}

func (d *Dispatcher) handleCreateAutomation(ctx context.Context, dc DispatchContext, a model.Action) model.ActionOutcome {
	if !dc.Capabilities.Automation {
		return model.FailureOutcome(a, "Automations are not enabled for your account.")
	}

	instruction := stringParam(a.Params, "instruction", "rule", "text", "description")
	if instruction == "" {
		return model.FailureOutcome(a, "I need the automation instruction text.")
	}

	rule, err := d.automations.CreateFromInstruction(ctx, dc.OwnerID, instruction)
	if err != nil {
		return model.FailureOutcome(a, fmt.Sprintf("I couldn't save the automation: %v", err))
	}
	if !rule.Active {
		return model.SuccessOutcome(a,
			fmt.Sprintf("I saved the automation but couldn't work out what it should do (%s). It is stored inactive; try rephrasing it.", rule.Note),
			map[string]any{"rule_id": rule.ID, "active": false},
		)
	}
	return model.SuccessOutcome(a,
		fmt.Sprintf("Automation saved: %s", rule.Instruction),
		map[string]any{"rule_id": rule.ID, "active": true},
	)
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

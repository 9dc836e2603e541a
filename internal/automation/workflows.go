package automation

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"donna/internal/integration"
	"donna/internal/model"
	"donna/internal/repository"
)

// userResolver resolves a rule owner to their notification address.
type userResolver interface {
	FindByID(ctx context.Context, id int) (*model.User, error)
}

// taskStore parks and lists pending tasks for wait-for-event workflows.
type taskStore interface {
	Insert(ctx context.Context, task *model.PendingTask) error
}

// Workflows holds the step sequences each canonical rule action executes
// as. Steps are explicit (operation, failure-wording) pairs so they can
// be tested, reordered, and partially mocked independently.
type Workflows struct {
	messaging integration.Messaging
	calendar  integration.Calendar
	crm       integration.CRM
	tasks     taskStore
	users     userResolver
	logger    *zap.Logger
}

func NewWorkflows(
	messaging integration.Messaging,
	calendar integration.Calendar,
	crm integration.CRM,
	tasks *repository.TaskRepository,
	users *repository.UserRepository,
	logger *zap.Logger,
) *Workflows {
	return &Workflows{
		messaging: messaging,
		calendar:  calendar,
		crm:       crm,
		tasks:     tasks,
		users:     users,
		logger:    logger,
	}
}

// newWorkflowsForTest wires arbitrary implementations; used by tests.
func newWorkflowsForTest(
	messaging integration.Messaging,
	calendar integration.Calendar,
	crm integration.CRM,
	tasks taskStore,
	users userResolver,
	logger *zap.Logger,
) *Workflows {
	return &Workflows{
		messaging: messaging,
		calendar:  calendar,
		crm:       crm,
		tasks:     tasks,
		users:     users,
		logger:    logger,
	}
}

// Execute runs the rule's canonical action against the event.
func (w *Workflows) Execute(ctx context.Context, rule model.AutomationRule, evt model.TriggerEvent) WorkflowOutcome {
	run := newRun(rule, evt)

	switch rule.ActionType {
	case model.ActionHandleEmailReceived:
		return runSteps(ctx, w.logger, run, w.emailReceivedSteps(rule, evt))
	case model.ActionHandleAppointment:
		return runSteps(ctx, w.logger, run, w.appointmentSteps(rule, evt))
	case model.ActionSendEmail:
		return runSteps(ctx, w.logger, run, w.notifySteps(rule, evt))
	default:
		return WorkflowOutcome{
			Status:  StatusFailed,
			Message: fmt.Sprintf("rule action %q has no workflow", rule.ActionType),
		}
	}
}

// emailReceivedSteps: optional CRM lookup → create-if-missing → note →
// forward → notify, driven by the rule's canonical params.
func (w *Workflows) emailReceivedSteps(rule model.AutomationRule, evt model.TriggerEvent) []Step {
	var steps []Step
	if evt.Email == nil {
		return []Step{{Name: "validate event", Run: func(context.Context, *Run) (string, error) {
			return "", fmt.Errorf("email payload missing on %s event", evt.TriggerType)
		}}}
	}

	senderAddr, senderName := splitSender(evt.Email.Sender)

	if rule.Params.CheckCRM {
		steps = append(steps, Step{Name: "lookup CRM contact", Run: func(ctx context.Context, run *Run) (string, error) {
			if senderAddr == "" {
				return "", fmt.Errorf("no sender address on event")
			}
			contact, err := w.crm.FindContactByEmail(ctx, senderAddr)
			if err != nil {
				return "", err
			}
			if contact == nil {
				return fmt.Sprintf("%s not in CRM yet", senderAddr), nil
			}
			run.Values["contact_id"] = contact.ID
			return fmt.Sprintf("%s already in CRM", senderAddr), nil
		}})
	}

	if rule.Params.CreateIfMissing {
		steps = append(steps, Step{Name: "create CRM contact", Run: func(ctx context.Context, run *Run) (string, error) {
			if _, ok := run.Values["contact_id"]; ok {
				return "", nil // already exists, nothing to do
			}
			first, last := splitDisplayName(senderName)
			contact, err := w.crm.CreateContact(ctx, integration.ContactFields{
				Email:     senderAddr,
				FirstName: first,
				LastName:  last,
			})
			if err != nil {
				return "", err
			}
			run.Values["contact_id"] = contact.ID
			return fmt.Sprintf("created CRM contact for %s", senderAddr), nil
		}})
	}

	if rule.Params.AddNote {
		steps = append(steps, Step{Name: "add CRM note", Run: func(ctx context.Context, run *Run) (string, error) {
			contactID, err := run.stringValue("contact_id")
			if err != nil {
				return "", err
			}
			note := fmt.Sprintf("Email received: %s", evt.Email.Subject)
			if err := w.crm.AddNote(ctx, contactID, note); err != nil {
				return "", err
			}
			return "note added", nil
		}})
	}

	if rule.Params.ForwardTo != "" {
		steps = append(steps, Step{Name: "forward email", Run: func(ctx context.Context, run *Run) (string, error) {
			subject := "Fwd: " + evt.Email.Subject
			if err := w.messaging.Send(ctx, rule.Params.ForwardTo, subject, evt.Email.Body); err != nil {
				return "", err
			}
			// Park a task awaiting the delegate's reply; a later inbound
			// email from them completes it.
			task := &model.PendingTask{
				ID:      uuid.NewString(),
				OwnerID: rule.OwnerID,
				Status:  model.TaskPending,
				Context: map[string]string{
					"trigger_type": string(model.TriggerEmailReceived),
					"sender":       rule.Params.ForwardTo,
				},
				ScheduledAt: time.Now(),
			}
			if err := w.tasks.Insert(ctx, task); err != nil {
				w.logger.Warn("Failed to park await-reply task", zap.Error(err))
			}
			return fmt.Sprintf("forwarded to %s", rule.Params.ForwardTo), nil
		}})
	}

	if rule.Params.Notify {
		steps = append(steps, Step{Name: "notify owner", Run: func(ctx context.Context, run *Run) (string, error) {
			addr, err := w.notifyAddress(ctx, rule)
			if err != nil {
				return "", err
			}
			subject := fmt.Sprintf("New email from %s", evt.Email.Sender)
			body := fmt.Sprintf("Subject: %s\n\n%s", evt.Email.Subject, evt.Email.Body)
			if err := w.messaging.Send(ctx, addr, subject, body); err != nil {
				return "", err
			}
			return fmt.Sprintf("notified %s", addr), nil
		}})
	}

	if len(steps) == 0 {
		steps = append(steps, Step{Name: "no-op", Run: func(context.Context, *Run) (string, error) {
			return "rule matched but has no configured actions", nil
		}})
	}
	return steps
}

// appointmentSteps: fetch event → ensure CRM contact for the attendee →
// log a note → schedule a follow-up → notify. The follow-up needs the
// fetched event's start time; when fetching fails the chain
// short-circuits with a partial outcome rather than crashing.
func (w *Workflows) appointmentSteps(rule model.AutomationRule, evt model.TriggerEvent) []Step {
	if evt.Calendar == nil {
		return []Step{{Name: "validate event", Run: func(context.Context, *Run) (string, error) {
			return "", fmt.Errorf("calendar payload missing on %s event", evt.TriggerType)
		}}}
	}

	steps := []Step{
		{Name: "fetch appointment", Run: func(ctx context.Context, run *Run) (string, error) {
			ev, err := w.calendar.GetEvent(ctx, evt.Calendar.EventID)
			if err != nil {
				return "", err
			}
			run.Values["title"] = ev.Title
			run.Values["start"] = ev.Start
			if len(ev.Attendees) > 0 {
				run.Values["attendee"] = ev.Attendees[0]
			}
			return "", nil
		}},
	}

	if rule.Params.CheckCRM {
		steps = append(steps, Step{Name: "ensure CRM contact", Run: func(ctx context.Context, run *Run) (string, error) {
			attendee, err := run.stringValue("attendee")
			if err != nil {
				return "", err
			}
			contact, err := w.crm.FindContactByEmail(ctx, attendee)
			if err != nil {
				return "", err
			}
			if contact == nil {
				if !rule.Params.CreateIfMissing {
					return fmt.Sprintf("%s not in CRM", attendee), nil
				}
				contact, err = w.crm.CreateContact(ctx, integration.ContactFields{Email: attendee})
				if err != nil {
					return "", err
				}
			}
			run.Values["contact_id"] = contact.ID
			return fmt.Sprintf("CRM contact ready for %s", attendee), nil
		}})
	}

	if rule.Params.AddNote {
		steps = append(steps, Step{Name: "log appointment note", Run: func(ctx context.Context, run *Run) (string, error) {
			contactID, err := run.stringValue("contact_id")
			if err != nil {
				return "", err
			}
			title, _ := run.Values["title"].(string)
			if err := w.crm.AddNote(ctx, contactID, fmt.Sprintf("Appointment booked: %s", title)); err != nil {
				return "", err
			}
			return "appointment logged in CRM", nil
		}})
	}

	if rule.Params.FollowUpDays > 0 {
		steps = append(steps, Step{Name: "schedule follow-up", Run: func(ctx context.Context, run *Run) (string, error) {
			start, ok := run.Values["start"].(time.Time)
			if !ok {
				return "", fmt.Errorf("%w: start", ErrShortCircuit)
			}
			title, _ := run.Values["title"].(string)
			followUp := start.AddDate(0, 0, rule.Params.FollowUpDays)
			ev, err := w.calendar.CreateEvent(ctx, integration.EventParams{
				Title: fmt.Sprintf("Follow up: %s", title),
				Start: followUp,
				End:   followUp.Add(30 * time.Minute),
			})
			if err != nil {
				return "", err
			}
			run.Values["followup_event_id"] = ev.ID
			return fmt.Sprintf("follow-up scheduled for %s", followUp.Format("Jan 2")), nil
		}})
	}

	if rule.Params.Notify {
		steps = append(steps, Step{Name: "notify owner", Run: func(ctx context.Context, run *Run) (string, error) {
			addr, err := w.notifyAddress(ctx, rule)
			if err != nil {
				return "", err
			}
			title, _ := run.Values["title"].(string)
			body := fmt.Sprintf("Appointment %q was handled by your automation.", title)
			if err := w.messaging.Send(ctx, addr, "Appointment handled", body); err != nil {
				return "", err
			}
			return fmt.Sprintf("notified %s", addr), nil
		}})
	}

	return steps
}

// notifySteps is the single-step workflow for plain notification rules.
func (w *Workflows) notifySteps(rule model.AutomationRule, evt model.TriggerEvent) []Step {
	return []Step{{Name: "notify owner", Run: func(ctx context.Context, run *Run) (string, error) {
		addr, err := w.notifyAddress(ctx, rule)
		if err != nil {
			return "", err
		}
		subject, body := describeEvent(evt)
		if err := w.messaging.Send(ctx, addr, subject, body); err != nil {
			return "", err
		}
		return fmt.Sprintf("notified %s", addr), nil
	}}}
}

// notifyAddress prefers the rule's explicit address and falls back to
// the owner's account email.
func (w *Workflows) notifyAddress(ctx context.Context, rule model.AutomationRule) (string, error) {
	if rule.Params.NotifyAddress != "" {
		return rule.Params.NotifyAddress, nil
	}
	user, err := w.users.FindByID(ctx, rule.OwnerID)
	if err != nil {
		return "", fmt.Errorf("resolve owner address: %w", err)
	}
	return user.Email, nil
}

func describeEvent(evt model.TriggerEvent) (subject, body string) {
	switch {
	case evt.Email != nil:
		return fmt.Sprintf("New email from %s", evt.Email.Sender),
			fmt.Sprintf("Subject: %s\n\n%s", evt.Email.Subject, evt.Email.Body)
	case evt.Calendar != nil:
		return fmt.Sprintf("Calendar event %s", evt.Calendar.Change),
			fmt.Sprintf("%q was %s.", evt.Calendar.Title, evt.Calendar.Change)
	case evt.CRM != nil:
		return fmt.Sprintf("CRM %s %s", evt.CRM.ObjectType, evt.CRM.Change),
			fmt.Sprintf("%s %q was %s.", evt.CRM.ObjectType, evt.CRM.Name, evt.CRM.Change)
	default:
		return "Automation triggered", "One of your automations ran."
	}
}

var senderRe = regexp.MustCompile(`^\s*(?:"?([^"<]*)"?\s*)?<([^>]+)>\s*$`)

// splitSender parses "Jane Doe <jane@x.com>" into address and display
// name; a bare address comes back with an empty name.
func splitSender(sender string) (addr, name string) {
	if m := senderRe.FindStringSubmatch(sender); m != nil {
		return strings.TrimSpace(m[2]), strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(sender), ""
}

func splitDisplayName(full string) (first, last string) {
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

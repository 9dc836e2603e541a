package model

import "time"

// TriggerType classifies the external events automation rules react to.
type TriggerType string

const (
	TriggerEmailReceived TriggerType = "email_received"
	TriggerCalendarEvent TriggerType = "calendar_event"
	TriggerCRMContact    TriggerType = "crm_contact"
)

// RuleParams are the canonical parameters of an automation rule,
// stored as JSONB alongside the rule.
type RuleParams struct {
	CheckCRM        bool   `json:"check_crm,omitempty"`
	CreateIfMissing bool   `json:"create_if_missing,omitempty"`
	PersonName      string `json:"person_name,omitempty"`
	Notify          bool   `json:"notify,omitempty"`
	NotifyAddress   string `json:"notify_address,omitempty"`
	AddNote         bool   `json:"add_note,omitempty"`
	FollowUpDays    int    `json:"follow_up_days,omitempty"`
	ForwardTo       string `json:"forward_to,omitempty"`
}

// AutomationRule is a persisted trigger→action mapping derived from a
// user's free-text instruction. Rules are only mutated via explicit
// activate/deactivate and are never auto-deleted.
type AutomationRule struct {
	ID          string
	OwnerID     int
	Instruction string
	TriggerType TriggerType
	ActionType  ActionKind
	Params      RuleParams
	Active      bool
	Note        string // explanation when stored inactive (e.g. unrecognized instruction)
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EmailEventPayload is the payload of an email_received trigger.
type EmailEventPayload struct {
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// CalendarEventPayload is the payload of a calendar_event trigger.
type CalendarEventPayload struct {
	EventID string `json:"id"`
	Title   string `json:"title"`
	Change  string `json:"action"` // created, updated, deleted
}

// CRMEventPayload is the payload of a crm_contact trigger.
type CRMEventPayload struct {
	ObjectID   string `json:"id"`
	ObjectType string `json:"type"`
	Change     string `json:"action"`
	Name       string `json:"name"`
}

// TriggerEvent is one external occurrence delivered to the rule engine.
// Exactly one payload field is set, matching TriggerType.
type TriggerEvent struct {
	ID          string
	OwnerID     int
	TriggerType TriggerType
	Email       *EmailEventPayload
	Calendar    *CalendarEventPayload
	CRM         *CRMEventPayload
}

// TaskStatus is the lifecycle of a pending task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// PendingTask parks a workflow that is waiting on a future event,
// e.g. "wait for a reply email". Tasks may remain pending indefinitely.
type PendingTask struct {
	ID          string
	OwnerID     int
	Status      TaskStatus
	Context     map[string]string
	ScheduledAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

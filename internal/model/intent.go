package model

import "strings"

// ActionKind is the closed set of actions the dispatcher understands.
// The permissive JSON boundary in the interpreter is the only place
// untyped action strings are accepted; they are normalized here.
type ActionKind string

const (
	ActionSendEmail           ActionKind = "send_email"
	ActionSearchEmails        ActionKind = "search_emails"
	ActionCreateCalendarEvent ActionKind = "create_calendar_event"
	ActionUpdateCalendarEvent ActionKind = "update_calendar_event"
	ActionDeleteCalendarEvent ActionKind = "delete_calendar_event"
	ActionFindCRMContact      ActionKind = "find_crm_contact"
	ActionCreateCRMContact    ActionKind = "create_crm_contact"
	ActionAddCRMNote          ActionKind = "add_crm_note"
	ActionCreateAutomation    ActionKind = "create_automation"

	// Workflow kinds: one rule action that internally performs multiple
	// collaborator calls.
	ActionHandleEmailReceived ActionKind = "email_received"
	ActionHandleAppointment   ActionKind = "handle_appointment"

	ActionUnknown ActionKind = ""
)

var actionKinds = map[string]ActionKind{
	string(ActionSendEmail):           ActionSendEmail,
	string(ActionSearchEmails):        ActionSearchEmails,
	string(ActionCreateCalendarEvent): ActionCreateCalendarEvent,
	string(ActionUpdateCalendarEvent): ActionUpdateCalendarEvent,
	string(ActionDeleteCalendarEvent): ActionDeleteCalendarEvent,
	string(ActionFindCRMContact):      ActionFindCRMContact,
	string(ActionCreateCRMContact):    ActionCreateCRMContact,
	string(ActionAddCRMNote):          ActionAddCRMNote,
	string(ActionCreateAutomation):    ActionCreateAutomation,
	string(ActionHandleEmailReceived): ActionHandleEmailReceived,
	string(ActionHandleAppointment):   ActionHandleAppointment,
}

// ParseActionKind normalizes a raw action-type string (case-insensitive).
// Unknown strings return ActionUnknown together with ok=false; the dispatcher
// turns those into a failure outcome naming the unsupported type.
func ParseActionKind(s string) (ActionKind, bool) {
	k, ok := actionKinds[strings.ToLower(strings.TrimSpace(s))]
	return k, ok
}

// Action is one typed, parameterized operation against a collaborator.
// Params stays a map at this level: each dispatcher handler decodes it
// into its own typed parameter struct with synonym fallback.
type Action struct {
	Kind    ActionKind     `json:"type"`
	RawType string         `json:"-"` // original string, kept for error messages
	Params  map[string]any `json:"params,omitempty"`
}

// IntentKind tags the ParsedIntent union.
type IntentKind int

const (
	IntentActions IntentKind = iota
	IntentReply
	IntentUnparseable
)

// ParsedIntent is the interpreter's output: exactly one of an ordered
// action set, a conversational reply, or unparseable raw text.
type ParsedIntent struct {
	Kind    IntentKind
	Actions []Action
	Reply   string
	Raw     string
}

func ActionSetIntent(actions []Action) ParsedIntent {
	return ParsedIntent{Kind: IntentActions, Actions: actions}
}

func ReplyIntent(text string) ParsedIntent {
	return ParsedIntent{Kind: IntentReply, Reply: text}
}

func UnparseableIntent(raw string) ParsedIntent {
	return ParsedIntent{Kind: IntentUnparseable, Raw: raw}
}

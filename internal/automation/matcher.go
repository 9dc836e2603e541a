// Package automation turns free-text "when X happens, do Y" instructions
// into canonical trigger/action rules and replays them against inbound
// trigger events.
package automation

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"donna/internal/model"
)

// ErrUnrecognizedInstruction means no pattern matched. The caller stores
// the rule inactive with an explanatory note; an ambiguous automation
// request is never guessed at and never silently dropped.
var ErrUnrecognizedInstruction = errors.New("unrecognized automation type")

// Canonical is the (trigger, action, params) triple a rule executes as.
type Canonical struct {
	TriggerType model.TriggerType
	ActionType  model.ActionKind
	Params      model.RuleParams
}

type pattern struct {
	name  string
	match func(text string) bool
	build func(text string) Canonical
}

// Matcher classifies instruction text with an ordered pattern table,
// most specific first; the first match wins. It is deterministic: the
// same text always canonicalizes to the same triple. The table is
// isolated behind this type so it can be swapped for a model-driven
// classifier without touching callers.
type Matcher struct {
	patterns []pattern
}

func NewMatcher() *Matcher {
	return &Matcher{patterns: []pattern{
		{
			// "When I get an email from Jane, add her to the CRM if
			// she's not already there"
			name: "crm_from_email",
			match: func(t string) bool {
				return mentionsEmailTrigger(t) && mentionsCRM(t) &&
					containsAny(t, "add", "create", "put")
			},
			build: func(t string) Canonical {
				return Canonical{
					TriggerType: model.TriggerEmailReceived,
					ActionType:  model.ActionHandleEmailReceived,
					Params: model.RuleParams{
						CheckCRM:        true,
						CreateIfMissing: true,
						PersonName:      extractPersonName(t),
						AddNote:         strings.Contains(t, "note"),
						Notify:          mentionsNotify(t),
					},
				}
			},
		},
		{
			// "When an appointment is booked, log it in the CRM and
			// schedule a follow-up in 3 days"
			name: "appointment_followup",
			match: func(t string) bool {
				return containsAny(t, "appointment", "booking") ||
					(strings.Contains(t, "meeting") && containsAny(t, "booked", "scheduled", "confirmed"))
			},
			build: func(t string) Canonical {
				days := extractFollowUpDays(t)
				if days == 0 {
					days = 3
				}
				return Canonical{
					TriggerType: model.TriggerCalendarEvent,
					ActionType:  model.ActionHandleAppointment,
					Params: model.RuleParams{
						CheckCRM:        true,
						CreateIfMissing: true,
						AddNote:         true,
						FollowUpDays:    days,
						Notify:          mentionsNotify(t),
						NotifyAddress:   extractEmailAddress(t),
					},
				}
			},
		},
		{
			// "When I get an email from my accountant, forward it to
			// bob@example.com"
			name: "forward_email",
			match: func(t string) bool {
				return mentionsEmailTrigger(t) && strings.Contains(t, "forward") &&
					extractEmailAddress(t) != ""
			},
			build: func(t string) Canonical {
				return Canonical{
					TriggerType: model.TriggerEmailReceived,
					ActionType:  model.ActionHandleEmailReceived,
					Params: model.RuleParams{
						PersonName: extractPersonName(t),
						ForwardTo:  extractEmailAddress(t),
					},
				}
			},
		},
		{
			// "Let me know when Jane emails me"
			name: "notify_on_email",
			match: func(t string) bool {
				return mentionsEmailTrigger(t) && mentionsNotify(t)
			},
			build: func(t string) Canonical {
				return Canonical{
					TriggerType: model.TriggerEmailReceived,
					ActionType:  model.ActionHandleEmailReceived,
					Params: model.RuleParams{
						PersonName:    extractPersonName(t),
						Notify:        true,
						NotifyAddress: extractEmailAddress(t),
					},
				}
			},
		},
		{
			// "When a contact is added to HubSpot, send me a heads-up"
			name: "notify_on_crm_change",
			match: func(t string) bool {
				return mentionsCRM(t) && containsAny(t, "when", "whenever", "every time") &&
					mentionsNotify(t)
			},
			build: func(t string) Canonical {
				return Canonical{
					TriggerType: model.TriggerCRMContact,
					ActionType:  model.ActionSendEmail,
					Params: model.RuleParams{
						Notify:        true,
						NotifyAddress: extractEmailAddress(t),
					},
				}
			},
		},
		{
			// "Tell me when a meeting gets cancelled"
			name: "notify_on_calendar_change",
			match: func(t string) bool {
				return containsAny(t, "calendar", "meeting", "event") &&
					containsAny(t, "cancel", "chang", "mov", "reschedul") &&
					mentionsNotify(t)
			},
			build: func(t string) Canonical {
				return Canonical{
					TriggerType: model.TriggerCalendarEvent,
					ActionType:  model.ActionSendEmail,
					Params: model.RuleParams{
						Notify:        true,
						NotifyAddress: extractEmailAddress(t),
					},
				}
			},
		},
	}}
}

// Canonicalize classifies one instruction. First matching pattern wins.
func (m *Matcher) Canonicalize(instruction string) (Canonical, error) {
	text := strings.ToLower(strings.TrimSpace(instruction))
	if text == "" {
		return Canonical{}, ErrUnrecognizedInstruction
	}
	for _, p := range m.patterns {
		if p.match(text) {
			return p.build(text), nil
		}
	}
	return Canonical{}, ErrUnrecognizedInstruction
}

func containsAny(text string, subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

func mentionsEmailTrigger(text string) bool {
	return containsAny(text, "email", "e-mail", "mail from", "message from") &&
		containsAny(text, "when", "whenever", "every time", "if i get", "each time")
}

func mentionsCRM(text string) bool {
	return containsAny(text, "crm", "hubspot", "contact")
}

func mentionsNotify(text string) bool {
	return containsAny(text, "notify", "let me know", "tell me", "alert", "ping me", "heads-up", "heads up", "email me")
}

var (
	emailAddressRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	personNameRe   = regexp.MustCompile(`(?:from|by)\s+(?:my\s+)?([a-z][a-z'\-]+)`)
	followUpRe     = regexp.MustCompile(`in\s+(\d+)\s+days?`)
)

// extractPersonName pulls the sender filter out of phrases like "an
// email from Jane". Generic words after "from" are not names.
func extractPersonName(text string) string {
	m := personNameRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	name := m[1]
	switch name {
	case "a", "an", "any", "anyone", "somebody", "someone", "the", "them", "my":
		return ""
	}
	return name
}

func extractEmailAddress(text string) string {
	return emailAddressRe.FindString(text)
}

func extractFollowUpDays(text string) int {
	m := followUpRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

package coordinator

import (
	"fmt"
	"strings"

	"donna/internal/llm"
	"donna/internal/model"
)

// systemPrompt is the contract the interpreter parses against: the model
// may answer with an action set, a single action, or a plain response,
// and prose around the JSON is tolerated.
const systemPrompt = `You are Donna, a personal operations assistant. You can send and search email, manage calendar events, look up and create CRM contacts, add CRM notes, and save "when X happens, do Y" automations.

Decide whether the user's message is conversation or a request for action.

For actions, answer with a JSON object in one of these shapes:
{"actions":[{"type":"<action>","params":{...}}],"response":"<short confirmation>"}
{"action":"<action>","params":{...}}

For conversation, answer with:
{"response":"<your reply>"}

Supported action types: send_email (params: to, subject, body), search_emails (params: query), create_calendar_event (params: title, start, end, attendees), update_calendar_event (params: id, ...), delete_calendar_event (params: id), find_crm_contact (params: email), create_crm_contact (params: email, first_name, last_name), add_crm_note (params: email, note), create_automation (params: instruction).

Use ISO 8601 for dates and times. Never invent email addresses.`

// buildMessages assembles the completion request: system prompt with
// retrieved context folded in, recent turns, then the new message.
func buildMessages(req model.Request, relevantContext string, history []llm.Message) []llm.Message {
	system := systemPrompt
	if relevantContext != "" {
		system = fmt.Sprintf("%s\n\nRelevant context about this user:\n%s", systemPrompt, strings.TrimSpace(relevantContext))
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: system})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: req.Text})
	return messages
}

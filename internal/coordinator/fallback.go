package coordinator

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"donna/internal/action"
	"donna/internal/model"
)

// Heuristic extraction for total provider failure: a small set of
// regexes attempts a minimal direct action so an outage degrades to
// reduced capability instead of a dead assistant.
var (
	fallbackEmailRe   = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	fallbackSubjectRe = regexp.MustCompile(`(?i)(?:about|regarding|re:|subject[:\s]+)\s*(.+?)(?:\.|$)`)
	fallbackTimeRe    = regexp.MustCompile(`\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2})?`)
)

func (c *Coordinator) fallback(ctx context.Context, req model.Request, log *zap.Logger) string {
	text := req.Text
	lower := strings.ToLower(text)
	dc := action.DispatchContext{OwnerID: req.UserID, Capabilities: c.capabilities}

	wantsEmail := strings.Contains(lower, "email") || strings.Contains(lower, "send") ||
		strings.Contains(lower, "mail")
	wantsEvent := strings.Contains(lower, "meeting") || strings.Contains(lower, "schedule") ||
		strings.Contains(lower, "calendar") || strings.Contains(lower, "appointment")

	if wantsEmail {
		addr := fallbackEmailRe.FindString(text)
		if addr == "" {
			// Nothing safe to do without an address; ask instead of guessing.
			return "I'm having trouble reaching my language models right now. I can still send that email if you give me the exact email address."
		}

		subject := "(no subject)"
		if m := fallbackSubjectRe.FindStringSubmatch(text); m != nil {
			subject = strings.TrimSpace(m[1])
		}

		log.Info("Fallback dispatching direct email", zap.String("to", addr))
		outcomes := c.dispatcher.DispatchAll(ctx, dc, []model.Action{{
			Kind:    model.ActionSendEmail,
			RawType: string(model.ActionSendEmail),
			Params: map[string]any{
				"to":      addr,
				"subject": subject,
				"body":    text,
			},
		}})
		return action.Summarize(outcomes)
	}

	if wantsEvent {
		when := fallbackTimeRe.FindString(text)
		if when == "" {
			return "I'm having trouble reaching my language models right now. I can still create that event if you give me a date like 2026-09-03 14:00."
		}

		title := "New event"
		if m := fallbackSubjectRe.FindStringSubmatch(text); m != nil {
			title = strings.TrimSpace(m[1])
		}

		log.Info("Fallback dispatching direct calendar event", zap.String("start", when))
		outcomes := c.dispatcher.DispatchAll(ctx, dc, []model.Action{{
			Kind:    model.ActionCreateCalendarEvent,
			RawType: string(model.ActionCreateCalendarEvent),
			Params: map[string]any{
				"title": title,
				"start": when,
			},
		}})
		return action.Summarize(outcomes)
	}

	return "I'm having trouble reaching my language models right now. Please try again in a moment."
}

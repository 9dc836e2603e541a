// Package mq defines the wire payloads for trigger events. Producers
// (the ingestion services and the simulate endpoint) and the worker's
// consumers share these shapes.
package mq

import "time"

// Routing keys on the topic exchange, one queue each on the worker.
const (
	RoutingKeyEmailReceived = "email.received"
	RoutingKeyCalendarEvent = "calendar.event"
	RoutingKeyCRMContact    = "crm.contact"
)

// EmailReceivedPayload 邮件收到事件的 payload
type EmailReceivedPayload struct {
	EventID    string    `json:"event_id"`
	UserID     int       `json:"user_id"`
	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// CalendarEventPayload 日历变更事件的 payload
type CalendarEventPayload struct {
	EventID         string `json:"event_id"`
	UserID          int    `json:"user_id"`
	CalendarEventID string `json:"id"`
	Title           string `json:"title"`
	Action          string `json:"action"` // created, updated, deleted
}

// CRMContactPayload CRM 对象变更事件的 payload
type CRMContactPayload struct {
	EventID    string `json:"event_id"`
	UserID     int    `json:"user_id"`
	ObjectID   string `json:"id"`
	ObjectType string `json:"type"`
	Action     string `json:"action"`
	Name       string `json:"name"`
}

// Package integration holds the abstract interfaces the core calls on
// external collaborator services, plus thin HTTP clients for each. The
// core never depends on a concrete client type.
package integration

import (
	"context"
	"time"
)

// EmailSummary is one search hit from the messaging collaborator.
type EmailSummary struct {
	Subject string    `json:"subject"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Date    time.Time `json:"date"`
}

// Messaging sends and searches email.
type Messaging interface {
	Send(ctx context.Context, to, subject, body string) error
	Search(ctx context.Context, query string) ([]EmailSummary, error)
}

// EventParams are the fields for creating or updating a calendar event.
type EventParams struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Attendees   []string  `json:"attendees,omitempty"`
	Location    string    `json:"location,omitempty"`
}

// CalendarEvent is a calendar entry as returned by the collaborator.
type CalendarEvent struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Attendees   []string  `json:"attendees,omitempty"`
	Location    string    `json:"location,omitempty"`
}

// Calendar manages calendar entries.
type Calendar interface {
	CreateEvent(ctx context.Context, p EventParams) (*CalendarEvent, error)
	GetEvent(ctx context.Context, id string) (*CalendarEvent, error)
	UpdateEvent(ctx context.Context, id string, p EventParams) (*CalendarEvent, error)
	DeleteEvent(ctx context.Context, id string) error
}

// ContactFields are the properties for creating a CRM contact.
type ContactFields struct {
	Email     string `json:"email"`
	FirstName string `json:"firstname,omitempty"`
	LastName  string `json:"lastname,omitempty"`
	Company   string `json:"company,omitempty"`
}

// Contact is a CRM contact record.
type Contact struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstname,omitempty"`
	LastName  string `json:"lastname,omitempty"`
}

// CRM looks up and creates contacts and attaches notes.
// FindContactByEmail returns (nil, nil) when no contact matches.
type CRM interface {
	FindContactByEmail(ctx context.Context, email string) (*Contact, error)
	CreateContact(ctx context.Context, fields ContactFields) (*Contact, error)
	AddNote(ctx context.Context, contactID, text string) error
}

// ContextLookup is the external retrieval capability. Best-effort: it
// returns an empty string on any failure and must never block the main
// flow beyond its own timeout.
type ContextLookup interface {
	RelevantContext(ctx context.Context, ownerID int, text string) string
}

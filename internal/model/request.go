package model

import "time"

// Request is one inbound chat message, consumed once by the coordinator.
type Request struct {
	UserID         int
	ConversationID string
	Text           string
	ReceivedAt     time.Time
}

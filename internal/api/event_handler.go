package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"donna/internal/mq"
	pkgmq "donna/pkg/mq"
)

// EventHandler publishes simulated trigger events to the exchange, the
// same path real ingestion would take. Useful for demos and smoke tests.
type EventHandler struct {
	publisher *pkgmq.Publisher
}

func NewEventHandler(publisher *pkgmq.Publisher) *EventHandler {
	return &EventHandler{publisher: publisher}
}

type simulateEventRequest struct {
	Type    string `json:"type" binding:"required"` // email_received, calendar_event, crm_contact
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	ID      string `json:"id"`
	Title   string `json:"title"`
	Name    string `json:"name"`
	Action  string `json:"action"`
}

func (h *EventHandler) SimulateEvent(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req simulateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	eventID := uuid.NewString()

	var (
		routingKey string
		payload    any
	)
	switch req.Type {
	case "email_received":
		routingKey = mq.RoutingKeyEmailReceived
		payload = mq.EmailReceivedPayload{
			EventID:    eventID,
			UserID:     userID,
			Sender:     req.Sender,
			Subject:    req.Subject,
			Body:       req.Body,
			ReceivedAt: time.Now(),
		}
	case "calendar_event":
		routingKey = mq.RoutingKeyCalendarEvent
		payload = mq.CalendarEventPayload{
			EventID:         eventID,
			UserID:          userID,
			CalendarEventID: req.ID,
			Title:           req.Title,
			Action:          req.Action,
		}
	case "crm_contact":
		routingKey = mq.RoutingKeyCRMContact
		payload = mq.CRMContactPayload{
			EventID:    eventID,
			UserID:     userID,
			ObjectID:   req.ID,
			ObjectType: "contact",
			Action:     req.Action,
			Name:       req.Name,
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event type"})
		return
	}

	if err := h.publisher.Publish(routingKey, payload); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to publish event"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"event_id": eventID, "routing_key": routingKey})
}

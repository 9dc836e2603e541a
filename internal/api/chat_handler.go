package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"donna/internal/coordinator"
	"donna/internal/model"
	"donna/pkg/trace"
)

type ChatHandler struct {
	coordinator *coordinator.Coordinator
}

func NewChatHandler(coord *coordinator.Coordinator) *ChatHandler {
	return &ChatHandler{coordinator: coord}
}

type chatRequest struct {
	ConversationID string `json:"conversation_id" binding:"required"`
	Text           string `json:"text" binding:"required"`
}

// Chat handles one conversational turn. The reply is always 200 with a
// text body; failures downstream surface as conversational fallbacks,
// not HTTP errors.
func (h *ChatHandler) Chat(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ctx := c.Request.Context()
	traceID := c.GetHeader(trace.HeaderName())
	if traceID == "" {
		traceID = trace.GenerateTraceID()
	}
	ctx = trace.WithContext(ctx, traceID)

	reply := h.coordinator.Handle(ctx, model.Request{
		UserID:         userID,
		ConversationID: req.ConversationID,
		Text:           req.Text,
		ReceivedAt:     time.Now(),
	})

	c.Header(trace.HeaderName(), traceID)
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

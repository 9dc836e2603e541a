// Package mqhandler decodes trigger-event payloads off the queue and
// hands them to the automation rule engine.
package mqhandler

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"

	"go.uber.org/zap"

	"donna/internal/model"
	"donna/internal/mq"
	"donna/internal/util"
)

const maxRetries = 5

type ruleEngine interface {
	HandleEvent(ctx context.Context, event model.TriggerEvent) error
}

type deadLetterer interface {
	PublishToDLQ(routingKey string, payload []byte, originalError string) error
}

type retryCounter interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

type TriggerHandler struct {
	engine  ruleEngine
	dlq     deadLetterer
	retries retryCounter
	logger  *zap.Logger
}

func NewTriggerHandler(engine ruleEngine, dlq deadLetterer, retries retryCounter, logger *zap.Logger) *TriggerHandler {
	return &TriggerHandler{engine: engine, dlq: dlq, retries: retries, logger: logger}
}

// HandleEmailReceived processes one email.received delivery. A malformed
// payload can never succeed on redelivery, so it is dead-lettered and
// acked instead of requeued.
func (h *TriggerHandler) HandleEmailReceived(ctx context.Context, raw json.RawMessage) error {
	var p mq.EmailReceivedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.deadLetter(mq.RoutingKeyEmailReceived, raw, "json_decode_error", err)
		return nil
	}

	return h.deliver(ctx, mq.RoutingKeyEmailReceived, raw, model.TriggerEvent{
		ID:          eventID(p.EventID, raw),
		OwnerID:     p.UserID,
		TriggerType: model.TriggerEmailReceived,
		Email: &model.EmailEventPayload{
			Sender:  p.Sender,
			Subject: p.Subject,
			Body:    p.Body,
		},
	})
}

// HandleCalendarEvent processes one calendar.event delivery.
func (h *TriggerHandler) HandleCalendarEvent(ctx context.Context, raw json.RawMessage) error {
	var p mq.CalendarEventPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.deadLetter(mq.RoutingKeyCalendarEvent, raw, "json_decode_error", err)
		return nil
	}

	return h.deliver(ctx, mq.RoutingKeyCalendarEvent, raw, model.TriggerEvent{
		ID:          eventID(p.EventID, raw),
		OwnerID:     p.UserID,
		TriggerType: model.TriggerCalendarEvent,
		Calendar: &model.CalendarEventPayload{
			EventID: p.CalendarEventID,
			Title:   p.Title,
			Change:  p.Action,
		},
	})
}

// HandleCRMContact processes one crm.contact delivery.
func (h *TriggerHandler) HandleCRMContact(ctx context.Context, raw json.RawMessage) error {
	var p mq.CRMContactPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.deadLetter(mq.RoutingKeyCRMContact, raw, "json_decode_error", err)
		return nil
	}

	return h.deliver(ctx, mq.RoutingKeyCRMContact, raw, model.TriggerEvent{
		ID:          eventID(p.EventID, raw),
		OwnerID:     p.UserID,
		TriggerType: model.TriggerCRMContact,
		CRM: &model.CRMEventPayload{
			ObjectID:   p.ObjectID,
			ObjectType: p.ObjectType,
			Change:     p.Action,
			Name:       p.Name,
		},
	})
}

// deliver runs the engine and classifies any failure. Retryable errors
// are returned so the consumer nacks and requeues, but only up to
// maxRetries per event; everything else is dead-lettered and acked.
func (h *TriggerHandler) deliver(ctx context.Context, routingKey string, raw json.RawMessage, event model.TriggerEvent) error {
	err := h.engine.HandleEvent(ctx, event)
	if err == nil {
		return nil
	}

	isRetryable, errType := util.IsRetryableError(err)
	if !isRetryable {
		h.deadLetter(routingKey, raw, errType, err)
		return nil
	}

	retryKey := util.FormatRetryKey(routingKey, event.ID)
	retryCount, cerr := h.retries.IncrementAndGet(ctx, retryKey)
	if cerr != nil {
		// Redis 不可用时假设第一次重试
		h.logger.Warn("Failed to read retry count, assuming first attempt",
			zap.String("routing_key", routingKey),
			zap.Error(cerr),
		)
		retryCount = 1
	}

	if util.ShouldRetry(retryCount, maxRetries, isRetryable) {
		h.logger.Warn("Retryable handler error, requeueing",
			zap.String("routing_key", routingKey),
			zap.String("event_id", event.ID),
			zap.String("error_type", errType),
			zap.Int64("retry_count", retryCount),
			zap.Error(err),
		)
		return err
	}

	h.deadLetter(routingKey, raw, errType, err)
	if rerr := h.retries.Reset(ctx, retryKey); rerr != nil {
		h.logger.Warn("Failed to reset retry count", zap.String("key", retryKey), zap.Error(rerr))
	}
	return nil
}

func (h *TriggerHandler) deadLetter(routingKey string, raw []byte, errType string, cause error) {
	h.logger.Error("Dead-lettering message",
		zap.String("routing_key", routingKey),
		zap.String("error_type", errType),
		zap.Error(cause),
	)
	if err := h.dlq.PublishToDLQ(routingKey, raw, cause.Error()); err != nil {
		h.logger.Error("Failed to publish to DLQ",
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
	}
}

// eventID prefers the producer-assigned id; without one, a digest of
// the body keeps the id stable across redeliveries so dedup still holds.
func eventID(id string, raw []byte) string {
	if id != "" {
		return id
	}
	sum := sha1.Sum(raw)
	return hex.EncodeToString(sum[:])
}

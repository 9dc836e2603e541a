package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"donna/internal/model"
	"donna/internal/mq"
)

type fakeEngine struct {
	err    error
	events []model.TriggerEvent
}

func (f *fakeEngine) HandleEvent(ctx context.Context, event model.TriggerEvent) error {
	f.events = append(f.events, event)
	return f.err
}

type fakeDLQ struct {
	published []string // routing keys
	reasons   []string
}

func (f *fakeDLQ) PublishToDLQ(routingKey string, payload []byte, originalError string) error {
	f.published = append(f.published, routingKey)
	f.reasons = append(f.reasons, originalError)
	return nil
}

type fakeRetries struct {
	count  int64
	err    error
	resets []string
}

func (f *fakeRetries) IncrementAndGet(ctx context.Context, key string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.count++
	return f.count, nil
}

func (f *fakeRetries) Reset(ctx context.Context, key string) error {
	f.resets = append(f.resets, key)
	return nil
}

func newTestHandler(engine *fakeEngine) (*TriggerHandler, *fakeDLQ, *fakeRetries) {
	dlq := &fakeDLQ{}
	retries := &fakeRetries{}
	return NewTriggerHandler(engine, dlq, retries, zap.NewNop()), dlq, retries
}

func emailBody(t *testing.T) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(mq.EmailReceivedPayload{
		EventID: "evt-1",
		UserID:  7,
		Sender:  "jane@example.com",
		Subject: "hello",
	})
	require.NoError(t, err)
	return raw
}

func TestHandleEmailReceivedDeliversEvent(t *testing.T) {
	engine := &fakeEngine{}
	h, dlq, _ := newTestHandler(engine)

	err := h.HandleEmailReceived(context.Background(), emailBody(t))
	require.NoError(t, err)
	require.Len(t, engine.events, 1)
	require.Equal(t, "evt-1", engine.events[0].ID)
	require.Equal(t, model.TriggerEmailReceived, engine.events[0].TriggerType)
	require.Empty(t, dlq.published)
}

func TestMalformedPayloadIsDeadLetteredNotRequeued(t *testing.T) {
	engine := &fakeEngine{}
	h, dlq, _ := newTestHandler(engine)

	err := h.HandleEmailReceived(context.Background(), json.RawMessage(`{not json`))
	require.NoError(t, err, "a payload that can never decode must be acked, not requeued")
	require.Equal(t, []string{mq.RoutingKeyEmailReceived}, dlq.published)
	require.Empty(t, engine.events)
}

func TestNonRetryableEngineErrorIsDeadLettered(t *testing.T) {
	engine := &fakeEngine{err: errors.New("list active rules: duplicate key value violates unique constraint")}
	h, dlq, _ := newTestHandler(engine)

	err := h.HandleEmailReceived(context.Background(), emailBody(t))
	require.NoError(t, err)
	require.Equal(t, []string{mq.RoutingKeyEmailReceived}, dlq.published)
	require.Contains(t, dlq.reasons[0], "duplicate key")
}

func TestRetryableEngineErrorRequeuesUnderLimit(t *testing.T) {
	engine := &fakeEngine{err: fmt.Errorf("list active rules: %w", context.DeadlineExceeded)}
	h, dlq, _ := newTestHandler(engine)

	err := h.HandleEmailReceived(context.Background(), emailBody(t))
	require.Error(t, err, "a retryable error must be returned so the delivery is requeued")
	require.Empty(t, dlq.published)
}

func TestRetryableEngineErrorDeadLettersAfterBudget(t *testing.T) {
	engine := &fakeEngine{err: fmt.Errorf("list active rules: %w", context.DeadlineExceeded)}
	h, dlq, retries := newTestHandler(engine)

	body := emailBody(t)
	for i := 0; i < maxRetries; i++ {
		require.Error(t, h.HandleEmailReceived(context.Background(), body))
	}

	// Budget exhausted: the next redelivery is dead-lettered and acked.
	err := h.HandleEmailReceived(context.Background(), body)
	require.NoError(t, err)
	require.Equal(t, []string{mq.RoutingKeyEmailReceived}, dlq.published)
	require.Len(t, retries.resets, 1)
}

func TestRetryCounterOutageAssumesFirstAttempt(t *testing.T) {
	engine := &fakeEngine{err: fmt.Errorf("list active rules: %w", context.DeadlineExceeded)}
	dlq := &fakeDLQ{}
	retries := &fakeRetries{err: errors.New("redis: connection refused")}
	h := NewTriggerHandler(engine, dlq, retries, zap.NewNop())

	err := h.HandleEmailReceived(context.Background(), emailBody(t))
	require.Error(t, err, "without a count the delivery is treated as a first attempt and requeued")
	require.Empty(t, dlq.published)
}

func TestHandleCalendarEventStableIDWithoutProducerID(t *testing.T) {
	engine := &fakeEngine{}
	h, _, _ := newTestHandler(engine)

	raw, err := json.Marshal(mq.CalendarEventPayload{UserID: 7, Title: "Consultation", Action: "created"})
	require.NoError(t, err)

	require.NoError(t, h.HandleCalendarEvent(context.Background(), raw))
	require.NoError(t, h.HandleCalendarEvent(context.Background(), raw))
	require.Len(t, engine.events, 2)
	require.Equal(t, engine.events[0].ID, engine.events[1].ID)
	require.NotEmpty(t, engine.events[0].ID)
}

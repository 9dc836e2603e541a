package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"donna/internal/llm"
)

const (
	historyMaxTurns = 20
	historyTTL      = 24 * time.Hour
)

// History caches recent conversation turns in redis so follow-up
// messages carry context. Best-effort: a redis outage degrades to an
// empty history, never a failed request.
type History struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewHistory(rdb *redis.Client, logger *zap.Logger) *History {
	return &History{rdb: rdb, logger: logger}
}

func historyKey(conversationID string) string {
	return fmt.Sprintf("conv:%s:history", conversationID)
}

func (h *History) Append(ctx context.Context, conversationID, role, content string) {
	raw, err := json.Marshal(llm.Message{Role: role, Content: content})
	if err != nil {
		return
	}

	key := historyKey(conversationID)
	pipe := h.rdb.Pipeline()
	pipe.RPush(ctx, key, raw)
	pipe.LTrim(ctx, key, -historyMaxTurns, -1)
	pipe.Expire(ctx, key, historyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		h.logger.Debug("Failed to append conversation history", zap.Error(err))
	}
}

func (h *History) Recent(ctx context.Context, conversationID string) []llm.Message {
	raws, err := h.rdb.LRange(ctx, historyKey(conversationID), 0, -1).Result()
	if err != nil {
		h.logger.Debug("Failed to load conversation history", zap.Error(err))
		return nil
	}

	messages := make([]llm.Message, 0, len(raws))
	for _, raw := range raws {
		var m llm.Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			continue
		}
		messages = append(messages, m)
	}
	return messages
}

package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper guards against duplicate delivery of the same trigger event.
// The event source is at-least-once, so rule executions key on
// (event id, rule id).
type Deduper struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewDeduper(rdb *redis.Client, ttl time.Duration) *Deduper {
	return &Deduper{rdb: rdb, ttl: ttl}
}

// AcquireOnce tries to acquire a dedup lock for a given event + rule.
// Returns true if this is the FIRST time processing, false on a duplicate.
func (d *Deduper) AcquireOnce(ctx context.Context, eventID, ruleID string) bool {
	key := fmt.Sprintf("automation:dedup:%s:%s", eventID, ruleID)

	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		// Redis 挂了？为了安全：当 redis 不可用时，不阻止处理，返回 true
		return true
	}
	return ok
}

package ratelimit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"realtime-service/internal/models"
)

// RedisLimiter counts in Redis with atomic increments and TTLs on first write.
type RedisLimiter struct {
	rdb    *redis.Client
	limits Limits
	now    func() time.Time
}

// NewRedisLimiter constructs a RedisLimiter.
func NewRedisLimiter(rdb *redis.Client, limits Limits) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limits: limits, now: time.Now}
}

func messageKey(userID int64, window string) string {
	return fmt.Sprintf("rl:msg:%d:%s", userID, window)
}

func conversationKey(userID int64, window string) string {
	return fmt.Sprintf("rl:conv:%d:%s", userID, window)
}

// Check reads both counters in one round trip. A Redis outage fails open: the
// limiter must never block the primary action on bookkeeping problems.
func (l *RedisLimiter) Check(ctx context.Context, userID int64) (models.RateLimitStatus, error) {
	now := l.now()
	status := models.RateLimitStatus{
		MessagesRemaining:      l.limits.MessagesPerMinute,
		ConversationsRemaining: l.limits.ConversationsPerDay,
		ResetAt:                minuteReset(now),
	}

	vals, err := l.rdb.MGet(ctx, messageKey(userID, minuteWindow(now)), conversationKey(userID, dayWindow(now))).Result()
	if err != nil {
		log.Printf("rate limit check unavailable, allowing: %v", err)
		return status, nil
	}

	status.MessagesRemaining = remaining(l.limits.MessagesPerMinute, parseCount(vals[0]))
	status.ConversationsRemaining = remaining(l.limits.ConversationsPerDay, parseCount(vals[1]))
	return status, nil
}

// Increment bumps a counter and sets the TTL when the window key is new.
func (l *RedisLimiter) Increment(ctx context.Context, userID int64, kind Kind) error {
	now := l.now()
	key := messageKey(userID, minuteWindow(now))
	ttl := 2 * time.Minute
	if kind == KindConversation {
		key = conversationKey(userID, dayWindow(now))
		ttl = 48 * time.Hour
	}

	pipe := l.rdb.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func parseCount(val interface{}) int {
	s, ok := val.(string)
	if !ok {
		return 0
	}
	var count int
	if _, err := fmt.Sscanf(s, "%d", &count); err != nil {
		return 0
	}
	return count
}

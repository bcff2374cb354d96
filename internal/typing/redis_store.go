package typing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"realtime-service/internal/models"
)

// scanBatch bounds both the SCAN page size and the MGET batch, so listing a
// conversation never turns into an unbounded full-keyspace scan on a shared
// Redis deployment.
const scanBatch = 100

// RedisStore keeps one short-TTL key per (conversation, user).
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func typingKey(conversationID, userID int64) string {
	return fmt.Sprintf("typing:%d:%d", conversationID, userID)
}

func typingPattern(conversationID int64) string {
	return fmt.Sprintf("typing:%d:*", conversationID)
}

func (s *RedisStore) Set(ctx context.Context, indicator models.TypingIndicator, ttl time.Duration) error {
	payload, err := json.Marshal(indicator)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, typingKey(indicator.ConversationID, indicator.UserID), payload, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, conversationID int64, userID int64) error {
	return s.rdb.Del(ctx, typingKey(conversationID, userID)).Err()
}

// List walks the conversation's keys with an incremental cursor scan and
// fetches values in batched multi-gets.
func (s *RedisStore) List(ctx context.Context, conversationID int64) ([]models.TypingIndicator, error) {
	var indicators []models.TypingIndicator
	var cursor uint64

	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, typingPattern(conversationID), scanBatch).Result()
		if err != nil {
			return nil, err
		}

		for start := 0; start < len(keys); start += scanBatch {
			end := start + scanBatch
			if end > len(keys) {
				end = len(keys)
			}
			vals, err := s.rdb.MGet(ctx, keys[start:end]...).Result()
			if err != nil {
				return nil, err
			}
			for _, val := range vals {
				raw, ok := val.(string)
				if !ok {
					// key expired between scan and fetch
					continue
				}
				var indicator models.TypingIndicator
				if err := json.Unmarshal([]byte(raw), &indicator); err != nil {
					continue
				}
				indicators = append(indicators, indicator)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return indicators, nil
}

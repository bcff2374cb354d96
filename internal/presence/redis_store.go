package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"realtime-service/internal/models"
)

// RedisStore keeps presence entries as JSON values with a TTL. Expiry is the
// offline transition: last write wins, no cross-process locking.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func presenceKey(userID int64) string {
	return fmt.Sprintf("presence:%d", userID)
}

func (s *RedisStore) Set(ctx context.Context, entry models.UserPresence, ttl time.Duration) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, presenceKey(entry.UserID), payload, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, userID int64) (*models.UserPresence, error) {
	result, err := s.GetBulk(ctx, []int64{userID})
	if err != nil {
		return nil, err
	}
	return result[userID], nil
}

// GetBulk fetches all requested entries in a single MGET.
func (s *RedisStore) GetBulk(ctx context.Context, userIDs []int64) (map[int64]*models.UserPresence, error) {
	result := make(map[int64]*models.UserPresence, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = presenceKey(id)
	}

	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, val := range vals {
		raw, ok := val.(string)
		if !ok {
			continue
		}
		var entry models.UserPresence
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		result[userIDs[i]] = &entry
	}
	return result, nil
}

func (s *RedisStore) Delete(ctx context.Context, userID int64) error {
	return s.rdb.Del(ctx, presenceKey(userID)).Err()
}

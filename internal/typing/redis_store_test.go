package typing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime-service/internal/models"
)

func newRedisTypingStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client), mr
}

func typistIDs(indicators []models.TypingIndicator) []int64 {
	ids := make([]int64, 0, len(indicators))
	for _, indicator := range indicators {
		ids = append(ids, indicator.UserID)
	}
	return ids
}

func TestRedisStoreListIsScopedToConversation(t *testing.T) {
	store, _ := newRedisTypingStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, models.TypingIndicator{ConversationID: 10, UserID: 1, Username: "dima"}, 5*time.Second))
	require.NoError(t, store.Set(ctx, models.TypingIndicator{ConversationID: 10, UserID: 2, Username: "lena"}, 5*time.Second))
	require.NoError(t, store.Set(ctx, models.TypingIndicator{ConversationID: 11, UserID: 3, Username: "sasha"}, 5*time.Second))

	indicators, err := store.List(ctx, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, typistIDs(indicators))

	indicators, err = store.List(ctx, 11)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{3}, typistIDs(indicators))
}

func TestRedisStoreDeleteStopsListingTypist(t *testing.T) {
	store, _ := newRedisTypingStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, models.TypingIndicator{ConversationID: 10, UserID: 1}, 5*time.Second))
	require.NoError(t, store.Delete(ctx, 10, 1))

	indicators, err := store.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, indicators)
}

func TestRedisStoreIndicatorsExpire(t *testing.T) {
	store, mr := newRedisTypingStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, models.TypingIndicator{ConversationID: 10, UserID: 1}, 5*time.Second))
	require.NoError(t, store.Set(ctx, models.TypingIndicator{ConversationID: 10, UserID: 2}, 5*time.Second))

	// refresh user 2 halfway so only user 1 drops off
	mr.FastForward(3 * time.Second)
	require.NoError(t, store.Set(ctx, models.TypingIndicator{ConversationID: 10, UserID: 2}, 5*time.Second))
	mr.FastForward(3 * time.Second)

	indicators, err := store.List(ctx, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{2}, typistIDs(indicators))
}

func TestRedisStoreListBatchesLargeConversations(t *testing.T) {
	store, _ := newRedisTypingStore(t)
	ctx := context.Background()

	total := scanBatch*2 + 7
	for i := 0; i < total; i++ {
		indicator := models.TypingIndicator{
			ConversationID: 10,
			UserID:         int64(i + 1),
			Username:       fmt.Sprintf("user-%d", i+1),
		}
		require.NoError(t, store.Set(ctx, indicator, time.Minute))
	}

	indicators, err := store.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, indicators, total)
}

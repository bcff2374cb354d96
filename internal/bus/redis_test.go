package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime-service/internal/models"
)

const testChannel = "realtime:events"

type syncDispatcher struct {
	mu      sync.Mutex
	events  []models.Event
	targets [][]int64
}

func (d *syncDispatcher) DispatchLocal(event models.Event, targetUserIDs []int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	d.targets = append(d.targets, targetUserIDs)
}

func (d *syncDispatcher) snapshot() []models.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.Event(nil), d.events...)
}

func newRedisBusEnv(t *testing.T) (*RedisBus, *syncDispatcher, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	dispatcher := &syncDispatcher{}
	return NewRedisBus(client, testChannel, dispatcher), dispatcher, mr, client
}

func startAndAwaitSubscriber(t *testing.T, b *RedisBus, client *redis.Client) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	b.Start(ctx)
	require.Eventually(t, func() bool {
		counts, err := client.PubSubNumSub(context.Background(), testChannel).Result()
		return err == nil && counts[testChannel] == 1
	}, 2*time.Second, 10*time.Millisecond)
	return cancel
}

func TestRedisBusDeliversToPublisherThroughSubscriberLoop(t *testing.T) {
	b, dispatcher, _, client := newRedisBusEnv(t)
	cancel := startAndAwaitSubscriber(t, b, client)
	defer cancel()

	event := models.Event{Type: models.EventMessageNew, ConversationID: 10, MessageID: 5}
	require.NoError(t, b.Publish(context.Background(), event, []int64{1, 2}))

	require.Eventually(t, func() bool {
		return len(dispatcher.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	got := dispatcher.snapshot()[0]
	assert.Equal(t, event, got)
	assert.Equal(t, []int64{1, 2}, dispatcher.targets[0])
}

func TestRedisBusDropsMalformedEnvelopes(t *testing.T) {
	b, dispatcher, _, client := newRedisBusEnv(t)
	cancel := startAndAwaitSubscriber(t, b, client)
	defer cancel()

	require.NoError(t, client.Publish(context.Background(), testChannel, "not json").Err())

	event := models.Event{Type: models.EventTypingStart, ConversationID: 3, UserID: 7}
	require.NoError(t, b.Publish(context.Background(), event, []int64{8}))

	require.Eventually(t, func() bool {
		return len(dispatcher.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// only the valid envelope made it through
	got := dispatcher.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, event, got[0])
}

func TestRedisBusPublishFailureFallsBackToLocalDispatch(t *testing.T) {
	b, dispatcher, mr, _ := newRedisBusEnv(t)
	mr.Close()

	event := models.Event{Type: models.EventPresenceOnline, UserID: 4}
	require.NoError(t, b.Publish(context.Background(), event, []int64{5}))

	// the fallback dispatch is synchronous
	got := dispatcher.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, event, got[0])
	assert.Equal(t, []int64{5}, dispatcher.targets[0])
}

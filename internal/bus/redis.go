package bus

import (
	"context"
	"encoding/json"
	"log"

	"github.com/go-redis/redis/v8"

	"realtime-service/internal/models"
	"realtime-service/internal/observability"
)

// RedisBus publishes envelopes to a shared pub/sub channel. Every process,
// including the publisher, runs a subscriber loop that dispatches locally, so
// delivery to the publishing process's own connections goes through the same
// code path as everyone else's.
type RedisBus struct {
	rdb        *redis.Client
	channel    string
	dispatcher Dispatcher
}

// NewRedisBus constructs a RedisBus.
func NewRedisBus(rdb *redis.Client, channel string, dispatcher Dispatcher) *RedisBus {
	return &RedisBus{rdb: rdb, channel: channel, dispatcher: dispatcher}
}

// Start runs the subscriber loop until ctx is cancelled.
func (b *RedisBus) Start(ctx context.Context) {
	pubsub := b.rdb.Subscribe(ctx, b.channel)

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					log.Printf("event bus: dropping malformed envelope: %v", err)
					continue
				}
				b.dispatcher.DispatchLocal(env.Event, env.TargetUserIDs)
			}
		}
	}()
}

// Publish serializes the event and its target set to the shared channel. A
// publish failure falls back to local dispatch so this process's connections
// still receive the event; remote clients recover via history fetches.
func (b *RedisBus) Publish(ctx context.Context, event models.Event, targetUserIDs []int64) error {
	payload, err := json.Marshal(envelope{Event: event, TargetUserIDs: targetUserIDs})
	if err != nil {
		return err
	}

	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		log.Printf("event bus: publish failed, dispatching locally: %v", err)
		observability.IncStoreFallback("event_bus")
		b.dispatcher.DispatchLocal(event, targetUserIDs)
		return nil
	}
	observability.IncEventPublished("redis", event.Type)
	return nil
}

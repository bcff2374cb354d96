package bus

import (
	"context"

	"realtime-service/internal/models"
	"realtime-service/internal/observability"
)

// LocalBus dispatches directly in-process. It is the single-server fallback
// when no pub/sub channel is configured.
type LocalBus struct {
	dispatcher Dispatcher
}

// NewLocalBus constructs a LocalBus.
func NewLocalBus(dispatcher Dispatcher) *LocalBus {
	return &LocalBus{dispatcher: dispatcher}
}

// Publish hands the event straight to the local dispatcher.
func (b *LocalBus) Publish(_ context.Context, event models.Event, targetUserIDs []int64) error {
	b.dispatcher.DispatchLocal(event, targetUserIDs)
	observability.IncEventPublished("local", event.Type)
	return nil
}

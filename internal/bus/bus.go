package bus

import (
	"context"

	"realtime-service/internal/models"
)

// Dispatcher delivers an event to this process's local connections. The
// connection registry implements it.
type Dispatcher interface {
	DispatchLocal(event models.Event, targetUserIDs []int64)
}

// EventBus fans an event out to the live connections of the target users,
// either across processes or in-process. Callers depend only on this
// interface; the transport is chosen once at startup.
type EventBus interface {
	Publish(ctx context.Context, event models.Event, targetUserIDs []int64) error
}

// envelope is the wire form shared over the pub/sub channel.
type envelope struct {
	Event         models.Event `json:"event"`
	TargetUserIDs []int64      `json:"target_user_ids"`
}

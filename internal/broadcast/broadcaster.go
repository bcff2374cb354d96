package broadcast

import (
	"context"
	"log"

	"realtime-service/internal/bus"
	"realtime-service/internal/models"
)

// ParticipantResolver resolves the recipients of a conversation event. The
// participant list is re-fetched per broadcast, so a membership change that
// lands mid-flight may still deliver one more event to a freshly removed
// participant; the staleness window is one broadcast.
type ParticipantResolver interface {
	ParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error)
}

// Broadcaster fans message lifecycle events out to conversation participants.
// Broadcasts are a liveness optimization, not the source of truth: a dropped
// broadcast is recovered by the client's next history fetch.
type Broadcaster struct {
	bus      bus.EventBus
	resolver ParticipantResolver
}

// NewBroadcaster constructs a Broadcaster.
func NewBroadcaster(eventBus bus.EventBus, resolver ParticipantResolver) *Broadcaster {
	return &Broadcaster{bus: eventBus, resolver: resolver}
}

// MessageNew announces a freshly persisted message.
func (b *Broadcaster) MessageNew(ctx context.Context, msg models.Message) {
	b.publish(ctx, models.Event{Type: models.EventMessageNew, ConversationID: msg.ConversationID, Message: &msg})
}

// MessageEdited announces an edit.
func (b *Broadcaster) MessageEdited(ctx context.Context, msg models.Message) {
	b.publish(ctx, models.Event{Type: models.EventMessageEdited, ConversationID: msg.ConversationID, Message: &msg})
}

// MessageDeleted announces a delete-for-all. The payload is the tombstone row,
// so clients holding the message can drop it without a lookup.
func (b *Broadcaster) MessageDeleted(ctx context.Context, msg models.Message) {
	b.publish(ctx, models.Event{Type: models.EventMessageDeleted, ConversationID: msg.ConversationID, Message: &msg, MessageID: msg.ID})
}

func (b *Broadcaster) publish(ctx context.Context, event models.Event) {
	targets, err := b.resolver.ParticipantIDs(ctx, event.ConversationID)
	if err != nil {
		log.Printf("broadcast: participant resolution failed for conversation %d: %v", event.ConversationID, err)
		return
	}
	if len(targets) == 0 {
		return
	}
	if err := b.bus.Publish(ctx, event, targets); err != nil {
		log.Printf("broadcast: publish failed for conversation %d: %v", event.ConversationID, err)
	}
}

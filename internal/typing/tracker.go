package typing

import (
	"context"
	"log"
	"time"

	"realtime-service/internal/bus"
	"realtime-service/internal/models"
)

// Store is the typing-indicator backend. Two implementations exist, Redis and
// Postgres, chosen once at process startup.
type Store interface {
	Set(ctx context.Context, indicator models.TypingIndicator, ttl time.Duration) error
	Delete(ctx context.Context, conversationID int64, userID int64) error
	List(ctx context.Context, conversationID int64) ([]models.TypingIndicator, error)
}

// UserSource supplies the display info attached to typing events.
type UserSource interface {
	GetUserInfo(ctx context.Context, userID int64) (models.UserInfo, error)
}

// ParticipantSource resolves the broadcast targets for typing events.
type ParticipantSource interface {
	ParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error)
}

// Tracker manages ephemeral per-(conversation, user) typing flags. Entries
// expire on their own after a short TTL; refreshing before expiry keeps them
// alive.
type Tracker struct {
	store Store
	users UserSource
	convs ParticipantSource
	bus   bus.EventBus
	ttl   time.Duration
	now   func() time.Time
}

// NewTracker constructs a Tracker.
func NewTracker(store Store, users UserSource, convs ParticipantSource, eventBus bus.EventBus, ttl time.Duration) *Tracker {
	return &Tracker{store: store, users: users, convs: convs, bus: eventBus, ttl: ttl, now: time.Now}
}

// SetTyping records or clears a typing flag and publishes the change to the
// conversation's other participants. Store and broadcast failures are logged
// and swallowed; typing state is never worth failing an action over.
func (t *Tracker) SetTyping(ctx context.Context, conversationID int64, userID int64, isTyping bool) {
	username := ""
	if isTyping {
		info, err := t.users.GetUserInfo(ctx, userID)
		if err != nil {
			log.Printf("typing: user info lookup failed for user %d: %v", userID, err)
		} else {
			username = info.Username
		}

		err = t.store.Set(ctx, models.TypingIndicator{
			ConversationID: conversationID,
			UserID:         userID,
			Username:       username,
			AvatarURL:      info.AvatarURL,
			StartedAt:      t.now(),
		}, t.ttl)
		if err != nil {
			log.Printf("typing: store write failed for conversation %d user %d: %v", conversationID, userID, err)
		}
	} else {
		if err := t.store.Delete(ctx, conversationID, userID); err != nil {
			log.Printf("typing: store delete failed for conversation %d user %d: %v", conversationID, userID, err)
		}
	}

	participants, err := t.convs.ParticipantIDs(ctx, conversationID)
	if err != nil {
		log.Printf("typing: participant lookup failed for conversation %d: %v", conversationID, err)
		return
	}
	targets := make([]int64, 0, len(participants))
	for _, id := range participants {
		if id != userID {
			targets = append(targets, id)
		}
	}
	if len(targets) == 0 {
		return
	}

	eventType := models.EventTypingStop
	if isTyping {
		eventType = models.EventTypingStart
	}
	event := models.Event{
		Type:           eventType,
		ConversationID: conversationID,
		UserID:         userID,
		Username:       username,
	}
	if err := t.bus.Publish(ctx, event, targets); err != nil {
		log.Printf("typing: broadcast failed for conversation %d: %v", conversationID, err)
	}
}

// GetTypingUsers lists who is currently typing in the conversation.
func (t *Tracker) GetTypingUsers(ctx context.Context, conversationID int64) ([]models.TypingIndicator, error) {
	return t.store.List(ctx, conversationID)
}

package presence

import (
	"context"
	"log"
	"time"

	"realtime-service/internal/bus"
	"realtime-service/internal/models"
	"realtime-service/internal/observability"
)

// Store is the ephemeral presence backend. Entries expire on their own; an
// absent entry means the durable fallback decides.
type Store interface {
	Set(ctx context.Context, entry models.UserPresence, ttl time.Duration) error
	Get(ctx context.Context, userID int64) (*models.UserPresence, error)
	GetBulk(ctx context.Context, userIDs []int64) (map[int64]*models.UserPresence, error)
	Delete(ctx context.Context, userID int64) error
}

// ActivitySource supplies last-activity timestamps for the durable fallback.
type ActivitySource interface {
	BulkLastActive(ctx context.Context, userIDs []int64) (map[int64]time.Time, error)
}

// ConversationSource resolves broadcast targets for presence changes.
type ConversationSource interface {
	CounterpartyIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Tracker maintains ephemeral online/away/offline state per user. An ephemeral
// store miss falls back to computing status from last-activity timestamps.
type Tracker struct {
	store Store // nil when no ephemeral store is configured
	users ActivitySource
	convs ConversationSource
	bus   bus.EventBus

	ttl          time.Duration
	awayAfter    time.Duration
	offlineAfter time.Duration
	now          func() time.Time
}

// NewTracker constructs a Tracker. store may be nil.
func NewTracker(store Store, users ActivitySource, convs ConversationSource, eventBus bus.EventBus, ttl time.Duration) *Tracker {
	return &Tracker{
		store:        store,
		users:        users,
		convs:        convs,
		bus:          eventBus,
		ttl:          ttl,
		awayAfter:    5 * time.Minute,
		offlineAfter: 30 * time.Minute,
		now:          time.Now,
	}
}

// SetPresence writes the ephemeral entry (offline deletes it instead) and
// broadcasts the change to the user's counterparties. Store failures are
// logged and never propagated: presence is best-effort bookkeeping.
func (t *Tracker) SetPresence(ctx context.Context, userID int64, status models.PresenceStatus, device string) {
	if t.store != nil {
		var err error
		if status == models.PresenceOffline {
			err = t.store.Delete(ctx, userID)
		} else {
			err = t.store.Set(ctx, models.UserPresence{
				UserID:   userID,
				Status:   status,
				LastSeen: t.now(),
				Device:   device,
			}, t.ttl)
		}
		if err != nil {
			log.Printf("presence store write failed for user %d: %v", userID, err)
			observability.IncStoreFallback("presence")
		}
	}

	eventType := ""
	switch status {
	case models.PresenceOnline:
		eventType = models.EventPresenceOnline
	case models.PresenceOffline:
		eventType = models.EventPresenceOffline
	default:
		return
	}

	targets, err := t.convs.CounterpartyIDs(ctx, userID)
	if err != nil {
		log.Printf("presence broadcast targets lookup failed for user %d: %v", userID, err)
		return
	}
	if len(targets) == 0 {
		return
	}

	if err := t.bus.Publish(ctx, models.Event{Type: eventType, UserID: userID}, targets); err != nil {
		log.Printf("presence broadcast failed for user %d: %v", userID, err)
	}
}

// Refresh re-arms the TTL for an online user without re-broadcasting.
func (t *Tracker) Refresh(ctx context.Context, userID int64, device string) {
	if t.store == nil {
		return
	}
	err := t.store.Set(ctx, models.UserPresence{
		UserID:   userID,
		Status:   models.PresenceOnline,
		LastSeen: t.now(),
		Device:   device,
	}, t.ttl)
	if err != nil {
		log.Printf("presence refresh failed for user %d: %v", userID, err)
	}
}

// GetPresence returns a single user's presence.
func (t *Tracker) GetPresence(ctx context.Context, userID int64) (models.UserPresence, error) {
	result, err := t.GetBulkPresence(ctx, []int64{userID})
	if err != nil {
		return models.UserPresence{}, err
	}
	return result[userID], nil
}

// GetBulkPresence resolves presence for many users with one store fetch and,
// for misses, one activity query. Never one round trip per user.
func (t *Tracker) GetBulkPresence(ctx context.Context, userIDs []int64) (map[int64]models.UserPresence, error) {
	result := make(map[int64]models.UserPresence, len(userIDs))
	missing := userIDs

	if t.store != nil {
		entries, err := t.store.GetBulk(ctx, userIDs)
		if err != nil {
			log.Printf("presence store read failed: %v", err)
			observability.IncStoreFallback("presence")
		} else {
			missing = make([]int64, 0, len(userIDs))
			for _, id := range userIDs {
				if entry := entries[id]; entry != nil {
					result[id] = *entry
				} else {
					missing = append(missing, id)
				}
			}
		}
	}

	if len(missing) == 0 {
		return result, nil
	}

	lastActive, err := t.users.BulkLastActive(ctx, missing)
	if err != nil {
		return nil, err
	}
	now := t.now()
	for _, id := range missing {
		entry := models.UserPresence{UserID: id, Status: models.PresenceOffline}
		if seen, ok := lastActive[id]; ok {
			entry.LastSeen = seen
			entry.Status = statusFromActivity(now.Sub(seen), t.awayAfter, t.offlineAfter)
		}
		result[id] = entry
	}
	return result, nil
}

// statusFromActivity maps idle duration to a status. The away transition is
// detected lazily at read time, not by a timer.
func statusFromActivity(idle, awayAfter, offlineAfter time.Duration) models.PresenceStatus {
	switch {
	case idle < awayAfter:
		return models.PresenceOnline
	case idle < offlineAfter:
		return models.PresenceAway
	default:
		return models.PresenceOffline
	}
}

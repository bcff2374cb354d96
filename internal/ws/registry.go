package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"realtime-service/internal/models"
)

const shardCount = 32

// MembershipVerifier authorizes subscribe requests. The conversation
// repository implements it.
type MembershipVerifier interface {
	IsParticipant(ctx context.Context, conversationID int64, userID int64) (bool, error)
}

// Registry maps user ids to their live connections. State is strictly
// process-local; cross-process delivery goes through the event bus. The map is
// sharded by user-id hash so dispatch for one user never contends with
// registration of another.
type Registry struct {
	shards   [shardCount]registryShard
	verifier MembershipVerifier
}

type registryShard struct {
	mu    sync.RWMutex
	conns map[int64]map[*Conn]struct{}
}

// NewRegistry constructs an empty Registry.
func NewRegistry(verifier MembershipVerifier) *Registry {
	r := &Registry{verifier: verifier}
	for i := range r.shards {
		r.shards[i].conns = make(map[int64]map[*Conn]struct{})
	}
	return r
}

func (r *Registry) shard(userID int64) *registryShard {
	return &r.shards[uint64(userID)%shardCount]
}

// Add registers a connection and reports whether it is the user's first.
func (r *Registry) Add(conn *Conn) (first bool) {
	s := r.shard(conn.UserID)
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.conns[conn.UserID]
	if !ok {
		set = make(map[*Conn]struct{})
		s.conns[conn.UserID] = set
	}
	first = len(set) == 0
	set[conn] = struct{}{}
	return first
}

// Remove deregisters a connection and reports whether the user's connection
// set became empty. Removing an unknown connection is a no-op.
func (r *Registry) Remove(conn *Conn) (last bool) {
	s := r.shard(conn.UserID)
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.conns[conn.UserID]
	if !ok {
		return false
	}
	if _, present := set[conn]; !present {
		return false
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(s.conns, conn.UserID)
		return true
	}
	return false
}

// Subscribe verifies the connection's owner is a participant of each
// conversation before recording the subscription. Ids that fail verification
// are silently skipped so membership is never leaked. Returns the accepted ids.
func (r *Registry) Subscribe(ctx context.Context, conn *Conn, conversationIDs []int64) []int64 {
	accepted := make([]int64, 0, len(conversationIDs))
	for _, id := range conversationIDs {
		member, err := r.verifier.IsParticipant(ctx, id, conn.UserID)
		if err != nil {
			log.Printf("ws: subscribe verification failed for conversation %d user %d: %v", id, conn.UserID, err)
			continue
		}
		if !member {
			continue
		}
		accepted = append(accepted, id)
	}
	conn.addSubscriptions(accepted)
	return accepted
}

// Authorize reports whether the connection's owner may act on the
// conversation. A subscription already verified on this connection counts;
// otherwise membership is checked. Verification failures deny.
func (r *Registry) Authorize(ctx context.Context, conn *Conn, conversationID int64) bool {
	if conn.IsSubscribed(conversationID) {
		return true
	}
	member, err := r.verifier.IsParticipant(ctx, conversationID, conn.UserID)
	if err != nil {
		log.Printf("ws: authorization check failed for conversation %d user %d: %v", conversationID, conn.UserID, err)
		return false
	}
	return member
}

// Unsubscribe drops subscriptions without re-verification.
func (r *Registry) Unsubscribe(conn *Conn, conversationIDs []int64) {
	conn.removeSubscriptions(conversationIDs)
}

// ConnectionCount returns the number of live connections for a user.
func (r *Registry) ConnectionCount(userID int64) int {
	s := r.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns[userID])
}

func marshalEvent(event models.Event) ([]byte, error) {
	return json.Marshal(event)
}

// DispatchLocal delivers an event to every matching local connection of the
// target users. Events carrying a conversation id reach only connections
// subscribed to that conversation; others reach all of a user's connections.
// Failures never surface to the caller.
func (r *Registry) DispatchLocal(event models.Event, targetUserIDs []int64) {
	payload, err := marshalEvent(event)
	if err != nil {
		log.Printf("ws: dispatch marshal failed: %v", err)
		return
	}

	for _, userID := range targetUserIDs {
		s := r.shard(userID)
		s.mu.RLock()
		conns := make([]*Conn, 0, len(s.conns[userID]))
		for conn := range s.conns[userID] {
			conns = append(conns, conn)
		}
		s.mu.RUnlock()

		for _, conn := range conns {
			if event.ConversationID != 0 && !conn.IsSubscribed(event.ConversationID) {
				continue
			}
			conn.Enqueue(payload)
		}
	}
}

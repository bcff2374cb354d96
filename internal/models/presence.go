package models

import "time"

// PresenceStatus enumerates user availability states.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceOffline PresenceStatus = "offline"
)

// UserPresence is a user's ephemeral availability entry. Absence of an entry
// is interpreted as offline.
type UserPresence struct {
	UserID   int64          `json:"user_id"`
	Status   PresenceStatus `json:"status"`
	LastSeen time.Time      `json:"last_seen"`
	Device   string         `json:"device,omitempty"`
}

// TypingIndicator marks a user actively composing a message in a conversation.
type TypingIndicator struct {
	ConversationID int64     `db:"conversation_id" json:"conversation_id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	Username       string    `db:"username" json:"username"`
	AvatarURL      string    `db:"avatar_url" json:"avatar_url,omitempty"`
	StartedAt      time.Time `db:"started_at" json:"started_at"`
}

// UserInfo is the display info attached to typing and presence events.
type UserInfo struct {
	ID        int64  `db:"id" json:"id"`
	Username  string `db:"username" json:"username"`
	AvatarURL string `db:"avatar_url" json:"avatar_url,omitempty"`
}

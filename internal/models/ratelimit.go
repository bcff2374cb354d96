package models

import "time"

// RateLimitStatus reports how much send/create budget a user has left in the
// current fixed windows.
type RateLimitStatus struct {
	MessagesRemaining      int       `json:"messages_remaining"`
	ConversationsRemaining int       `json:"conversations_remaining"`
	ResetAt                time.Time `json:"reset_at"`
}

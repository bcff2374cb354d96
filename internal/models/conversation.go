package models

import "time"

// Conversation is a chat thread between two or more users.
type Conversation struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title,omitempty"`
	CreatorID int64     `db:"creator_id" json:"creator_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Participant is a user's membership in a conversation, including the read cursor.
type Participant struct {
	ConversationID    int64     `db:"conversation_id" json:"conversation_id"`
	UserID            int64     `db:"user_id" json:"user_id"`
	LastReadMessageID *int64    `db:"last_read_message_id" json:"last_read_message_id,omitempty"`
	JoinedAt          time.Time `db:"joined_at" json:"joined_at"`
}

package models

import "time"

// Message is a persisted conversation message.
type Message struct {
	ID             int64      `db:"id" json:"id"`
	ConversationID int64      `db:"conversation_id" json:"conversation_id"`
	SenderID       int64      `db:"sender_id" json:"sender_id"`
	Content        string     `db:"content" json:"content"`
	Deleted        bool       `db:"deleted" json:"deleted"`
	EditedAt       *time.Time `db:"edited_at" json:"edited_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// MessageReceipt records delivery and read state for one recipient of one message.
// One row exists per (message, participant) for every participant except the sender.
type MessageReceipt struct {
	MessageID   int64      `db:"message_id" json:"message_id"`
	UserID      int64      `db:"user_id" json:"user_id"`
	DeliveredAt *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	ReadAt      *time.Time `db:"read_at" json:"read_at,omitempty"`
}

package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"realtime-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for conversation messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, conversationID int64, senderID int64, content string) (models.Message, error)
	GetMessage(ctx context.Context, messageID int64) (models.Message, error)
	ListMessages(ctx context.Context, conversationID int64, limit int) ([]models.Message, error)
	EditMessage(ctx context.Context, messageID int64, senderID int64, content string) (models.Message, error)
	DeleteMessage(ctx context.Context, messageID int64, senderID int64) (models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message in a conversation.
func (r *MessageRepo) CreateMessage(ctx context.Context, conversationID int64, senderID int64, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (conversation_id, sender_id, content) VALUES ($1, $2, $3) RETURNING id, conversation_id, sender_id, content, deleted, edited_at, created_at`, conversationID, senderID, content).
		Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.Deleted, &msg.EditedAt, &msg.CreatedAt)
	return msg, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT id, conversation_id, sender_id, content, deleted, edited_at, created_at FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListMessages returns the most recent messages of a conversation in ascending
// order. Reconnecting clients recover missed broadcasts through this path.
func (r *MessageRepo) ListMessages(ctx context.Context, conversationID int64, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	var msgs []models.Message
	query := `SELECT id, conversation_id, sender_id, content, deleted, edited_at, created_at FROM (
            SELECT * FROM messages WHERE conversation_id=$1 AND deleted = FALSE ORDER BY id DESC LIMIT $2
        ) recent ORDER BY id ASC`
	err := r.db.SelectContext(ctx, &msgs, query, conversationID, limit)
	return msgs, err
}

// EditMessage updates message content; only the sender may edit.
func (r *MessageRepo) EditMessage(ctx context.Context, messageID int64, senderID int64, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `UPDATE messages SET content=$1, edited_at=NOW() WHERE id=$2 AND sender_id=$3 AND deleted = FALSE RETURNING id, conversation_id, sender_id, content, deleted, edited_at, created_at`, content, messageID, senderID).
		Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.Deleted, &msg.EditedAt, &msg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// DeleteMessage marks a message deleted for everyone; only the sender may delete.
func (r *MessageRepo) DeleteMessage(ctx context.Context, messageID int64, senderID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `UPDATE messages SET deleted = TRUE WHERE id=$1 AND sender_id=$2 RETURNING id, conversation_id, sender_id, content, deleted, edited_at, created_at`, messageID, senderID).
		Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.Deleted, &msg.EditedAt, &msg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

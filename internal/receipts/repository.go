package receipts

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"realtime-service/internal/models"
)

// Repository tracks durable delivered/read markers per (message, participant).
// All writes are idempotent conditional updates so concurrent duplicate
// acknowledgements are safe without cross-process locking.
type Repository interface {
	CreatePendingReceipts(ctx context.Context, messageID int64, participantIDs []int64) error
	MarkDelivered(ctx context.Context, messageID int64, userID int64) error
	MarkReadBulk(ctx context.Context, conversationID int64, userID int64) (int64, error)
	ListReceipts(ctx context.Context, messageID int64) ([]models.MessageReceipt, error)
}

// Repo is a sqlx implementation of Repository.
type Repo struct {
	db *sqlx.DB
}

// NewRepo constructs a Repo.
func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

// CreatePendingReceipts inserts one pending receipt per participant. Existing
// rows are left untouched, so replays of the same send are no-ops.
func (r *Repo) CreatePendingReceipts(ctx context.Context, messageID int64, participantIDs []int64) error {
	if len(participantIDs) == 0 {
		return nil
	}

	values := make([]string, 0, len(participantIDs))
	args := make([]interface{}, 0, len(participantIDs)+1)
	args = append(args, messageID)
	for i, userID := range participantIDs {
		values = append(values, fmt.Sprintf("($1, $%d)", i+2))
		args = append(args, userID)
	}

	query := fmt.Sprintf(`INSERT INTO message_receipts (message_id, user_id) VALUES %s ON CONFLICT (message_id, user_id) DO NOTHING`,
		strings.Join(values, ", "))
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// MarkDelivered sets delivered_at once; later calls for the same pair are no-ops.
func (r *Repo) MarkDelivered(ctx context.Context, messageID int64, userID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE message_receipts SET delivered_at = NOW() WHERE message_id=$1 AND user_id=$2 AND delivered_at IS NULL`, messageID, userID)
	return err
}

// MarkReadBulk marks every unread receipt addressed to the user in the
// conversation as read and advances the participant's read cursor. Read
// implies delivered: delivered_at is filled in for receipts that never got an
// explicit delivery ack. Returns the number of receipts transitioned.
func (r *Repo) MarkReadBulk(ctx context.Context, conversationID int64, userID int64) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE message_receipts r
        SET read_at = NOW(), delivered_at = COALESCE(r.delivered_at, NOW())
        FROM messages m
        WHERE m.id = r.message_id AND m.conversation_id=$1 AND r.user_id=$2 AND r.read_at IS NULL`,
		conversationID, userID)
	if err != nil {
		return 0, err
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	_, err = tx.ExecContext(ctx, `UPDATE conversation_participants
        SET last_read_message_id = (SELECT MAX(id) FROM messages WHERE conversation_id=$1)
        WHERE conversation_id=$1 AND user_id=$2`,
		conversationID, userID)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return updated, nil
}

// ListReceipts returns all receipts for a message.
func (r *Repo) ListReceipts(ctx context.Context, messageID int64) ([]models.MessageReceipt, error) {
	var receipts []models.MessageReceipt
	err := r.db.SelectContext(ctx, &receipts, `SELECT message_id, user_id, delivered_at, read_at FROM message_receipts WHERE message_id=$1 ORDER BY user_id`, messageID)
	return receipts, err
}

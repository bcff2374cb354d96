package typing

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"realtime-service/internal/models"
)

// PostgresStore is the fallback for environments without an ephemeral store.
// Rows never expire on their own; List filters by a freshness window equal to
// the TTL instead.
type PostgresStore struct {
	db  *sqlx.DB
	ttl time.Duration
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db *sqlx.DB, ttl time.Duration) *PostgresStore {
	return &PostgresStore{db: db, ttl: ttl}
}

func (s *PostgresStore) Set(ctx context.Context, indicator models.TypingIndicator, _ time.Duration) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO typing_indicators (conversation_id, user_id, username, avatar_url, started_at)
        VALUES ($1, $2, $3, $4, NOW())
        ON CONFLICT (conversation_id, user_id) DO UPDATE SET username = EXCLUDED.username, avatar_url = EXCLUDED.avatar_url, started_at = NOW()`,
		indicator.ConversationID, indicator.UserID, indicator.Username, indicator.AvatarURL)
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, conversationID int64, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM typing_indicators WHERE conversation_id=$1 AND user_id=$2`, conversationID, userID)
	return err
}

func (s *PostgresStore) List(ctx context.Context, conversationID int64) ([]models.TypingIndicator, error) {
	var indicators []models.TypingIndicator
	err := s.db.SelectContext(ctx, &indicators, `SELECT conversation_id, user_id, username, avatar_url, started_at
        FROM typing_indicators WHERE conversation_id=$1 AND started_at > NOW() - make_interval(secs => $2)`,
		conversationID, s.ttl.Seconds())
	return indicators, err
}

package ratelimit

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"realtime-service/internal/models"
)

// PostgresLimiter is the durable fallback for deployments without Redis. It
// keeps one row per user and resets counts when the stored window no longer
// matches the current one.
type PostgresLimiter struct {
	db     *sqlx.DB
	limits Limits
	now    func() time.Time
}

// NewPostgresLimiter constructs a PostgresLimiter.
func NewPostgresLimiter(db *sqlx.DB, limits Limits) *PostgresLimiter {
	return &PostgresLimiter{db: db, limits: limits, now: time.Now}
}

type rateLimitRow struct {
	MinuteWindow      string `db:"minute_window"`
	MessageCount      int    `db:"message_count"`
	DayWindow         string `db:"day_window"`
	ConversationCount int    `db:"conversation_count"`
}

// Check loads the user's row and treats stale windows as zero.
func (l *PostgresLimiter) Check(ctx context.Context, userID int64) (models.RateLimitStatus, error) {
	now := l.now()
	status := models.RateLimitStatus{
		MessagesRemaining:      l.limits.MessagesPerMinute,
		ConversationsRemaining: l.limits.ConversationsPerDay,
		ResetAt:                minuteReset(now),
	}

	var row rateLimitRow
	err := l.db.GetContext(ctx, &row, `SELECT minute_window, message_count, day_window, conversation_count FROM rate_limits WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return status, nil
	}
	if err != nil {
		return status, err
	}

	if row.MinuteWindow == minuteWindow(now) {
		status.MessagesRemaining = remaining(l.limits.MessagesPerMinute, row.MessageCount)
	}
	if row.DayWindow == dayWindow(now) {
		status.ConversationsRemaining = remaining(l.limits.ConversationsPerDay, row.ConversationCount)
	}
	return status, nil
}

// Increment upserts the row, restarting the count when the window has rolled over.
func (l *PostgresLimiter) Increment(ctx context.Context, userID int64, kind Kind) error {
	now := l.now()

	if kind == KindConversation {
		_, err := l.db.ExecContext(ctx, `INSERT INTO rate_limits (user_id, minute_window, message_count, day_window, conversation_count)
            VALUES ($1, '', 0, $2, 1)
            ON CONFLICT (user_id) DO UPDATE SET
                conversation_count = CASE WHEN rate_limits.day_window = EXCLUDED.day_window THEN rate_limits.conversation_count + 1 ELSE 1 END,
                day_window = EXCLUDED.day_window`,
			userID, dayWindow(now))
		return err
	}

	_, err := l.db.ExecContext(ctx, `INSERT INTO rate_limits (user_id, minute_window, message_count, day_window, conversation_count)
        VALUES ($1, $2, 1, '', 0)
        ON CONFLICT (user_id) DO UPDATE SET
            message_count = CASE WHEN rate_limits.minute_window = EXCLUDED.minute_window THEN rate_limits.message_count + 1 ELSE 1 END,
            minute_window = EXCLUDED.minute_window`,
		userID, minuteWindow(now))
	return err
}

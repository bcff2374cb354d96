package ratelimit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockLimiter(t *testing.T, now time.Time) (*PostgresLimiter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	limiter := NewPostgresLimiter(sqlx.NewDb(db, "postgres"), Limits{MessagesPerMinute: 3, ConversationsPerDay: 2})
	limiter.now = func() time.Time { return now }
	return limiter, mock
}

func rateLimitColumns() []string {
	return []string{"minute_window", "message_count", "day_window", "conversation_count"}
}

func TestPostgresCheckNoRowMeansFullBudget(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 30, 15, 0, time.UTC)
	limiter, mock := newMockLimiter(t, now)

	mock.ExpectQuery("SELECT minute_window, message_count, day_window, conversation_count FROM rate_limits").
		WithArgs(int64(1)).
		WillReturnError(sql.ErrNoRows)

	status, err := limiter.Check(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, status.MessagesRemaining)
	assert.Equal(t, 2, status.ConversationsRemaining)
	assert.Equal(t, time.Date(2026, 3, 10, 12, 31, 0, 0, time.UTC), status.ResetAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCheckCurrentWindowCountsAgainstBudget(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 30, 15, 0, time.UTC)
	limiter, mock := newMockLimiter(t, now)

	mock.ExpectQuery("SELECT minute_window, message_count, day_window, conversation_count FROM rate_limits").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(rateLimitColumns()).AddRow("202603101230", 2, "20260310", 2))

	status, err := limiter.Check(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, status.MessagesRemaining)
	assert.Equal(t, 0, status.ConversationsRemaining)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCheckStaleWindowResetsToZero(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 30, 15, 0, time.UTC)
	limiter, mock := newMockLimiter(t, now)

	// counters from the previous minute and the previous day
	mock.ExpectQuery("SELECT minute_window, message_count, day_window, conversation_count FROM rate_limits").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(rateLimitColumns()).AddRow("202603101229", 3, "20260309", 2))

	status, err := limiter.Check(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, status.MessagesRemaining)
	assert.Equal(t, 2, status.ConversationsRemaining)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresIncrementMessage(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 30, 15, 0, time.UTC)
	limiter, mock := newMockLimiter(t, now)

	mock.ExpectExec("INSERT INTO rate_limits").
		WithArgs(int64(1), "202603101230").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, limiter.Increment(context.Background(), 1, KindMessage))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresIncrementConversation(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 30, 15, 0, time.UTC)
	limiter, mock := newMockLimiter(t, now)

	mock.ExpectExec("INSERT INTO rate_limits").
		WithArgs(int64(1), "20260310").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, limiter.Increment(context.Background(), 1, KindConversation))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWindowKeysAndReset(t *testing.T) {
	now := time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC)

	assert.Equal(t, "202603102359", minuteWindow(now))
	assert.Equal(t, "20260310", dayWindow(now))
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), minuteReset(now))

	next := now.Add(time.Second)
	assert.NotEqual(t, minuteWindow(now), minuteWindow(next))
	assert.NotEqual(t, dayWindow(now), dayWindow(next))
}

func TestRemainingNeverNegative(t *testing.T) {
	assert.Equal(t, 3, remaining(3, 0))
	assert.Equal(t, 1, remaining(3, 2))
	assert.Equal(t, 0, remaining(3, 3))
	assert.Equal(t, 0, remaining(3, 10))
}

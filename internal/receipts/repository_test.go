package receipts

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*Repo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepo(sqlx.NewDb(db, "postgres")), mock
}

func TestCreatePendingReceiptsInsertsOneRowPerParticipant(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`INSERT INTO message_receipts \(message_id, user_id\) VALUES \(\$1, \$2\), \(\$1, \$3\) ON CONFLICT \(message_id, user_id\) DO NOTHING`).
		WithArgs(int64(42), int64(2), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.CreatePendingReceipts(context.Background(), 42, []int64{2, 3}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePendingReceiptsNoParticipantsIsNoop(t *testing.T) {
	repo, mock := newMockRepo(t)

	require.NoError(t, repo.CreatePendingReceipts(context.Background(), 42, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkDeliveredOnlyTouchesUndelivered(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE message_receipts SET delivered_at = NOW\(\) WHERE message_id=\$1 AND user_id=\$2 AND delivered_at IS NULL`).
		WithArgs(int64(42), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkDelivered(context.Background(), 42, 2))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkDeliveredRepeatIsNoop(t *testing.T) {
	repo, mock := newMockRepo(t)

	// second ack matches no rows, which is still success
	mock.ExpectExec(`UPDATE message_receipts SET delivered_at = NOW\(\)`).
		WithArgs(int64(42), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkDelivered(context.Background(), 42, 2))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReadBulkUpdatesReceiptsAndCursor(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE message_receipts r`).
		WithArgs(int64(10), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`UPDATE conversation_participants`).
		WithArgs(int64(10), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := repo.MarkReadBulk(context.Background(), 10, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReadBulkNothingUnreadIsNoop(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE message_receipts r`).
		WithArgs(int64(10), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// the cursor update still runs and the transaction still commits
	mock.ExpectExec(`UPDATE conversation_participants`).
		WithArgs(int64(10), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := repo.MarkReadBulk(context.Background(), 10, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReadBulkRollsBackOnCursorFailure(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE message_receipts r`).
		WithArgs(int64(10), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE conversation_participants`).
		WithArgs(int64(10), int64(2)).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := repo.MarkReadBulk(context.Background(), 10, 2)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListReceipts(t *testing.T) {
	repo, mock := newMockRepo(t)
	deliveredAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT message_id, user_id, delivered_at, read_at FROM message_receipts`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"message_id", "user_id", "delivered_at", "read_at"}).
			AddRow(int64(42), int64(2), deliveredAt, nil).
			AddRow(int64(42), int64(3), nil, nil))

	receipts, err := repo.ListReceipts(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	assert.Equal(t, int64(2), receipts[0].UserID)
	require.NotNil(t, receipts[0].DeliveredAt)
	assert.True(t, deliveredAt.Equal(*receipts[0].DeliveredAt))
	assert.Nil(t, receipts[1].DeliveredAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"realtime-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository provides user display info and activity timestamps. Activity
// timestamps back the durable presence fallback.
type UserRepository interface {
	GetUserInfo(ctx context.Context, userID int64) (models.UserInfo, error)
	BulkLastActive(ctx context.Context, userIDs []int64) (map[int64]time.Time, error)
	TouchLastActive(ctx context.Context, userID int64) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetUserInfo fetches username and avatar for a user.
func (r *UserRepo) GetUserInfo(ctx context.Context, userID int64) (models.UserInfo, error) {
	var info models.UserInfo
	err := r.db.GetContext(ctx, &info, `SELECT id, username, avatar_url FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserInfo{}, ErrUserNotFound
	}
	return info, err
}

// BulkLastActive returns last-activity timestamps for the given users in one query.
func (r *UserRepo) BulkLastActive(ctx context.Context, userIDs []int64) (map[int64]time.Time, error) {
	result := make(map[int64]time.Time, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`SELECT id, last_active_at FROM users WHERE id IN (?)`, userIDs)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryxContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var lastActive time.Time
		if err := rows.Scan(&id, &lastActive); err != nil {
			return nil, err
		}
		result[id] = lastActive
	}
	return result, rows.Err()
}

// TouchLastActive bumps the user's last-activity timestamp.
func (r *UserRepo) TouchLastActive(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_active_at = NOW() WHERE id=$1`, userID)
	return err
}

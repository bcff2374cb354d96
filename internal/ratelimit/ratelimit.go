package ratelimit

import (
	"context"
	"time"

	"realtime-service/internal/models"
)

// Kind selects which fixed window a counter belongs to.
type Kind string

const (
	// KindMessage counts message sends per minute.
	KindMessage Kind = "message"
	// KindConversation counts conversation creations per day.
	KindConversation Kind = "conversation"
)

// Limiter implements fixed-window rate limiting. Check is a fail-fast gate the
// send path calls before doing any persistence work; Increment is best-effort
// bookkeeping afterwards.
type Limiter interface {
	Check(ctx context.Context, userID int64) (models.RateLimitStatus, error)
	Increment(ctx context.Context, userID int64, kind Kind) error
}

// Limits holds the configured window budgets.
type Limits struct {
	MessagesPerMinute   int
	ConversationsPerDay int
}

// minuteWindow and dayWindow derive the fixed window keys. A new window key
// naturally starts at zero, so reset is implicit at the boundary.
func minuteWindow(now time.Time) string {
	return now.UTC().Format("200601021504")
}

func dayWindow(now time.Time) string {
	return now.UTC().Format("20060102")
}

func minuteReset(now time.Time) time.Time {
	return now.UTC().Truncate(time.Minute).Add(time.Minute)
}

func remaining(limit, count int) int {
	if count >= limit {
		return 0
	}
	return limit - count
}

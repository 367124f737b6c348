package port

import (
	"context"
	"time"
)

// RateLimitStore keeps per-key attempt timestamps for sliding-window limits.
// Keys are opaque; callers combine a rule name with the scoped identifier.
type RateLimitStore interface {
	// TrimWindow drops attempts older than reference minus window.
	TrimWindow(ctx context.Context, key string, window time.Duration, reference time.Time) error
	CountAttempts(ctx context.Context, key string, window time.Duration, reference time.Time) (int, error)
	RecordAttempt(ctx context.Context, key string, at time.Time) error
	// OldestAttempt reports the earliest attempt still inside the window, if any.
	OldestAttempt(ctx context.Context, key string, window time.Duration, reference time.Time) (time.Time, bool, error)
}

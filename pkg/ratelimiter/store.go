package ratelimiter

import (
	"context"
	"time"
)

// Store keeps per-key window records.
//
// Hit registers one action for key and returns the post-increment count of
// the current window along with the time the window resets. A record whose
// reset time has been reached is replaced with a fresh window starting now.
type Store interface {
	Hit(ctx context.Context, key string, cfg Config) (count int, resetAt time.Time, err error)
	Reset(ctx context.Context, key string) error
}

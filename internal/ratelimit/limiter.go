// Package ratelimit enforces a minimum interval between actions sharing a key.
package ratelimit

import "context"

// Limiter grants at most one acquisition per key per interval.
type Limiter interface {
	// TryAcquire reports whether the key was free and is now held for the
	// limiter's interval.
	TryAcquire(ctx context.Context, key string) (bool, error)
	// Release frees the key before its interval elapses.
	Release(ctx context.Context, key string) error
}

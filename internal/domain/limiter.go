package domain

import (
	"context"
	"time"
)

// RateLimiter enforces request-rate ceilings shared across replicas.
type RateLimiter interface {
	// Allow reports whether a request for key is permitted under the
	// sliding window, counting the request when it is.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager hands out distributed locks. A replica that fails to acquire
// a lock yields the guarded work to whichever replica holds it.
type LockManager interface {
	// Acquire obtains the lock for key with the given TTL, returning an
	// unlock function. It returns ErrLockHeld when another holder has it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

package port

import (
	"context"
	"errors"
	"time"
)

// ErrLockNotAcquired is returned when another request holds the item lock.
var ErrLockNotAcquired = errors.New("lock not acquired")

// Locker serializes transitions per item.
type Locker interface {
	// Acquire takes the lock for key, waiting up to ctx's deadline. The
	// returned release func is safe to call once the lock has expired.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// IdempotencyStore records caller-supplied request ids.
type IdempotencyStore interface {
	// SetIdempotency sets a key, returns false if it already exists
	SetIdempotency(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// RemoveIdempotency forgets a key so a failed request may be retried
	RemoveIdempotency(ctx context.Context, key string) error
}

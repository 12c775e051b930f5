package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/kanban-flow/internal/port"
)

const (
	lockKeyPrefix        = "lock:"
	idempotencyKeyPrefix = "idem:"
	lockRetryInterval    = 20 * time.Millisecond
)

// releaseLockScript deletes the lock only if it still holds our token, so a
// holder whose lock expired never frees somebody else's.
var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisAdapter implements port.Locker and port.IdempotencyStore.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

// Acquire polls SET NX until it wins, ctx ends or ttl has passed.
func (r *RedisAdapter) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	key = lockKeyPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(ttl)

	for {
		ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, port.ErrLockNotAcquired
		}

		timer := time.NewTimer(lockRetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Join(port.ErrLockNotAcquired, ctx.Err())
		case <-timer.C:
		}
	}

	return func(ctx context.Context) error {
		return releaseLockScript.Run(ctx, r.client, []string{key}, token).Err()
	}, nil
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) RemoveIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

// Ping reports whether redis is reachable.
func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

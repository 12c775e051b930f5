package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rl1809/kanban-flow/internal/port"
)

// MemoryLocker is a process-local port.Locker and port.IdempotencyStore for
// single-instance deployments without redis.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]chan struct{}
	keys  map[string]time.Time
	nowFn func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held:  make(map[string]chan struct{}),
		keys:  make(map[string]time.Time),
		nowFn: time.Now,
	}
}

// Acquire waits until key is free, ctx ends or ttl has passed. Unlike the
// redis lock it does not expire while held.
func (m *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	timer := time.NewTimer(ttl)
	defer timer.Stop()

	for {
		m.mu.Lock()
		wait, busy := m.held[key]
		if !busy {
			done := make(chan struct{})
			m.held[key] = done
			m.mu.Unlock()

			var once sync.Once
			return func(context.Context) error {
				once.Do(func() {
					m.mu.Lock()
					delete(m.held, key)
					m.mu.Unlock()
					close(done)
				})
				return nil
			}, nil
		}
		m.mu.Unlock()

		select {
		case <-wait:
		case <-timer.C:
			return nil, port.ErrLockNotAcquired
		case <-ctx.Done():
			return nil, errors.Join(port.ErrLockNotAcquired, ctx.Err())
		}
	}
}

func (m *MemoryLocker) SetIdempotency(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFn()
	if expires, ok := m.keys[key]; ok && now.Before(expires) {
		return false, nil
	}
	m.keys[key] = now.Add(ttl)
	return true, nil
}

func (m *MemoryLocker) RemoveIdempotency(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.keys, key)
	m.mu.Unlock()
	return nil
}

package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rl1809/kanban-flow/internal/core/domain"
	"github.com/rl1809/kanban-flow/internal/port"
)

// memStore is an in-memory port.Store. Transactions are serialized and work
// on a snapshot that is only published on success.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	boards    map[string]domain.Board
	items     map[string]domain.Item
	transfers []domain.TransferLogEntry

	// failure injection
	appendErr  error
	createErr  error
	conflicts  int
	updateCall int
}

func newMemStore() *memStore {
	return &memStore{
		boards: make(map[string]domain.Board),
		items:  make(map[string]domain.Item),
	}
}

func (s *memStore) putBoard(b domain.Board) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boards[b.ID] = b
}

func (s *memStore) putItem(it domain.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[it.ID] = it
}

func (s *memStore) item(id string) domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id]
}

func (s *memStore) board(id string) domain.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boards[id]
}

func (s *memStore) entries() []domain.TransferLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.transfers)
}

func (s *memStore) itemsOn(boardID string) []domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Item
	for _, it := range s.items {
		if it.BoardID == boardID {
			out = append(out, it)
		}
	}
	return out
}

func (s *memStore) GetBoard(_ context.Context, id string) (*domain.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.boards[id]
	if !ok {
		return nil, fmt.Errorf("board %s: %w", id, domain.ErrNotFound)
	}
	return &b, nil
}

func (s *memStore) GetItem(_ context.Context, id string) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}
	it.Tags = slices.Clone(it.Tags)
	return &it, nil
}

func (s *memStore) ListActiveItems(_ context.Context, boardID string) ([]domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Item
	for _, it := range s.items {
		if it.BoardID == boardID && it.ClosedAt == nil {
			out = append(out, it)
		}
	}
	slices.SortFunc(out, func(a, b domain.Item) int {
		if c := a.ColumnEnteredAt.Compare(b.ColumnEnteredAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		return 1
	})
	return out, nil
}

func (s *memStore) ListTransfers(_ context.Context, filter domain.TransferFilter) ([]domain.TransferLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TransferLogEntry
	for i := len(s.transfers) - 1; i >= 0; i-- {
		e := s.transfers[i]
		if filter.ItemID != "" && e.ProductID != filter.ItemID && domain.StringValue(e.TargetProductID) != filter.ItemID {
			continue
		}
		if filter.BoardID != "" && e.FromKanbanID != filter.BoardID && e.ToKanbanID != filter.BoardID {
			continue
		}
		out = append(out, e)
	}
	slices.SortStableFunc(out, func(a, b domain.TransferLogEntry) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if filter.Offset >= len(out) {
		return []domain.TransferLogEntry{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *memStore) FindTransferByRequestID(_ context.Context, requestID string) (*domain.TransferLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.transfers {
		if domain.StringValue(e.RequestID) == requestID {
			return &e, nil
		}
	}
	return nil, nil
}

func (s *memStore) CreateBoard(_ context.Context, board domain.Board) error {
	s.putBoard(board)
	return nil
}

func (s *memStore) WithinTx(_ context.Context, fn func(tx port.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	tx := &memTx{
		store:     s,
		boards:    make(map[string]domain.Board, len(s.boards)),
		items:     make(map[string]domain.Item, len(s.items)),
		transfers: slices.Clone(s.transfers),
	}
	for k, v := range s.boards {
		tx.boards[k] = v
	}
	for k, v := range s.items {
		tx.items[k] = v
	}
	s.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.boards, s.items, s.transfers = tx.boards, tx.items, tx.transfers
	s.mu.Unlock()
	return nil
}

type memTx struct {
	store     *memStore
	boards    map[string]domain.Board
	items     map[string]domain.Item
	transfers []domain.TransferLogEntry
}

func (t *memTx) GetBoard(_ context.Context, id string) (*domain.Board, error) {
	b, ok := t.boards[id]
	if !ok {
		return nil, fmt.Errorf("board %s: %w", id, domain.ErrNotFound)
	}
	return &b, nil
}

func (t *memTx) GetItem(_ context.Context, id string) (*domain.Item, error) {
	it, ok := t.items[id]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}
	it.Tags = slices.Clone(it.Tags)
	return &it, nil
}

func (t *memTx) UpdateBoard(_ context.Context, board domain.Board) error {
	if _, ok := t.boards[board.ID]; !ok {
		return domain.ErrNotFound
	}
	t.boards[board.ID] = board
	return nil
}

func (t *memTx) CreateItem(_ context.Context, item domain.Item) error {
	if t.store.createErr != nil {
		return t.store.createErr
	}
	if _, ok := t.items[item.ID]; ok {
		return fmt.Errorf("item %s exists", item.ID)
	}
	t.items[item.ID] = item
	return nil
}

func (t *memTx) UpdateItem(_ context.Context, item domain.Item) error {
	t.store.updateCall++
	if t.store.conflicts > 0 {
		t.store.conflicts--
		return port.ErrVersionConflict
	}
	stored, ok := t.items[item.ID]
	if !ok || stored.Version != item.Version {
		return port.ErrVersionConflict
	}
	item.Version++
	t.items[item.ID] = item
	return nil
}

func (t *memTx) AppendTransfer(_ context.Context, entry domain.TransferLogEntry) error {
	if t.store.appendErr != nil {
		return t.store.appendErr
	}
	if entry.RequestID != nil {
		for _, e := range t.transfers {
			if domain.StringValue(e.RequestID) == *entry.RequestID {
				return port.ErrDuplicateRequestID
			}
		}
	}
	t.transfers = append(t.transfers, entry)
	return nil
}

type fakeLocations map[string]bool

func (f fakeLocations) LocationExists(_ context.Context, id string) (bool, error) {
	return f[id], nil
}

// fakeLocker is a process-wide mutex per key.
type fakeLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	busy  bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	if l.busy {
		return nil, port.ErrLockNotAcquired
	}
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	var once sync.Once
	return func(context.Context) error {
		once.Do(m.Unlock)
		return nil
	}, nil
}

type fakeIdempotency struct {
	mu      sync.Mutex
	keys    map[string]bool
	removed []string
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{keys: make(map[string]bool)}
}

func (f *fakeIdempotency) SetIdempotency(_ context.Context, key string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func (f *fakeIdempotency) RemoveIdempotency(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
	f.removed = append(f.removed, key)
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

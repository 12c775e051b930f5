package port

import (
	"context"
	"errors"

	"github.com/rl1809/kanban-flow/internal/core/domain"
)

// ErrVersionConflict is returned when an item was changed by someone else
// between read and write.
var ErrVersionConflict = errors.New("item version conflict")

// ErrDuplicateRequestID is returned when a transfer entry with the same
// request id already exists.
var ErrDuplicateRequestID = errors.New("duplicate request id")

// Store is the board and item persistence consumed by the core.
type Store interface {
	GetBoard(ctx context.Context, id string) (*domain.Board, error)
	GetItem(ctx context.Context, id string) (*domain.Item, error)

	// ListActiveItems returns the items of a board that were not transferred away.
	ListActiveItems(ctx context.Context, boardID string) ([]domain.Item, error)

	// ListTransfers returns ledger entries newest first.
	ListTransfers(ctx context.Context, filter domain.TransferFilter) ([]domain.TransferLogEntry, error)

	// FindTransferByRequestID returns nil, nil when no entry carries requestID.
	FindTransferByRequestID(ctx context.Context, requestID string) (*domain.TransferLogEntry, error)

	CreateBoard(ctx context.Context, board domain.Board) error

	// WithinTx runs fn in a single transaction. Any error from fn rolls back.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side of the store, scoped to one transaction.
type Tx interface {
	GetBoard(ctx context.Context, id string) (*domain.Board, error)
	GetItem(ctx context.Context, id string) (*domain.Item, error)

	// UpdateBoard replaces link and threshold rules of a board.
	UpdateBoard(ctx context.Context, board domain.Board) error

	CreateItem(ctx context.Context, item domain.Item) error

	// UpdateItem persists item if its stored version equals item.Version and
	// bumps the version. Returns ErrVersionConflict otherwise.
	UpdateItem(ctx context.Context, item domain.Item) error

	// AppendTransfer adds an entry to the ledger. There is no update or delete.
	AppendTransfer(ctx context.Context, entry domain.TransferLogEntry) error
}

// LocationDirectory is the location collaborator. This service never manages
// locations, it only checks that one exists.
type LocationDirectory interface {
	LocationExists(ctx context.Context, id string) (bool, error)
}

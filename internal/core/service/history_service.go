package service

import (
	"context"

	"github.com/rl1809/kanban-flow/internal/core/domain"
	"github.com/rl1809/kanban-flow/internal/port"
)

const (
	DefaultTransferPageSize = 50
	MaxTransferPageSize     = 200
)

// HistoryService reads the transfer ledger.
type HistoryService struct {
	store port.Store
}

func NewHistoryService(store port.Store) *HistoryService {
	return &HistoryService{store: store}
}

// ListTransfers returns entries touching an item or a board, newest first.
// An item filter matches both the origin and the item created by a transfer.
func (s *HistoryService) ListTransfers(ctx context.Context, filter domain.TransferFilter) ([]domain.TransferLogEntry, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultTransferPageSize
	}
	if filter.Limit > MaxTransferPageSize {
		filter.Limit = MaxTransferPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.store.ListTransfers(ctx, filter)
}

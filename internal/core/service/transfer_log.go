package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rl1809/kanban-flow/internal/core/domain"
	"github.com/rl1809/kanban-flow/internal/port"
)

var errIncompleteEntry = errors.New("incomplete transfer entry")

// TransferLogWriter appends entries to the transfer ledger. A failed append
// is always returned so the enclosing transaction rolls back.
type TransferLogWriter struct {
	clock Clock
}

func NewTransferLogWriter(clock Clock) *TransferLogWriter {
	if clock == nil {
		clock = SystemClock
	}
	return &TransferLogWriter{clock: clock}
}

// Record assigns an id and creation time to entry and appends it through tx.
func (w *TransferLogWriter) Record(ctx context.Context, tx port.Tx, entry domain.TransferLogEntry) (string, error) {
	if entry.ProductID == "" || entry.FromKanbanID == "" || entry.ToKanbanID == "" ||
		entry.FromColumn == "" || entry.ToColumn == "" {
		return "", fmt.Errorf("record transfer: %w", errIncompleteEntry)
	}
	if !entry.TransferType.IsValid() {
		return "", fmt.Errorf("record transfer: %w: type %q", errIncompleteEntry, entry.TransferType)
	}

	entry.ID = uuid.NewString()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = w.clock.Now()
	}

	if err := tx.AppendTransfer(ctx, entry); err != nil {
		return "", fmt.Errorf("record transfer: %w", err)
	}
	return entry.ID, nil
}

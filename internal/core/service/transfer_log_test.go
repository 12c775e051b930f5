package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/kanban-flow/internal/core/domain"
	"github.com/rl1809/kanban-flow/internal/port"
)

func TestTransferLogWriter_Record(t *testing.T) {
	store := newMemStore()
	writer := NewTransferLogWriter(newFakeClock(t0))

	var id string
	err := store.WithinTx(context.Background(), func(tx port.Tx) error {
		var err error
		id, err = writer.Record(context.Background(), tx, domain.TransferLogEntry{
			ProductID:    "x",
			FromKanbanID: "A",
			ToKanbanID:   "A",
			FromColumn:   domain.ColumnNewRequest,
			ToColumn:     domain.ColumnInReview,
			TransferType: domain.TransferTypeManual,
		})
		return err
	})
	require.NoError(t, err)

	entries := store.entries()
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.True(t, entries[0].CreatedAt.Equal(t0))
}

func TestTransferLogWriter_RejectsIncompleteEntry(t *testing.T) {
	writer := NewTransferLogWriter(newFakeClock(t0))
	store := newMemStore()

	err := store.WithinTx(context.Background(), func(tx port.Tx) error {
		_, err := writer.Record(context.Background(), tx, domain.TransferLogEntry{ProductID: "x"})
		return err
	})
	assert.ErrorIs(t, err, errIncompleteEntry)

	err = store.WithinTx(context.Background(), func(tx port.Tx) error {
		_, err := writer.Record(context.Background(), tx, domain.TransferLogEntry{
			ProductID: "x", FromKanbanID: "A", ToKanbanID: "A",
			FromColumn: "a", ToColumn: "b", TransferType: "teleport",
		})
		return err
	})
	assert.ErrorIs(t, err, errIncompleteEntry)
	assert.Empty(t, store.entries())
}

func TestTransferLogWriter_PropagatesFailure(t *testing.T) {
	writer := NewTransferLogWriter(newFakeClock(t0))
	store := newMemStore()
	store.appendErr = errors.New("ledger offline")

	err := store.WithinTx(context.Background(), func(tx port.Tx) error {
		_, err := writer.Record(context.Background(), tx, domain.TransferLogEntry{
			ProductID: "x", FromKanbanID: "A", ToKanbanID: "B",
			FromColumn: domain.ColumnPurchased, ToColumn: domain.ColumnPurchased,
			TransferType: domain.TransferTypeAutomatic,
		})
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger offline")
}

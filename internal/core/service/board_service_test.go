package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/kanban-flow/internal/core/domain"
)

func newBoardFixture() (*BoardService, *memStore, *fakeClock) {
	store := newMemStore()
	clock := newFakeClock(t0)
	return NewBoardService(store, fakeLocations{"dock-a": true}, clock, nil), store, clock
}

func TestBoardService_CreateBoard(t *testing.T) {
	svc, store, _ := newBoardFixture()
	ctx := context.Background()

	board, err := svc.CreateBoard(ctx, "  Purchasing ", domain.BoardKindOrder, []domain.ThresholdRule{
		{Operator: domain.OperatorGreater, Value: 2, Unit: domain.UnitHours, Priority: 1, Color: "red"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, board.ID)
	assert.Equal(t, "Purchasing", board.Name)
	require.Len(t, board.ThresholdRules, 1)
	assert.NotEmpty(t, board.ThresholdRules[0].ID, "rule ids are assigned")
	assert.True(t, board.CreatedAt.Equal(t0))
	assert.Equal(t, board.Name, store.board(board.ID).Name)
}

func TestBoardService_CreateBoardInvalid(t *testing.T) {
	svc, _, _ := newBoardFixture()
	ctx := context.Background()

	_, err := svc.CreateBoard(ctx, "", domain.BoardKindOrder, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.CreateBoard(ctx, "X", domain.BoardKind("archive"), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.CreateBoard(ctx, "X", domain.BoardKindOrder, []domain.ThresholdRule{
		{Operator: "~", Value: 1, Unit: domain.UnitHours},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRule)

	_, err = svc.CreateBoard(ctx, "X", domain.BoardKindOrder, []domain.ThresholdRule{
		{Operator: domain.OperatorGreater, Value: -1, Unit: domain.UnitHours},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRule)
}

func TestBoardService_LinkBoards(t *testing.T) {
	svc, store, _ := newBoardFixture()
	ctx := context.Background()
	store.putBoard(domain.Board{ID: "A", Kind: domain.BoardKindOrder})
	store.putBoard(domain.Board{ID: "B", Kind: domain.BoardKindReceive})
	store.putBoard(domain.Board{ID: "C", Kind: domain.BoardKindReceive})

	require.NoError(t, svc.LinkBoards(ctx, "A", "B"))
	assert.Equal(t, "B", domain.StringValue(store.board("A").LinkedBoardID))
	assert.Equal(t, "A", domain.StringValue(store.board("B").LinkedBoardID))

	require.NoError(t, svc.LinkBoards(ctx, "A", "C"))
	assert.Equal(t, "C", domain.StringValue(store.board("A").LinkedBoardID))
	assert.Equal(t, "A", domain.StringValue(store.board("C").LinkedBoardID))
	assert.Nil(t, store.board("B").LinkedBoardID, "previous partner is unlinked")

	err := svc.LinkBoards(ctx, "B", "A")
	assert.ErrorIs(t, err, domain.ErrInvalidLink)

	err = svc.LinkBoards(ctx, "A", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBoardService_SetThresholdRules(t *testing.T) {
	svc, store, _ := newBoardFixture()
	ctx := context.Background()
	store.putBoard(domain.Board{ID: "A", Kind: domain.BoardKindOrder})

	board, err := svc.SetThresholdRules(ctx, "A", []domain.ThresholdRule{
		{ID: "keep", Operator: domain.OperatorLess, Value: 30, Unit: domain.UnitMinutes, Priority: 2},
	})
	require.NoError(t, err)
	require.Len(t, board.ThresholdRules, 1)
	assert.Equal(t, "keep", store.board("A").ThresholdRules[0].ID)

	_, err = svc.SetThresholdRules(ctx, "A", []domain.ThresholdRule{{Operator: domain.OperatorLess, Value: 30}})
	assert.ErrorIs(t, err, domain.ErrInvalidRule)
	assert.Equal(t, "keep", store.board("A").ThresholdRules[0].ID, "invalid rule set is not applied")
}

func TestBoardService_CreateItem(t *testing.T) {
	svc, store, _ := newBoardFixture()
	ctx := context.Background()
	store.putBoard(domain.Board{ID: "B", Kind: domain.BoardKindReceive})

	item, err := svc.CreateItem(ctx, "B", domain.ItemFields{
		Name:       "Pallet wrap",
		Quantity:   decimal.RequireFromString("3.5"),
		LocationID: domain.StringPtr("dock-a"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ColumnPurchased, item.Column)
	assert.True(t, item.ColumnEnteredAt.Equal(t0))
	assert.Equal(t, item.ID, store.item(item.ID).ID)

	_, err = svc.CreateItem(ctx, "B", domain.ItemFields{Name: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.CreateItem(ctx, "B", domain.ItemFields{Name: "x", LocationID: domain.StringPtr("unknown")})
	assert.ErrorIs(t, err, domain.ErrUnknownLocation)

	_, err = svc.CreateItem(ctx, "missing", domain.ItemFields{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBoardService_RejectItem(t *testing.T) {
	svc, store, _ := newBoardFixture()
	ctx := context.Background()
	store.putBoard(domain.Board{ID: "A", Kind: domain.BoardKindOrder})
	store.putItem(domain.Item{ID: "x", BoardID: "A", Column: domain.ColumnInReview, ColumnEnteredAt: t0})

	item, err := svc.RejectItem(ctx, "x", "dana", "")
	require.NoError(t, err)
	assert.True(t, item.IsRejected)

	again, err := svc.RejectItem(ctx, "x", "dana", "")
	require.NoError(t, err)
	assert.True(t, again.IsRejected)

	entries := store.entries()
	require.Len(t, entries, 1, "rejecting twice records once")
	assert.Equal(t, domain.TransferTypeManual, entries[0].TransferType)
	assert.Equal(t, "rejected", domain.StringValue(entries[0].Notes))
	assert.Equal(t, "dana", domain.StringValue(entries[0].TransferredBy))

	closedAt := t0
	store.putItem(domain.Item{ID: "gone", BoardID: "A", Column: domain.ColumnPurchased, ClosedAt: &closedAt})
	_, err = svc.RejectItem(ctx, "gone", "dana", "")
	assert.ErrorIs(t, err, domain.ErrItemClosed)
}

func TestBoardService_PublishItem(t *testing.T) {
	svc, store, _ := newBoardFixture()
	ctx := context.Background()
	store.putBoard(domain.Board{ID: "A", Kind: domain.BoardKindOrder})
	store.putItem(domain.Item{ID: "x", BoardID: "A", Column: domain.ColumnNewRequest, ColumnEnteredAt: t0, IsDraft: true})

	item, err := svc.PublishItem(ctx, "x", "erin")
	require.NoError(t, err)
	assert.False(t, item.IsDraft)
	assert.False(t, store.item("x").IsDraft)

	again, err := svc.PublishItem(ctx, "x", "erin")
	require.NoError(t, err)
	assert.False(t, again.IsDraft)

	entries := store.entries()
	require.Len(t, entries, 1, "publishing twice records once")
	assert.Equal(t, domain.TransferTypeManual, entries[0].TransferType)
	assert.Equal(t, domain.ColumnNewRequest, entries[0].ToColumn)
	assert.Equal(t, "published", domain.StringValue(entries[0].Notes))
	assert.Equal(t, "erin", domain.StringValue(entries[0].TransferredBy))

	closedAt := t0
	store.putItem(domain.Item{ID: "gone", BoardID: "A", Column: domain.ColumnPurchased, ClosedAt: &closedAt, IsDraft: true})
	_, err = svc.PublishItem(ctx, "gone", "erin")
	assert.ErrorIs(t, err, domain.ErrItemClosed)
}

func TestBoardService_SetPreferredReceiveBoard(t *testing.T) {
	svc, store, _ := newBoardFixture()
	ctx := context.Background()
	store.putBoard(domain.Board{ID: "A", Kind: domain.BoardKindOrder})
	store.putBoard(domain.Board{ID: "C", Kind: domain.BoardKindReceive})
	store.putItem(domain.Item{ID: "x", BoardID: "A", Column: domain.ColumnNewRequest})

	item, err := svc.SetPreferredReceiveBoard(ctx, "x", "C")
	require.NoError(t, err)
	assert.Equal(t, "C", domain.StringValue(item.PreferredReceiveBoardID))

	_, err = svc.SetPreferredReceiveBoard(ctx, "x", "A")
	assert.ErrorIs(t, err, domain.ErrInvalidLink)

	item, err = svc.SetPreferredReceiveBoard(ctx, "x", "")
	require.NoError(t, err)
	assert.Nil(t, item.PreferredReceiveBoardID)
	assert.Nil(t, store.item("x").PreferredReceiveBoardID)
}

func TestBoardService_Alerts(t *testing.T) {
	svc, store, clock := newBoardFixture()
	ctx := context.Background()
	store.putBoard(domain.Board{ID: "A", Kind: domain.BoardKindOrder, ThresholdRules: []domain.ThresholdRule{
		{ID: "warn", Operator: domain.OperatorGreater, Value: 2, Unit: domain.UnitHours, Priority: 2},
		{ID: "crit", Operator: domain.OperatorGreater, Value: 8, Unit: domain.UnitHours, Priority: 1},
	}})
	store.putItem(domain.Item{ID: "old", BoardID: "A", Column: domain.ColumnInReview, ColumnEnteredAt: t0.Add(-9 * time.Hour)})
	store.putItem(domain.Item{ID: "mid", BoardID: "A", Column: domain.ColumnInReview, ColumnEnteredAt: t0.Add(-3 * time.Hour)})
	store.putItem(domain.Item{ID: "new", BoardID: "A", Column: domain.ColumnNewRequest, ColumnEnteredAt: t0})

	alerts, err := svc.BoardAlerts(ctx, "A")
	require.NoError(t, err)
	require.Len(t, alerts, 3)

	byID := map[string]*domain.ThresholdRule{}
	for _, a := range alerts {
		byID[a.Item.ID] = a.Rule
	}
	require.NotNil(t, byID["old"])
	assert.Equal(t, "crit", byID["old"].ID)
	require.NotNil(t, byID["mid"])
	assert.Equal(t, "warn", byID["mid"].ID)
	assert.Nil(t, byID["new"])

	clock.Advance(3 * time.Hour)
	alert, err := svc.ItemAlert(ctx, "new")
	require.NoError(t, err)
	require.NotNil(t, alert.Rule)
	assert.Equal(t, "warn", alert.Rule.ID)

	_, err = svc.BoardAlerts(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

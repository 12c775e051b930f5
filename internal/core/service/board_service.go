package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/kanban-flow/internal/core/domain"
	"github.com/rl1809/kanban-flow/internal/port"
)

// ItemAlert pairs an item with the threshold rule that currently applies to it.
type ItemAlert struct {
	Item domain.Item
	Rule *domain.ThresholdRule
}

// BoardService manages boards and items outside of column transitions.
type BoardService struct {
	store     port.Store
	locations port.LocationDirectory
	log       *TransferLogWriter
	evaluator *ThresholdEvaluator
	clock     Clock
	logger    *zap.Logger
	validate  *validator.Validate
}

func NewBoardService(store port.Store, locations port.LocationDirectory, clock Clock, logger *zap.Logger) *BoardService {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BoardService{
		store:     store,
		locations: locations,
		log:       NewTransferLogWriter(clock),
		evaluator: NewThresholdEvaluator(clock),
		clock:     clock,
		logger:    logger,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *BoardService) CreateBoard(ctx context.Context, name string, kind domain.BoardKind, rules []domain.ThresholdRule) (*domain.Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewValidationError(domain.ErrInvalidInput, "board name is required")
	}
	if !kind.IsValid() {
		return nil, domain.NewValidationError(domain.ErrInvalidInput, "unknown board kind %q", kind)
	}
	rules, err := s.normalizeRules(rules)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	board := domain.Board{
		ID:             uuid.NewString(),
		Name:           name,
		Kind:           kind,
		ThresholdRules: rules,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateBoard(ctx, board); err != nil {
		return nil, fmt.Errorf("create board: %w", err)
	}
	s.logger.Info("board created", zap.String("board_id", board.ID), zap.String("kind", string(kind)))
	return &board, nil
}

func (s *BoardService) GetBoard(ctx context.Context, id string) (*domain.Board, error) {
	return s.store.GetBoard(ctx, id)
}

// LinkBoards pairs an order board with a receive board. Any previous partner of
// either board loses its link, so each board has at most one partner.
func (s *BoardService) LinkBoards(ctx context.Context, orderBoardID, receiveBoardID string) error {
	return s.store.WithinTx(ctx, func(tx port.Tx) error {
		order, err := tx.GetBoard(ctx, orderBoardID)
		if err != nil {
			return fmt.Errorf("get order board: %w", err)
		}
		receive, err := tx.GetBoard(ctx, receiveBoardID)
		if err != nil {
			return fmt.Errorf("get receive board: %w", err)
		}
		if order.Kind != domain.BoardKindOrder || receive.Kind != domain.BoardKindReceive {
			return domain.NewValidationError(domain.ErrInvalidLink,
				"%s board %s cannot link to %s board %s", order.Kind, order.ID, receive.Kind, receive.ID)
		}

		now := s.clock.Now()
		for _, b := range []*domain.Board{order, receive} {
			if b.LinkedBoardID == nil {
				continue
			}
			partnerID := *b.LinkedBoardID
			if partnerID == order.ID || partnerID == receive.ID {
				continue
			}
			partner, err := tx.GetBoard(ctx, partnerID)
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("get previous partner: %w", err)
			}
			partner.LinkedBoardID = nil
			partner.UpdatedAt = now
			if err := tx.UpdateBoard(ctx, *partner); err != nil {
				return fmt.Errorf("unlink board %s: %w", partner.ID, err)
			}
		}

		order.LinkedBoardID = &receive.ID
		order.UpdatedAt = now
		receive.LinkedBoardID = &order.ID
		receive.UpdatedAt = now
		if err := tx.UpdateBoard(ctx, *order); err != nil {
			return fmt.Errorf("link board %s: %w", order.ID, err)
		}
		if err := tx.UpdateBoard(ctx, *receive); err != nil {
			return fmt.Errorf("link board %s: %w", receive.ID, err)
		}
		return nil
	})
}

// SetThresholdRules replaces the rule set of a board.
func (s *BoardService) SetThresholdRules(ctx context.Context, boardID string, rules []domain.ThresholdRule) (*domain.Board, error) {
	rules, err := s.normalizeRules(rules)
	if err != nil {
		return nil, err
	}

	var updated *domain.Board
	err = s.store.WithinTx(ctx, func(tx port.Tx) error {
		board, err := tx.GetBoard(ctx, boardID)
		if err != nil {
			return fmt.Errorf("get board: %w", err)
		}
		board.ThresholdRules = rules
		board.UpdatedAt = s.clock.Now()
		if err := tx.UpdateBoard(ctx, *board); err != nil {
			return fmt.Errorf("update board: %w", err)
		}
		updated = board
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *BoardService) normalizeRules(rules []domain.ThresholdRule) ([]domain.ThresholdRule, error) {
	out := make([]domain.ThresholdRule, 0, len(rules))
	for i, rule := range rules {
		if err := s.validate.Struct(rule); err != nil {
			return nil, domain.NewValidationError(domain.ErrInvalidRule, "rule %d: %v", i, err)
		}
		if rule.ID == "" {
			rule.ID = uuid.NewString()
		}
		out = append(out, rule)
	}
	return out, nil
}

// CreateItem opens an item in the first column of a board.
func (s *BoardService) CreateItem(ctx context.Context, boardID string, fields domain.ItemFields) (*domain.Item, error) {
	fields.Name = strings.TrimSpace(fields.Name)
	if fields.Name == "" {
		return nil, domain.NewValidationError(domain.ErrInvalidInput, "item name is required")
	}
	if loc := domain.StringValue(fields.LocationID); loc != "" {
		exists, err := s.locations.LocationExists(ctx, loc)
		if err != nil {
			return nil, fmt.Errorf("check location: %w", err)
		}
		if !exists {
			return nil, domain.NewValidationError(domain.ErrUnknownLocation, "location %s", loc)
		}
	}

	var created domain.Item
	err := s.store.WithinTx(ctx, func(tx port.Tx) error {
		board, err := tx.GetBoard(ctx, boardID)
		if err != nil {
			return fmt.Errorf("get board: %w", err)
		}
		created = newItem(board, fields, s.clock.Now())
		if err := tx.CreateItem(ctx, created); err != nil {
			return fmt.Errorf("create item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *BoardService) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	return s.store.GetItem(ctx, id)
}

func (s *BoardService) ListActiveItems(ctx context.Context, boardID string) ([]domain.Item, error) {
	if _, err := s.store.GetBoard(ctx, boardID); err != nil {
		return nil, err
	}
	return s.store.ListActiveItems(ctx, boardID)
}

// RejectItem flags an item as rejected. Only a restore to the first column can
// move it afterwards. The rejection is recorded in the ledger.
func (s *BoardService) RejectItem(ctx context.Context, itemID, actor, notes string) (*domain.Item, error) {
	var rejected *domain.Item
	err := s.store.WithinTx(ctx, func(tx port.Tx) error {
		item, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return fmt.Errorf("get item: %w", err)
		}
		if item.IsClosed() {
			return domain.NewValidationError(domain.ErrItemClosed, "item %s", item.ID)
		}
		if item.IsRejected {
			rejected = item
			return nil
		}

		now := s.clock.Now()
		item.IsRejected = true
		item.UpdatedAt = now
		if err := tx.UpdateItem(ctx, *item); err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		item.Version++

		if notes == "" {
			notes = "rejected"
		}
		_, err = s.log.Record(ctx, tx, domain.TransferLogEntry{
			ProductID:      item.ID,
			FromKanbanID:   item.BoardID,
			ToKanbanID:     item.BoardID,
			FromColumn:     item.Column,
			ToColumn:       item.Column,
			FromLocationID: item.LocationID,
			ToLocationID:   item.LocationID,
			TransferType:   domain.TransferTypeManual,
			Notes:          &notes,
			TransferredBy:  domain.StringPtr(actor),
			CreatedAt:      now,
		})
		if err != nil {
			return err
		}
		rejected = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}

// PublishItem clears an item's draft flag so it can leave its column. The
// change is recorded in the ledger; publishing a published item is a no-op.
func (s *BoardService) PublishItem(ctx context.Context, itemID, actor string) (*domain.Item, error) {
	var published *domain.Item
	err := s.store.WithinTx(ctx, func(tx port.Tx) error {
		item, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return fmt.Errorf("get item: %w", err)
		}
		if item.IsClosed() {
			return domain.NewValidationError(domain.ErrItemClosed, "item %s", item.ID)
		}
		if !item.IsDraft {
			published = item
			return nil
		}

		now := s.clock.Now()
		item.IsDraft = false
		item.UpdatedAt = now
		if err := tx.UpdateItem(ctx, *item); err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		item.Version++

		_, err = s.log.Record(ctx, tx, domain.TransferLogEntry{
			ProductID:      item.ID,
			FromKanbanID:   item.BoardID,
			ToKanbanID:     item.BoardID,
			FromColumn:     item.Column,
			ToColumn:       item.Column,
			FromLocationID: item.LocationID,
			ToLocationID:   item.LocationID,
			TransferType:   domain.TransferTypeManual,
			Notes:          domain.StringPtr("published"),
			TransferredBy:  domain.StringPtr(actor),
			CreatedAt:      now,
		})
		if err != nil {
			return err
		}
		published = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return published, nil
}

// SetPreferredReceiveBoard overrides the board link for one item's
// auto-transfer. An empty boardID clears the override.
func (s *BoardService) SetPreferredReceiveBoard(ctx context.Context, itemID, boardID string) (*domain.Item, error) {
	var updated *domain.Item
	err := s.store.WithinTx(ctx, func(tx port.Tx) error {
		item, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return fmt.Errorf("get item: %w", err)
		}
		if boardID != "" {
			target, err := tx.GetBoard(ctx, boardID)
			if err != nil {
				return fmt.Errorf("get board: %w", err)
			}
			if target.Kind != domain.BoardKindReceive {
				return domain.NewValidationError(domain.ErrInvalidLink, "board %s is not a receive board", boardID)
			}
		}
		item.PreferredReceiveBoardID = domain.StringPtr(boardID)
		item.UpdatedAt = s.clock.Now()
		if err := tx.UpdateItem(ctx, *item); err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		item.Version++
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ItemAlert evaluates the board's threshold rules against one item.
func (s *BoardService) ItemAlert(ctx context.Context, itemID string) (*ItemAlert, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	board, err := s.store.GetBoard(ctx, item.BoardID)
	if err != nil {
		return nil, err
	}
	return &ItemAlert{Item: *item, Rule: s.evaluator.Evaluate(item, board.ThresholdRules)}, nil
}

// BoardAlerts evaluates the board's threshold rules against each active item.
func (s *BoardService) BoardAlerts(ctx context.Context, boardID string) ([]ItemAlert, error) {
	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListActiveItems(ctx, boardID)
	if err != nil {
		return nil, err
	}
	alerts := make([]ItemAlert, 0, len(items))
	for i := range items {
		alerts = append(alerts, ItemAlert{Item: items[i], Rule: s.evaluator.Evaluate(&items[i], board.ThresholdRules)})
	}
	return alerts, nil
}

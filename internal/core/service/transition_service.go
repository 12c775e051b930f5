package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/kanban-flow/internal/core/domain"
	"github.com/rl1809/kanban-flow/internal/port"
)

var (
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrItemBusy         = errors.New("item is being moved by another request")
)

const (
	defaultLockTTL        = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultMaxRetries     = 3
	idempotencyKeyPrefix  = "transition:"
	lockKeyPrefix         = "item:"
)

type Outcome string

const (
	OutcomeMoved           Outcome = "moved"
	OutcomeTransferred     Outcome = "transferred"
	OutcomeTransferSkipped Outcome = "transfer_skipped"
	OutcomeNoop            Outcome = "noop"
	OutcomeDuplicate       Outcome = "duplicate"
)

// TransitionResult describes a completed transition. On a transfer Item is the
// new item on the receive board and OriginItemID the closed one.
type TransitionResult struct {
	Outcome      Outcome
	Item         domain.Item
	OriginItemID string
	LogID        string
	Warning      string
}

type TransitionOptions struct {
	LockTTL        time.Duration
	IdempotencyTTL time.Duration
	MaxRetries     int
}

type TransitionService struct {
	store       port.Store
	locations   port.LocationDirectory
	locker      port.Locker
	idempotency port.IdempotencyStore
	log         *TransferLogWriter
	clock       Clock
	logger      *zap.Logger
	opts        TransitionOptions
}

type TransitionOption func(*TransitionService)

func WithClock(clock Clock) TransitionOption {
	return func(s *TransitionService) {
		s.clock = clock
	}
}

func WithLogger(logger *zap.Logger) TransitionOption {
	return func(s *TransitionService) {
		s.logger = logger
	}
}

// WithIdempotencyStore enables fast rejection of concurrent retries that share
// a request id. Without it the ledger's unique request id is the only guard.
func WithIdempotencyStore(store port.IdempotencyStore) TransitionOption {
	return func(s *TransitionService) {
		s.idempotency = store
	}
}

func WithTransitionOptions(opts TransitionOptions) TransitionOption {
	return func(s *TransitionService) {
		if opts.LockTTL > 0 {
			s.opts.LockTTL = opts.LockTTL
		}
		if opts.IdempotencyTTL > 0 {
			s.opts.IdempotencyTTL = opts.IdempotencyTTL
		}
		if opts.MaxRetries >= 0 {
			s.opts.MaxRetries = opts.MaxRetries
		}
	}
}

func NewTransitionService(store port.Store, locations port.LocationDirectory, locker port.Locker, opts ...TransitionOption) *TransitionService {
	s := &TransitionService{
		store:     store,
		locations: locations,
		locker:    locker,
		clock:     SystemClock,
		logger:    zap.NewNop(),
		opts: TransitionOptions{
			LockTTL:        defaultLockTTL,
			IdempotencyTTL: defaultIdempotencyTTL,
			MaxRetries:     defaultMaxRetries,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = NewTransferLogWriter(s.clock)
	return s
}

// Apply moves an item into req.Column. Entering the hand-off column of a linked
// order board closes the item and opens a copy on the receive board. Item
// update, item creation and the ledger entry commit together or not at all.
func (s *TransitionService) Apply(ctx context.Context, req TransitionRequest) (result *TransitionResult, err error) {
	if req.ItemID == "" {
		return nil, fmt.Errorf("item id: %w", domain.ErrNotFound)
	}
	logger := s.logger.With(zap.String("item_id", req.ItemID), zap.String("column", req.Column))

	if req.RequestID != "" {
		replayed, err := s.replay(ctx, req)
		if err != nil || replayed != nil {
			return replayed, err
		}
		if s.idempotency != nil {
			key := idempotencyKeyPrefix + req.RequestID
			ok, err := s.idempotency.SetIdempotency(ctx, key, s.opts.IdempotencyTTL)
			if err != nil {
				return nil, fmt.Errorf("idempotency check failed: %w", err)
			}
			if !ok {
				return nil, ErrDuplicateRequest
			}
			defer func() {
				if err == nil && result != nil && result.LogID != "" {
					return
				}
				if rmErr := s.idempotency.RemoveIdempotency(context.WithoutCancel(ctx), key); rmErr != nil {
					logger.Error("failed to release request id", zap.String("request_id", req.RequestID), zap.Error(rmErr))
				}
			}()
		}
	}

	if req.LocationID != nil && *req.LocationID != "" {
		exists, err := s.locations.LocationExists(ctx, *req.LocationID)
		if err != nil {
			return nil, fmt.Errorf("check location: %w", err)
		}
		if !exists {
			return nil, domain.NewValidationError(domain.ErrUnknownLocation, "location %s", *req.LocationID)
		}
	}

	release, err := s.locker.Acquire(ctx, lockKeyPrefix+req.ItemID, s.opts.LockTTL)
	if err != nil {
		if errors.Is(err, port.ErrLockNotAcquired) {
			return nil, ErrItemBusy
		}
		return nil, fmt.Errorf("lock item: %w", err)
	}
	defer func() {
		if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
			logger.Warn("failed to release item lock", zap.Error(relErr))
		}
	}()

	for attempt := 0; ; attempt++ {
		result, err = s.applyOnce(ctx, req)
		if errors.Is(err, port.ErrVersionConflict) && attempt < s.opts.MaxRetries {
			logger.Debug("version conflict, retrying transition", zap.Int("attempt", attempt+1))
			continue
		}
		break
	}

	if errors.Is(err, port.ErrDuplicateRequestID) {
		replayed, replayErr := s.replay(ctx, req)
		if replayErr != nil {
			return nil, replayErr
		}
		if replayed != nil {
			return replayed, nil
		}
		return nil, ErrDuplicateRequest
	}
	if err != nil {
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			logger.Error("transition failed", zap.Error(err))
		}
		return nil, err
	}

	switch result.Outcome {
	case OutcomeTransferred:
		logger.Info("item transferred",
			zap.String("target_item_id", result.Item.ID),
			zap.String("target_board_id", result.Item.BoardID),
			zap.String("log_id", result.LogID))
	case OutcomeTransferSkipped:
		logger.Warn("auto-transfer skipped", zap.String("reason", result.Warning))
	case OutcomeMoved:
		logger.Debug("item moved", zap.String("log_id", result.LogID))
	}
	return result, nil
}

func (s *TransitionService) applyOnce(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	var result *TransitionResult

	err := s.store.WithinTx(ctx, func(tx port.Tx) error {
		item, err := tx.GetItem(ctx, req.ItemID)
		if err != nil {
			return fmt.Errorf("get item: %w", err)
		}
		board, err := tx.GetBoard(ctx, item.BoardID)
		if err != nil {
			return fmt.Errorf("get board: %w", err)
		}

		if decision := CanTransition(board, item, req.Column, req.LocationID); !decision.Allowed {
			return decision.Err
		}

		now := s.clock.Now()
		fromColumn := item.Column
		fromLocation := item.LocationID
		toLocation := fromLocation
		if req.LocationID != nil && *req.LocationID != "" {
			toLocation = req.LocationID
		}
		restoring := item.IsRejected

		if fromColumn == req.Column && !restoring {
			if domain.StringValue(fromLocation) == domain.StringValue(toLocation) {
				result = &TransitionResult{Outcome: OutcomeNoop, Item: *item, OriginItemID: item.ID}
				return nil
			}
			item.LocationID = toLocation
			item.UpdatedAt = now
		} else {
			item.EnterColumn(req.Column, now)
			item.IsRejected = false
			item.LocationID = toLocation
		}

		var (
			destination *domain.Board
			warning     string
		)
		if board.Kind == domain.BoardKindOrder && req.Column == board.HandOffColumn() &&
			fromColumn != req.Column && board.LinkedBoardID != nil {
			destination, warning, err = resolveDestination(ctx, tx, board, item)
			if err != nil {
				return err
			}
		}
		if destination != nil {
			item.Close(now)
		}

		if err := tx.UpdateItem(ctx, *item); err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		item.Version++

		entry := domain.TransferLogEntry{
			ProductID:      item.ID,
			FromKanbanID:   board.ID,
			FromColumn:     req.Column,
			FromLocationID: fromLocation,
			Notes:          domain.StringPtr(req.Notes),
			TransferredBy:  domain.StringPtr(req.Actor),
			RequestID:      domain.StringPtr(req.RequestID),
			CreatedAt:      now,
		}

		if destination == nil {
			entry.FromColumn = fromColumn
			entry.ToKanbanID = board.ID
			entry.ToColumn = req.Column
			entry.ToLocationID = toLocation
			entry.TransferType = domain.TransferTypeManual
			logID, err := s.log.Record(ctx, tx, entry)
			if err != nil {
				return err
			}
			outcome := OutcomeMoved
			if warning != "" {
				outcome = OutcomeTransferSkipped
			}
			result = &TransitionResult{Outcome: outcome, Item: *item, OriginItemID: item.ID, LogID: logID, Warning: warning}
			return nil
		}

		created := newItem(destination, item.TransferableFields(), now)
		if err := tx.CreateItem(ctx, created); err != nil {
			return fmt.Errorf("create item on board %s: %w", destination.ID, err)
		}

		entry.TargetProductID = &created.ID
		entry.ToKanbanID = destination.ID
		entry.ToColumn = created.Column
		entry.TransferType = domain.TransferTypeAutomatic
		logID, err := s.log.Record(ctx, tx, entry)
		if err != nil {
			return err
		}

		result = &TransitionResult{Outcome: OutcomeTransferred, Item: created, OriginItemID: item.ID, LogID: logID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resolveDestination picks the receive board for an auto-transfer. The item's
// preferred board wins over the board link. A nil board with a warning means
// the transfer must be skipped.
func resolveDestination(ctx context.Context, tx port.Tx, board *domain.Board, item *domain.Item) (*domain.Board, string, error) {
	for _, id := range []*string{item.PreferredReceiveBoardID, board.LinkedBoardID} {
		if id == nil || *id == "" {
			continue
		}
		candidate, err := tx.GetBoard(ctx, *id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("resolve destination board: %w", err)
		}
		if candidate.Kind != domain.BoardKindReceive {
			continue
		}
		return candidate, "", nil
	}
	return nil, fmt.Sprintf("no receive board resolved for board %s; item stays on the order board", board.ID), nil
}

// replay returns the result of an earlier transition recorded under
// req.RequestID. A request id reused for another item or column is rejected
// as a duplicate.
func (s *TransitionService) replay(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	entry, err := s.store.FindTransferByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("lookup request id: %w", err)
	}
	if entry == nil {
		return nil, nil
	}
	if entry.ProductID != req.ItemID ||
		(entry.TransferType != domain.TransferTypeAutomatic && entry.ToColumn != req.Column) {
		return nil, fmt.Errorf("%w: request id %s was used for item %s column %q",
			ErrDuplicateRequest, req.RequestID, entry.ProductID, entry.ToColumn)
	}

	itemID := entry.ProductID
	if entry.TargetProductID != nil {
		itemID = *entry.TargetProductID
	}
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &TransitionResult{
		Outcome:      OutcomeDuplicate,
		Item:         *item,
		OriginItemID: entry.ProductID,
		LogID:        entry.ID,
	}, nil
}

func newItem(board *domain.Board, fields domain.ItemFields, now time.Time) domain.Item {
	return domain.Item{
		ID:               uuid.NewString(),
		BoardID:          board.ID,
		Name:             fields.Name,
		SKU:              fields.SKU,
		Quantity:         fields.Quantity,
		Supplier:         fields.Supplier,
		Category:         fields.Category,
		Tags:             fields.Tags,
		StockLevel:       fields.StockLevel,
		Column:           board.FirstColumn(),
		ColumnEnteredAt:  now,
		LocationID:       fields.LocationID,
		AssignedPersonID: fields.AssignedPersonID,
		IsDraft:          fields.IsDraft,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

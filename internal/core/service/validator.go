package service

import (
	"github.com/rl1809/kanban-flow/internal/core/domain"
)

// TransitionRequest asks for an item to be moved into Column.
type TransitionRequest struct {
	ItemID     string
	Column     string
	LocationID *string
	Notes      string
	Actor      string
	// RequestID makes retries safe. Optional.
	RequestID string
}

// Decision is the validator's verdict. Err is set when the move is denied.
type Decision struct {
	Allowed bool
	Err     *domain.ValidationError
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason error, format string, args ...any) Decision {
	return Decision{Err: domain.NewValidationError(reason, format, args...)}
}

// CanTransition decides whether item may enter column on board. It has no
// side effects; callers mutate only after an allowed decision.
func CanTransition(board *domain.Board, item *domain.Item, column string, locationID *string) Decision {
	if item.IsClosed() {
		return deny(domain.ErrItemClosed, "item %s was transferred off board %s", item.ID, item.BoardID)
	}
	if item.IsDraft {
		return deny(domain.ErrItemDraft, "item %s", item.ID)
	}
	if !board.Kind.HasColumn(column) {
		return deny(domain.ErrIllegalColumn, "%q is not a column of %s board %s", column, board.Kind, board.ID)
	}
	if item.IsRejected && column != board.FirstColumn() {
		return deny(domain.ErrItemRejected, "item %s can only be restored to %q", item.ID, board.FirstColumn())
	}
	if domain.RequiresLocation(board.Kind, column) {
		location := domain.StringValue(locationID)
		if location == "" {
			location = domain.StringValue(item.LocationID)
		}
		if location == "" {
			return deny(domain.ErrMissingLocation, "column %q requires a location", column)
		}
	}
	return allow()
}

package domain

import "time"

type BoardKind string

const (
	BoardKindOrder   BoardKind = "order"
	BoardKindReceive BoardKind = "receive"
)

// Column names shared by both board kinds.
const (
	ColumnNewRequest = "New Request"
	ColumnInReview   = "In Review"
	ColumnPurchased  = "Purchased"
	ColumnReceived   = "Received"
	ColumnStored     = "Stored"
)

var boardColumns = map[BoardKind][]string{
	BoardKindOrder:   {ColumnNewRequest, ColumnInReview, ColumnPurchased},
	BoardKindReceive: {ColumnPurchased, ColumnReceived, ColumnStored},
}

func (k BoardKind) IsValid() bool {
	_, ok := boardColumns[k]
	return ok
}

// Columns returns the ordered columns of the kind. The slice is a copy.
func (k BoardKind) Columns() []string {
	cols := boardColumns[k]
	out := make([]string, len(cols))
	copy(out, cols)
	return out
}

// HasColumn reports whether column is legal for the kind.
func (k BoardKind) HasColumn(column string) bool {
	for _, c := range boardColumns[k] {
		if c == column {
			return true
		}
	}
	return false
}

// Counterpart returns the kind a board of this kind may be linked to.
func (k BoardKind) Counterpart() BoardKind {
	if k == BoardKindOrder {
		return BoardKindReceive
	}
	return BoardKindOrder
}

type Board struct {
	ID             string
	Name           string
	Kind           BoardKind
	LinkedBoardID  *string
	ThresholdRules []ThresholdRule
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (b *Board) Columns() []string {
	return b.Kind.Columns()
}

func (b *Board) FirstColumn() string {
	return boardColumns[b.Kind][0]
}

// HandOffColumn is the column whose entry passes an item to fulfillment.
// Only order boards have one.
func (b *Board) HandOffColumn() string {
	if b.Kind != BoardKindOrder {
		return ""
	}
	return ColumnPurchased
}

// TerminalColumn is the column that requires a storage location.
// Only receive boards have one.
func (b *Board) TerminalColumn() string {
	if b.Kind != BoardKindReceive {
		return ""
	}
	return ColumnStored
}

// LocationRequiredColumns lists the columns of kind that cannot be entered
// without a location.
func LocationRequiredColumns(kind BoardKind) []string {
	if kind == BoardKindReceive {
		return []string{ColumnStored}
	}
	return nil
}

// RequiresLocation reports whether entering column on a board of kind needs a location.
func RequiresLocation(kind BoardKind, column string) bool {
	for _, c := range LocationRequiredColumns(kind) {
		if c == column {
			return true
		}
	}
	return false
}

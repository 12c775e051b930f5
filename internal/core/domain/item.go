package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Item struct {
	ID                      string
	BoardID                 string
	Name                    string
	SKU                     string
	Quantity                decimal.Decimal
	Supplier                string
	Category                string
	Tags                    []string
	StockLevel              int
	Column                  string
	ColumnEnteredAt         time.Time
	LocationID              *string
	AssignedPersonID        *string
	PreferredReceiveBoardID *string
	IsRejected              bool
	IsDraft                 bool
	ClosedAt                *time.Time
	Version                 int // optimistic locking
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// IsClosed reports whether the item was transferred off its board.
func (i *Item) IsClosed() bool {
	return i.ClosedAt != nil
}

// ItemFields are the caller-supplied attributes of a new item.
type ItemFields struct {
	Name             string
	SKU              string
	Quantity         decimal.Decimal
	Supplier         string
	Category         string
	Tags             []string
	StockLevel       int
	LocationID       *string
	AssignedPersonID *string
	IsDraft          bool
}

// TransferableFields returns the fields that follow an item onto another board.
// Board-specific fields (location, assignee) start empty.
func (i *Item) TransferableFields() ItemFields {
	tags := make([]string, len(i.Tags))
	copy(tags, i.Tags)
	return ItemFields{
		Name:     i.Name,
		SKU:      i.SKU,
		Quantity: i.Quantity,
		Supplier: i.Supplier,
		Category: i.Category,
		Tags:     tags,
	}
}

// EnterColumn moves the item into column and restarts its time-in-column.
func (i *Item) EnterColumn(column string, at time.Time) {
	i.Column = column
	i.ColumnEnteredAt = at
	i.UpdatedAt = at
}

// Close marks the item as transferred away. It stays readable for history.
func (i *Item) Close(at time.Time) {
	i.ClosedAt = &at
	i.UpdatedAt = at
}

func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

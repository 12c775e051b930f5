package domain

import "time"

type TransferType string

const (
	TransferTypeAutomatic TransferType = "automatic"
	TransferTypeManual    TransferType = "manual"
)

func (t TransferType) IsValid() bool {
	return t == TransferTypeAutomatic || t == TransferTypeManual
}

// TransferLogEntry is an immutable record of a column or board change.
// Entries are appended once and never updated or deleted.
type TransferLogEntry struct {
	ID              string       `json:"id"`
	ProductID       string       `json:"productId"`
	TargetProductID *string      `json:"targetProductId,omitempty"`
	FromKanbanID    string       `json:"fromKanbanId"`
	ToKanbanID      string       `json:"toKanbanId"`
	FromColumn      string       `json:"fromColumn"`
	ToColumn        string       `json:"toColumn"`
	FromLocationID  *string      `json:"fromLocationId,omitempty"`
	ToLocationID    *string      `json:"toLocationId,omitempty"`
	TransferType    TransferType `json:"transferType"`
	Notes           *string      `json:"notes,omitempty"`
	TransferredBy   *string      `json:"transferredBy,omitempty"`
	RequestID       *string      `json:"-"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// TransferFilter selects ledger entries. Zero Limit means the default page size.
type TransferFilter struct {
	ItemID  string
	BoardID string
	Limit   int
	Offset  int
}

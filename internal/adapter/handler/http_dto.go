package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/kanban-flow/internal/core/domain"
	"github.com/rl1809/kanban-flow/internal/core/service"
)

type CreateBoardHTTPRequest struct {
	Name           string                 `json:"name" binding:"required,max=255"`
	Kind           string                 `json:"kind" binding:"required,oneof=order receive"`
	ThresholdRules []domain.ThresholdRule `json:"thresholdRules"`
}

type LinkBoardHTTPRequest struct {
	ReceiveBoardID string `json:"receiveBoardId" binding:"required"`
}

type ThresholdRulesHTTPRequest struct {
	ThresholdRules []domain.ThresholdRule `json:"thresholdRules"`
}

type CreateItemHTTPRequest struct {
	Name             string          `json:"name" binding:"required,max=255"`
	SKU              string          `json:"sku" binding:"max=128"`
	Quantity         decimal.Decimal `json:"quantity"`
	Supplier         string          `json:"supplier"`
	Category         string          `json:"category"`
	Tags             []string        `json:"tags"`
	StockLevel       int             `json:"stockLevel"`
	LocationID       *string         `json:"locationId"`
	AssignedPersonID *string         `json:"assignedPersonId"`
	IsDraft          bool            `json:"isDraft"`
}

type TransitionHTTPRequest struct {
	Column     string  `json:"column" binding:"required"`
	LocationID *string `json:"locationId"`
	Notes      string  `json:"notes"`
	RequestID  string  `json:"requestId"`
}

type RejectHTTPRequest struct {
	Notes string `json:"notes"`
}

type PreferredBoardHTTPRequest struct {
	BoardID string `json:"boardId"`
}

type TransferQuery struct {
	ItemID  string `form:"itemId"`
	BoardID string `form:"boardId"`
	Limit   int    `form:"limit" binding:"gte=0"`
	Offset  int    `form:"offset" binding:"gte=0"`
}

type ErrorHTTPResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type BoardResponse struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	Kind           domain.BoardKind       `json:"kind"`
	Columns        []string               `json:"columns"`
	LinkedBoardID  *string                `json:"linkedBoardId"`
	ThresholdRules []domain.ThresholdRule `json:"thresholdRules"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

func toBoardResponse(b *domain.Board) BoardResponse {
	rules := b.ThresholdRules
	if rules == nil {
		rules = []domain.ThresholdRule{}
	}
	return BoardResponse{
		ID:             b.ID,
		Name:           b.Name,
		Kind:           b.Kind,
		Columns:        b.Columns(),
		LinkedBoardID:  b.LinkedBoardID,
		ThresholdRules: rules,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

type ItemResponse struct {
	ID                      string          `json:"id"`
	BoardID                 string          `json:"boardId"`
	Name                    string          `json:"name"`
	SKU                     string          `json:"sku"`
	Quantity                decimal.Decimal `json:"quantity"`
	Supplier                string          `json:"supplier"`
	Category                string          `json:"category"`
	Tags                    []string        `json:"tags"`
	StockLevel              int             `json:"stockLevel"`
	Column                  string          `json:"column"`
	ColumnEnteredAt         time.Time       `json:"columnEnteredAt"`
	LocationID              *string         `json:"locationId"`
	AssignedPersonID        *string         `json:"assignedPersonId"`
	PreferredReceiveBoardID *string         `json:"preferredReceiveBoardId"`
	IsRejected              bool            `json:"isRejected"`
	IsDraft                 bool            `json:"isDraft"`
	ClosedAt                *time.Time      `json:"closedAt"`
	Version                 int             `json:"version"`
	CreatedAt               time.Time       `json:"createdAt"`
	UpdatedAt               time.Time       `json:"updatedAt"`
}

func toItemResponse(it *domain.Item) ItemResponse {
	tags := it.Tags
	if tags == nil {
		tags = []string{}
	}
	return ItemResponse{
		ID:                      it.ID,
		BoardID:                 it.BoardID,
		Name:                    it.Name,
		SKU:                     it.SKU,
		Quantity:                it.Quantity,
		Supplier:                it.Supplier,
		Category:                it.Category,
		Tags:                    tags,
		StockLevel:              it.StockLevel,
		Column:                  it.Column,
		ColumnEnteredAt:         it.ColumnEnteredAt,
		LocationID:              it.LocationID,
		AssignedPersonID:        it.AssignedPersonID,
		PreferredReceiveBoardID: it.PreferredReceiveBoardID,
		IsRejected:              it.IsRejected,
		IsDraft:                 it.IsDraft,
		ClosedAt:                it.ClosedAt,
		Version:                 it.Version,
		CreatedAt:               it.CreatedAt,
		UpdatedAt:               it.UpdatedAt,
	}
}

type ItemAlertResponse struct {
	Item        ItemResponse          `json:"item"`
	AppliedRule *domain.ThresholdRule `json:"appliedRule"`
}

func toItemAlertResponse(a *service.ItemAlert) ItemAlertResponse {
	return ItemAlertResponse{Item: toItemResponse(&a.Item), AppliedRule: a.Rule}
}

type TransitionHTTPResponse struct {
	Outcome      service.Outcome `json:"outcome"`
	Item         ItemResponse    `json:"item"`
	OriginItemID string          `json:"originItemId"`
	LogID        string          `json:"logId,omitempty"`
	Warning      string          `json:"warning,omitempty"`
}

func toTransitionResponse(r *service.TransitionResult) TransitionHTTPResponse {
	return TransitionHTTPResponse{
		Outcome:      r.Outcome,
		Item:         toItemResponse(&r.Item),
		OriginItemID: r.OriginItemID,
		LogID:        r.LogID,
		Warning:      r.Warning,
	}
}

// Package document holds the request and response shapes shared by quotes and invoices.
package document

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/salesops/internal/domain/document"
)

// LineItemInput represents a line of a quote or invoice request
type LineItemInput struct {
	Description     string          `json:"description" binding:"required,min=1,max=500"`
	Quantity        decimal.Decimal `json:"quantity" binding:"required,decimal_gt0"`
	UnitPrice       decimal.Decimal `json:"unit_price" binding:"decimal_gte0"`
	InventoryItemID *uuid.UUID      `json:"inventory_item_id"`
}

// LineItemResponse represents a document line in API responses
type LineItemResponse struct {
	ID              uuid.UUID       `json:"id"`
	Position        int             `json:"position"`
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Total           decimal.Decimal `json:"total"`
	InventoryItemID *uuid.UUID      `json:"inventory_item_id,omitempty"`
}

// ToLineInputs converts request lines to domain inputs
func ToLineInputs(items []LineItemInput) []document.LineInput {
	out := make([]document.LineInput, len(items))
	for i, it := range items {
		out[i] = document.LineInput{
			Description:     it.Description,
			Quantity:        it.Quantity,
			UnitPrice:       it.UnitPrice,
			InventoryItemID: it.InventoryItemID,
		}
	}
	return out
}

// ToLineItemResponses converts domain lines to response DTOs
func ToLineItemResponses(lines []document.LineItem) []LineItemResponse {
	out := make([]LineItemResponse, len(lines))
	for i, l := range lines {
		out[i] = LineItemResponse{
			ID:              l.ID,
			Position:        l.Position,
			Description:     l.Description,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			Total:           l.Total,
			InventoryItemID: l.InventoryItemID,
		}
	}
	return out
}

// InventoryItemIDs returns the distinct inventory items referenced by the inputs, in order
func InventoryItemIDs(items []document.LineInput) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, it := range items {
		if it.InventoryItemID == nil || *it.InventoryItemID == uuid.Nil || seen[*it.InventoryItemID] {
			continue
		}
		seen[*it.InventoryItemID] = true
		ids = append(ids, *it.InventoryItemID)
	}
	return ids
}

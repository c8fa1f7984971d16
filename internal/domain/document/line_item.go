// Package document holds the pieces quotes and invoices share: line items and
// status transition tables.
package document

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/salesops/internal/domain/pricing"
	"github.com/erp/salesops/internal/domain/shared"
)

// LineItem is owned by exactly one document and replaced wholesale on edit
type LineItem struct {
	ID              uuid.UUID
	DocumentID      uuid.UUID
	Position        int
	Description     string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	Total           decimal.Decimal
	InventoryItemID *uuid.UUID
}

// LineInput is what callers provide for a line
type LineInput struct {
	Description     string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	InventoryItemID *uuid.UUID
}

// NewLineItem validates the input and computes the line total
func NewLineItem(documentID uuid.UUID, position int, in LineInput) (*LineItem, error) {
	desc := strings.TrimSpace(in.Description)
	field := fmt.Sprintf("items[%d]", position)
	if desc == "" {
		return nil, shared.NewValidationError(field+".description", "Description is required")
	}
	if !in.Quantity.IsPositive() {
		return nil, shared.NewValidationError(field+".quantity", "Quantity must be positive")
	}
	if in.UnitPrice.IsNegative() {
		return nil, shared.NewValidationError(field+".unit_price", "Unit price cannot be negative")
	}
	var itemID *uuid.UUID
	if in.InventoryItemID != nil && *in.InventoryItemID != uuid.Nil {
		id := *in.InventoryItemID
		itemID = &id
	}
	return &LineItem{
		ID:              uuid.New(),
		DocumentID:      documentID,
		Position:        position,
		Description:     desc,
		Quantity:        in.Quantity,
		UnitPrice:       in.UnitPrice,
		Total:           pricing.LineTotal(in.Quantity, in.UnitPrice),
		InventoryItemID: itemID,
	}, nil
}

// BuildLines validates a full item set. An empty set is a validation error.
func BuildLines(documentID uuid.UUID, inputs []LineInput) ([]LineItem, error) {
	if len(inputs) == 0 {
		return nil, shared.NewValidationError("items", "At least one line item is required")
	}
	lines := make([]LineItem, 0, len(inputs))
	for i, in := range inputs {
		line, err := NewLineItem(documentID, i, in)
		if err != nil {
			return nil, err
		}
		lines = append(lines, *line)
	}
	return lines, nil
}

// CopyLines duplicates lines onto another document with fresh ids
func CopyLines(documentID uuid.UUID, src []LineItem) []LineItem {
	out := make([]LineItem, len(src))
	for i, l := range src {
		l.ID = uuid.New()
		l.DocumentID = documentID
		if l.InventoryItemID != nil {
			id := *l.InventoryItemID
			l.InventoryItemID = &id
		}
		out[i] = l
	}
	return out
}

// ToInputs converts lines back to inputs
func ToInputs(lines []LineItem) []LineInput {
	out := make([]LineInput, len(lines))
	for i, l := range lines {
		out[i] = LineInput{
			Description:     l.Description,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			InventoryItemID: l.InventoryItemID,
		}
	}
	return out
}

// PricingLines projects lines onto the pricing calculator input
func PricingLines(lines []LineItem) []pricing.Line {
	out := make([]pricing.Line, len(lines))
	for i, l := range lines {
		out[i] = pricing.Line{Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}
	return out
}

// InventoryDemand sums quantities per referenced inventory item
func InventoryDemand(lines []LineItem) map[uuid.UUID]decimal.Decimal {
	demand := make(map[uuid.UUID]decimal.Decimal)
	for _, l := range lines {
		if l.InventoryItemID == nil {
			continue
		}
		demand[*l.InventoryItemID] = demand[*l.InventoryItemID].Add(l.Quantity)
	}
	return demand
}

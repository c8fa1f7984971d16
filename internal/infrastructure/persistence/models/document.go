package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/salesops/internal/domain/document"
)

// LineItemColumns are the columns shared by quote_items and invoice_items
type LineItemColumns struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key"`
	Position        int             `gorm:"not null;default:0"`
	Description     string          `gorm:"type:text;not null"`
	Quantity        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Total           decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	InventoryItemID *uuid.UUID      `gorm:"type:uuid;index"`
}

func (c LineItemColumns) toDomain(documentID uuid.UUID) document.LineItem {
	return document.LineItem{
		ID:              c.ID,
		DocumentID:      documentID,
		Position:        c.Position,
		Description:     c.Description,
		Quantity:        c.Quantity,
		UnitPrice:       c.UnitPrice,
		Total:           c.Total,
		InventoryItemID: c.InventoryItemID,
	}
}

func lineColumnsFromDomain(l document.LineItem) LineItemColumns {
	return LineItemColumns{
		ID:              l.ID,
		Position:        l.Position,
		Description:     l.Description,
		Quantity:        l.Quantity,
		UnitPrice:       l.UnitPrice,
		Total:           l.Total,
		InventoryItemID: l.InventoryItemID,
	}
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/salesops/internal/domain/inventory"
	"github.com/erp/salesops/internal/domain/shared"
)

// InventoryItemModel is the persistence model for the InventoryItem aggregate
type InventoryItemModel struct {
	AggregateModel
	SKU           string          `gorm:"column:sku;type:varchar(64);not null;uniqueIndex"`
	Name          string          `gorm:"type:varchar(200);not null"`
	QtyAvailable  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	QtyReserved   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	MinStock      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	PurchasePrice decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	SalePrice     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (InventoryItemModel) TableName() string {
	return "inventory_items"
}

// ToDomain converts the persistence model to a domain InventoryItem
func (m *InventoryItemModel) ToDomain() *inventory.InventoryItem {
	return &inventory.InventoryItem{
		BaseAggregateRoot: m.ToAggregateRoot(),
		SKU:               m.SKU,
		Name:              m.Name,
		QtyAvailable:      m.QtyAvailable,
		QtyReserved:       m.QtyReserved,
		MinStock:          m.MinStock,
		PurchasePrice:     m.PurchasePrice,
		SalePrice:         m.SalePrice,
	}
}

// FromDomain populates the model from a domain InventoryItem
func (m *InventoryItemModel) FromDomain(i *inventory.InventoryItem) {
	m.FromDomainAggregateRoot(i.BaseAggregateRoot)
	m.SKU = i.SKU
	m.Name = i.Name
	m.QtyAvailable = i.QtyAvailable
	m.QtyReserved = i.QtyReserved
	m.MinStock = i.MinStock
	m.PurchasePrice = i.PurchasePrice
	m.SalePrice = i.SalePrice
}

// InventoryItemModelFromDomain creates a new persistence model from a domain InventoryItem
func InventoryItemModelFromDomain(i *inventory.InventoryItem) *InventoryItemModel {
	m := &InventoryItemModel{}
	m.FromDomain(i)
	return m
}

// ReservationModel is the persistence model for the Reservation entity
type ReservationModel struct {
	BaseModel
	InventoryItemID uuid.UUID                   `gorm:"type:uuid;not null;index:idx_reservation_item_status,priority:1"`
	QuoteID         uuid.UUID                   `gorm:"type:uuid;not null;index:idx_reservation_quote_status,priority:1"`
	ClientID        uuid.UUID                   `gorm:"type:uuid;not null"`
	LineItemID      *uuid.UUID                  `gorm:"type:uuid"`
	Quantity        decimal.Decimal             `gorm:"type:decimal(18,4);not null"`
	Status          inventory.ReservationStatus `gorm:"type:varchar(20);not null;default:'active';index:idx_reservation_item_status,priority:2;index:idx_reservation_quote_status,priority:2"`
	CancelledAt     *time.Time
}

// TableName returns the table name for GORM
func (ReservationModel) TableName() string {
	return "reservations"
}

// ToDomain converts the persistence model to a domain Reservation
func (m *ReservationModel) ToDomain() *inventory.Reservation {
	return &inventory.Reservation{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		InventoryItemID: m.InventoryItemID,
		QuoteID:         m.QuoteID,
		ClientID:        m.ClientID,
		LineItemID:      m.LineItemID,
		Quantity:        m.Quantity,
		Status:          m.Status,
		CancelledAt:     m.CancelledAt,
	}
}

// ReservationModelFromDomain creates a new persistence model from a domain Reservation
func ReservationModelFromDomain(r *inventory.Reservation) *ReservationModel {
	m := &ReservationModel{
		InventoryItemID: r.InventoryItemID,
		QuoteID:         r.QuoteID,
		ClientID:        r.ClientID,
		LineItemID:      r.LineItemID,
		Quantity:        r.Quantity,
		Status:          r.Status,
		CancelledAt:     r.CancelledAt,
	}
	m.FromDomainBaseEntity(r.BaseEntity)
	return m
}

package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/salesops/internal/domain/inventory"
)

// InventoryItemResponse represents an inventory item in API responses
type InventoryItemResponse struct {
	ID               uuid.UUID       `json:"id"`
	SKU              string          `json:"sku"`
	Name             string          `json:"name"`
	QtyAvailable     decimal.Decimal `json:"qty_available"`
	QtyReserved      decimal.Decimal `json:"qty_reserved"`
	AvailableForSale decimal.Decimal `json:"available_for_sale"`
	MinStock         decimal.Decimal `json:"min_stock"`
	PurchasePrice    decimal.Decimal `json:"purchase_price"`
	SalePrice        decimal.Decimal `json:"sale_price"`
	IsBelowMinimum   bool            `json:"is_below_minimum"`
	IsOversold       bool            `json:"is_oversold"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Version          int             `json:"version"`
}

// InventoryListFilter represents filter options for inventory list
type InventoryListFilter struct {
	Search       string `form:"search"`
	BelowMinimum *bool  `form:"below_minimum"`
	Oversold     *bool  `form:"oversold"`
	Page         int    `form:"page" binding:"omitempty,min=1"`
	PageSize     int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy      string `form:"order_by"`
	OrderDir     string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// CreateItemRequest represents a request to create an inventory item
type CreateItemRequest struct {
	SKU           string           `json:"sku" binding:"required,min=1,max=64"`
	Name          string           `json:"name" binding:"required,min=1,max=200"`
	QtyAvailable  *decimal.Decimal `json:"qty_available" binding:"omitempty,decimal_gte0"`
	MinStock      *decimal.Decimal `json:"min_stock" binding:"omitempty,decimal_gte0"`
	PurchasePrice *decimal.Decimal `json:"purchase_price" binding:"omitempty,decimal_gte0"`
	SalePrice     *decimal.Decimal `json:"sale_price" binding:"omitempty,decimal_gte0"`
}

// UpdateItemRequest represents a request to update an inventory item.
// qty_reserved is owned by the ledger and cannot be set here.
type UpdateItemRequest struct {
	Name          *string          `json:"name" binding:"omitempty,min=1,max=200"`
	MinStock      *decimal.Decimal `json:"min_stock" binding:"omitempty,decimal_gte0"`
	PurchasePrice *decimal.Decimal `json:"purchase_price" binding:"omitempty,decimal_gte0"`
	SalePrice     *decimal.Decimal `json:"sale_price" binding:"omitempty,decimal_gte0"`
}

// AdjustStockRequest represents a manual change of physical stock
type AdjustStockRequest struct {
	Delta  decimal.Decimal `json:"delta" binding:"required"`
	Reason string          `json:"reason" binding:"required,min=1,max=500"`
}

// ReservationResponse represents a reservation in API responses
type ReservationResponse struct {
	ID              uuid.UUID       `json:"id"`
	InventoryItemID uuid.UUID       `json:"inventory_item_id"`
	QuoteID         uuid.UUID       `json:"quote_id"`
	ClientID        uuid.UUID       `json:"client_id"`
	LineItemID      *uuid.UUID      `json:"line_item_id,omitempty"`
	Quantity        decimal.Decimal `json:"quantity"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
}

// ToInventoryItemResponse converts a domain item to a response DTO
func ToInventoryItemResponse(item *inventory.InventoryItem) InventoryItemResponse {
	return InventoryItemResponse{
		ID:               item.ID,
		SKU:              item.SKU,
		Name:             item.Name,
		QtyAvailable:     item.QtyAvailable,
		QtyReserved:      item.QtyReserved,
		AvailableForSale: item.AvailableForSale(),
		MinStock:         item.MinStock,
		PurchasePrice:    item.PurchasePrice,
		SalePrice:        item.SalePrice,
		IsBelowMinimum:   item.IsBelowMinimum(),
		IsOversold:       item.IsOversold(),
		CreatedAt:        item.CreatedAt,
		UpdatedAt:        item.UpdatedAt,
		Version:          item.Version,
	}
}

// ToInventoryItemResponses converts a slice of domain items
func ToInventoryItemResponses(items []inventory.InventoryItem) []InventoryItemResponse {
	responses := make([]InventoryItemResponse, len(items))
	for i := range items {
		responses[i] = ToInventoryItemResponse(&items[i])
	}
	return responses
}

// ToReservationResponse converts a domain reservation to a response DTO
func ToReservationResponse(r *inventory.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:              r.ID,
		InventoryItemID: r.InventoryItemID,
		QuoteID:         r.QuoteID,
		ClientID:        r.ClientID,
		LineItemID:      r.LineItemID,
		Quantity:        r.Quantity,
		Status:          r.Status.String(),
		CreatedAt:       r.CreatedAt,
		CancelledAt:     r.CancelledAt,
	}
}

// ToReservationResponses converts a slice of domain reservations
func ToReservationResponses(rs []inventory.Reservation) []ReservationResponse {
	responses := make([]ReservationResponse, len(rs))
	for i := range rs {
		responses[i] = ToReservationResponse(&rs[i])
	}
	return responses
}

package inventory

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/salesops/internal/domain/shared"
)

// InventoryItem is a stocked article.
// QtyReserved is owned by the reservation ledger and must not be written through Save.
type InventoryItem struct {
	shared.BaseAggregateRoot
	SKU           string
	Name          string
	QtyAvailable  decimal.Decimal
	QtyReserved   decimal.Decimal
	MinStock      decimal.Decimal
	PurchasePrice decimal.Decimal
	SalePrice     decimal.Decimal
}

// NewInventoryItem creates a new inventory item with no stock
func NewInventoryItem(sku, name string) (*InventoryItem, error) {
	sku = strings.TrimSpace(sku)
	name = strings.TrimSpace(name)
	if sku == "" {
		return nil, shared.NewValidationError("sku", "SKU cannot be empty")
	}
	if len(sku) > 64 {
		return nil, shared.NewValidationError("sku", "SKU cannot exceed 64 characters")
	}
	if name == "" {
		return nil, shared.NewValidationError("name", "Name cannot be empty")
	}

	item := &InventoryItem{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SKU:               sku,
		Name:              name,
		QtyAvailable:      decimal.Zero,
		QtyReserved:       decimal.Zero,
		MinStock:          decimal.Zero,
		PurchasePrice:     decimal.Zero,
		SalePrice:         decimal.Zero,
	}
	return item, nil
}

// Rename changes the display name
func (i *InventoryItem) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewValidationError("name", "Name cannot be empty")
	}
	i.Name = name
	i.Touch()
	return nil
}

// SetPrices sets purchase and sale prices
func (i *InventoryItem) SetPrices(purchase, sale decimal.Decimal) error {
	if purchase.IsNegative() {
		return shared.NewValidationError("purchase_price", "Purchase price cannot be negative")
	}
	if sale.IsNegative() {
		return shared.NewValidationError("sale_price", "Sale price cannot be negative")
	}
	i.PurchasePrice = purchase
	i.SalePrice = sale
	i.Touch()
	return nil
}

// SetMinStock sets the low-stock threshold
func (i *InventoryItem) SetMinStock(qty decimal.Decimal) error {
	if qty.IsNegative() {
		return shared.NewValidationError("min_stock", "Minimum stock cannot be negative")
	}
	i.MinStock = qty
	i.Touch()
	return nil
}

// ErrNegativeStock is returned when an adjustment would take qty_available below zero
var ErrNegativeStock = shared.NewDomainError(shared.CodeInsufficientStock, "Adjustment would make physical stock negative")

// ValidateStockAdjustment checks the parts of an adjustment that do not depend on current stock
func ValidateStockAdjustment(delta decimal.Decimal, reason string) error {
	if delta.IsZero() {
		return shared.NewValidationError("delta", "Adjustment cannot be zero")
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewValidationError("reason", "Adjustment reason is required")
	}
	return nil
}

// AdjustAvailable applies a manual stock adjustment to the physical quantity
func (i *InventoryItem) AdjustAvailable(delta decimal.Decimal, reason string) error {
	if err := ValidateStockAdjustment(delta, reason); err != nil {
		return err
	}
	next := i.QtyAvailable.Add(delta)
	if next.IsNegative() {
		return ErrNegativeStock
	}
	before := i.QtyAvailable
	i.QtyAvailable = next
	i.IncrementVersion()
	i.AddDomainEvent(NewStockAdjustedEvent(i, before, delta, reason))
	return nil
}

// AvailableForSale is qty_available - qty_reserved and may be negative when oversold
func (i *InventoryItem) AvailableForSale() decimal.Decimal {
	return i.QtyAvailable.Sub(i.QtyReserved)
}

// IsOversold reports whether more is reserved than physically present
func (i *InventoryItem) IsOversold() bool {
	return i.QtyReserved.GreaterThan(i.QtyAvailable)
}

// IsBelowMinimum reports whether sellable stock fell under the threshold
func (i *InventoryItem) IsBelowMinimum() bool {
	return i.MinStock.IsPositive() && i.AvailableForSale().LessThan(i.MinStock)
}

// CanReserve reports whether quantity fits in the sellable stock
func (i *InventoryItem) CanReserve(quantity decimal.Decimal) bool {
	return i.AvailableForSale().GreaterThanOrEqual(quantity)
}

// ItemIDFromString parses an item id, returning a validation error on failure
func ItemIDFromString(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, shared.NewValidationError("inventory_item_id", "invalid UUID")
	}
	return id, nil
}

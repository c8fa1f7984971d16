package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/salesops/internal/domain/shared"
)

// ReservationStatus is the state of a reservation
type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "active"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

func (s ReservationStatus) IsValid() bool {
	return s == ReservationStatusActive || s == ReservationStatusCancelled
}

func (s ReservationStatus) String() string {
	return string(s)
}

// Reservation commits a quantity of one inventory item to one quote.
// A cancelled reservation is never re-activated.
type Reservation struct {
	shared.BaseEntity
	InventoryItemID uuid.UUID
	QuoteID         uuid.UUID
	ClientID        uuid.UUID
	LineItemID      *uuid.UUID
	Quantity        decimal.Decimal
	Status          ReservationStatus
	CancelledAt     *time.Time
}

// NewReservation creates an active reservation
func NewReservation(itemID, quoteID, clientID uuid.UUID, quantity decimal.Decimal) (*Reservation, error) {
	if itemID == uuid.Nil {
		return nil, shared.NewValidationError("inventory_item_id", "Inventory item is required")
	}
	if quoteID == uuid.Nil {
		return nil, shared.NewValidationError("quote_id", "Quote is required")
	}
	if !quantity.IsPositive() {
		return nil, shared.NewValidationError("quantity", "Reservation quantity must be positive")
	}
	return &Reservation{
		BaseEntity:      shared.NewBaseEntity(),
		InventoryItemID: itemID,
		QuoteID:         quoteID,
		ClientID:        clientID,
		Quantity:        quantity,
		Status:          ReservationStatusActive,
	}, nil
}

// IsActive reports whether the reservation still counts toward qty_reserved
func (r *Reservation) IsActive() bool {
	return r.Status == ReservationStatusActive
}

// Cancel flips the reservation to cancelled. Cancelling twice is an error.
func (r *Reservation) Cancel() error {
	if !r.IsActive() {
		return shared.NewDomainError(shared.CodeInvalidState, "Reservation is already cancelled")
	}
	now := time.Now()
	r.Status = ReservationStatusCancelled
	r.CancelledAt = &now
	r.UpdatedAt = now
	return nil
}

// SumActive totals the quantity of active reservations
func SumActive(reservations []Reservation) decimal.Decimal {
	total := decimal.Zero
	for _, r := range reservations {
		if r.IsActive() {
			total = total.Add(r.Quantity)
		}
	}
	return total
}

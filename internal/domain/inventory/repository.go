package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/salesops/internal/domain/shared"
)

// InventoryItemRepository defines the interface for inventory item persistence.
// Counter mutations are single atomic UPDATE statements; none of them read first.
type InventoryItemRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*InventoryItem, error)
	FindBySKU(ctx context.Context, sku string) (*InventoryItem, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]InventoryItem, error)
	Count(ctx context.Context, filter shared.Filter) (int64, error)
	ListIDs(ctx context.Context) ([]uuid.UUID, error)

	// Save creates the item or updates its descriptive fields.
	// Neither counter is written on update.
	Save(ctx context.Context, item *InventoryItem) error
	Delete(ctx context.Context, id uuid.UUID) error
	ExistsBySKU(ctx context.Context, sku string) (bool, error)

	// AdjustAvailable adds delta to qty_available while the result stays non-negative.
	// Returns ErrNotFound if the item is gone and ErrNegativeStock when the guard did not match.
	AdjustAvailable(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error

	// IncrementReserved adds quantity to qty_reserved. Returns ErrNotFound if the item is gone.
	IncrementReserved(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) error

	// IncrementReservedIfAvailable adds quantity only while qty_available - qty_reserved >= quantity.
	// Returns false when the guard did not match.
	IncrementReservedIfAvailable(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) (bool, error)

	// DecrementReservedFloor subtracts quantity from qty_reserved, clamping at zero
	DecrementReservedFloor(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) error

	// RecomputeReserved sets qty_reserved to the sum of the item's active reservations
	// in the same statement that computes it. Used only by reconciliation.
	RecomputeReserved(ctx context.Context, id uuid.UUID) error
}

// ReservationRepository defines the interface for reservation persistence
type ReservationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Reservation, error)
	FindByQuote(ctx context.Context, quoteID uuid.UUID) ([]Reservation, error)
	FindActiveByQuote(ctx context.Context, quoteID uuid.UUID) ([]Reservation, error)
	FindActiveByItem(ctx context.Context, itemID uuid.UUID) ([]Reservation, error)
	SumActiveByItem(ctx context.Context, itemID uuid.UUID) (decimal.Decimal, error)
	CountActiveByItem(ctx context.Context, itemID uuid.UUID) (int64, error)
	Create(ctx context.Context, r *Reservation) error

	// CancelIfActive flips one reservation from active to cancelled.
	// Returns true only for the call that performed the flip.
	CancelIfActive(ctx context.Context, id uuid.UUID) (bool, error)
}

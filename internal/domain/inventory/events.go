package inventory

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/salesops/internal/domain/shared"
)

const (
	AggregateTypeInventoryItem = "InventoryItem"
	AggregateTypeReservation   = "Reservation"
)

const (
	EventTypeStockAdjusted       = "StockAdjusted"
	EventTypeReservationCreated  = "ReservationCreated"
	EventTypeReservationReleased = "ReservationReleased"
	EventTypeStockOversold       = "StockOversold"
	EventTypeReservationDrift    = "ReservationDriftDetected"
)

// StockAdjustedEvent is raised on manual changes to physical stock
type StockAdjustedEvent struct {
	shared.BaseDomainEvent
	InventoryItemID uuid.UUID       `json:"inventory_item_id"`
	SKU             string          `json:"sku"`
	Before          decimal.Decimal `json:"before"`
	Delta           decimal.Decimal `json:"delta"`
	After           decimal.Decimal `json:"after"`
	Reason          string          `json:"reason"`
}

func NewStockAdjustedEvent(item *InventoryItem, before, delta decimal.Decimal, reason string) *StockAdjustedEvent {
	return &StockAdjustedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockAdjusted, AggregateTypeInventoryItem, item.ID),
		InventoryItemID: item.ID,
		SKU:             item.SKU,
		Before:          before,
		Delta:           delta,
		After:           item.QtyAvailable,
		Reason:          reason,
	}
}

// ReservationCreatedEvent is raised after a reservation and its counter increment committed
type ReservationCreatedEvent struct {
	shared.BaseDomainEvent
	ReservationID   uuid.UUID       `json:"reservation_id"`
	InventoryItemID uuid.UUID       `json:"inventory_item_id"`
	QuoteID         uuid.UUID       `json:"quote_id"`
	Quantity        decimal.Decimal `json:"quantity"`
}

func NewReservationCreatedEvent(r *Reservation) *ReservationCreatedEvent {
	return &ReservationCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReservationCreated, AggregateTypeReservation, r.ID),
		ReservationID:   r.ID,
		InventoryItemID: r.InventoryItemID,
		QuoteID:         r.QuoteID,
		Quantity:        r.Quantity,
	}
}

// ReservationReleasedEvent is raised when an active reservation was cancelled
type ReservationReleasedEvent struct {
	shared.BaseDomainEvent
	ReservationID   uuid.UUID       `json:"reservation_id"`
	InventoryItemID uuid.UUID       `json:"inventory_item_id"`
	QuoteID         uuid.UUID       `json:"quote_id"`
	Quantity        decimal.Decimal `json:"quantity"`
}

func NewReservationReleasedEvent(r *Reservation) *ReservationReleasedEvent {
	return &ReservationReleasedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReservationReleased, AggregateTypeReservation, r.ID),
		ReservationID:   r.ID,
		InventoryItemID: r.InventoryItemID,
		QuoteID:         r.QuoteID,
		Quantity:        r.Quantity,
	}
}

// StockOversoldEvent is raised when a reservation pushed qty_reserved above qty_available
type StockOversoldEvent struct {
	shared.BaseDomainEvent
	InventoryItemID uuid.UUID       `json:"inventory_item_id"`
	SKU             string          `json:"sku"`
	QtyAvailable    decimal.Decimal `json:"qty_available"`
	QtyReserved     decimal.Decimal `json:"qty_reserved"`
	Deficit         decimal.Decimal `json:"deficit"`
}

func NewStockOversoldEvent(item *InventoryItem) *StockOversoldEvent {
	return &StockOversoldEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockOversold, AggregateTypeInventoryItem, item.ID),
		InventoryItemID: item.ID,
		SKU:             item.SKU,
		QtyAvailable:    item.QtyAvailable,
		QtyReserved:     item.QtyReserved,
		Deficit:         item.QtyReserved.Sub(item.QtyAvailable),
	}
}

// ReservationDriftEvent is raised when qty_reserved disagrees with the active reservations
type ReservationDriftEvent struct {
	shared.BaseDomainEvent
	InventoryItemID uuid.UUID       `json:"inventory_item_id"`
	Counter         decimal.Decimal `json:"counter"`
	ActiveSum       decimal.Decimal `json:"active_sum"`
	Repaired        bool            `json:"repaired"`
}

func NewReservationDriftEvent(itemID uuid.UUID, counter, activeSum decimal.Decimal, repaired bool) *ReservationDriftEvent {
	return &ReservationDriftEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReservationDrift, AggregateTypeInventoryItem, itemID),
		InventoryItemID: itemID,
		Counter:         counter,
		ActiveSum:       activeSum,
		Repaired:        repaired,
	}
}

package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erp/salesops/internal/domain/inventory"
	"github.com/erp/salesops/internal/domain/shared"
	"github.com/erp/salesops/internal/infrastructure/telemetry"
)

// ReserveRequest is the input of ReservationLedger.Reserve
type ReserveRequest struct {
	ItemID     uuid.UUID
	QuoteID    uuid.UUID
	ClientID   uuid.UUID
	LineItemID *uuid.UUID
	Quantity   decimal.Decimal
}

// ReleaseResult describes what a Release call actually cancelled
type ReleaseResult struct {
	QuoteID       uuid.UUID               `json:"quote_id"`
	Released      []inventory.Reservation `json:"released"`
	TotalReleased decimal.Decimal         `json:"total_released"`
	// MissingItems lists items that were gone when their counter was decremented
	MissingItems []uuid.UUID `json:"missing_items,omitempty"`
}

// DriftReport compares an item's counter with the sum of its active reservations
type DriftReport struct {
	ItemID    uuid.UUID       `json:"inventory_item_id"`
	SKU       string          `json:"sku"`
	Counter   decimal.Decimal `json:"counter"`
	ActiveSum decimal.Decimal `json:"active_sum"`
	Drift     decimal.Decimal `json:"drift"`
	Repaired  bool            `json:"repaired"`
}

// HasDrift reports whether the counter disagrees with the reservations
func (r DriftReport) HasDrift() bool {
	return !r.Drift.IsZero()
}

// ReservationLedger keeps qty_reserved equal to the sum of active reservations.
//
// Every Reserve and every per-reservation release is one transaction touching
// exactly one item counter and one reservation row. Counter changes are
// single UPDATE statements; the ledger never reads a counter to write it back.
type ReservationLedger struct {
	scope           TransactionScope
	itemRepo        inventory.InventoryItemRepository
	reservationRepo inventory.ReservationRepository
	eventPublisher  shared.EventPublisher
	logger          *zap.Logger
	enforce         bool
}

// LedgerOption is a functional option for configuring the ledger
type LedgerOption func(*ReservationLedger)

// WithEnforceAvailability rejects reservations that exceed sellable stock
func WithEnforceAvailability(enforce bool) LedgerOption {
	return func(l *ReservationLedger) {
		l.enforce = enforce
	}
}

// WithLedgerLogger sets the logger
func WithLedgerLogger(logger *zap.Logger) LedgerOption {
	return func(l *ReservationLedger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewReservationLedger creates a new ReservationLedger
func NewReservationLedger(
	scope TransactionScope,
	itemRepo inventory.InventoryItemRepository,
	reservationRepo inventory.ReservationRepository,
	opts ...LedgerOption,
) *ReservationLedger {
	l := &ReservationLedger{
		scope:           scope,
		itemRepo:        itemRepo,
		reservationRepo: reservationRepo,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetEventPublisher sets the event publisher for publishing domain events
func (l *ReservationLedger) SetEventPublisher(publisher shared.EventPublisher) {
	l.eventPublisher = publisher
}

// EnforcesAvailability reports whether Reserve rejects oversell
func (l *ReservationLedger) EnforcesAvailability() bool {
	return l.enforce
}

func (l *ReservationLedger) publish(ctx context.Context, events ...shared.DomainEvent) {
	if l.eventPublisher == nil || len(events) == 0 {
		return
	}
	// Publish errors are logged by the event bus, not propagated
	_ = l.eventPublisher.Publish(ctx, events...)
}

// Reserve creates an active reservation and increments the item's qty_reserved
// in the same transaction.
func (l *ReservationLedger) Reserve(ctx context.Context, req ReserveRequest) (_ *inventory.Reservation, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "reserve",
		telemetry.SpanAttrItemID, req.ItemID,
		telemetry.SpanAttrQuoteID, req.QuoteID,
		telemetry.SpanAttrQuantity, req.Quantity.String(),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	var reservation *inventory.Reservation
	err = l.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		reservation, err = l.ReserveWith(ctx, repos, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.PublishReserved(ctx, []inventory.Reservation{*reservation})
	return reservation, nil
}

// ReserveWith records a reservation inside a transaction owned by the caller.
// The caller publishes it with PublishReserved once the transaction committed.
func (l *ReservationLedger) ReserveWith(ctx context.Context, repos TransactionalRepositories, req ReserveRequest) (*inventory.Reservation, error) {
	reservation, err := inventory.NewReservation(req.ItemID, req.QuoteID, req.ClientID, req.Quantity)
	if err != nil {
		return nil, err
	}
	reservation.LineItemID = req.LineItemID

	if err := l.incrementReserved(ctx, repos.InventoryRepo(), req.ItemID, req.Quantity); err != nil {
		return nil, err
	}
	if err := repos.ReservationRepo().Create(ctx, reservation); err != nil {
		return nil, err
	}
	return reservation, nil
}

// PublishReserved announces committed reservations. Without enforcement it
// also flags every touched item that is now oversold.
func (l *ReservationLedger) PublishReserved(ctx context.Context, reserved []inventory.Reservation) {
	if len(reserved) == 0 {
		return
	}
	events := make([]shared.DomainEvent, 0, len(reserved))
	checked := make(map[uuid.UUID]bool)
	for i := range reserved {
		r := &reserved[i]
		events = append(events, inventory.NewReservationCreatedEvent(r))
		if l.enforce || checked[r.InventoryItemID] {
			continue
		}
		checked[r.InventoryItemID] = true
		item, err := l.itemRepo.FindByID(ctx, r.InventoryItemID)
		if err != nil || !item.IsOversold() {
			continue
		}
		l.logger.Warn("inventory item oversold",
			zap.String("item_id", item.ID.String()),
			zap.String("sku", item.SKU),
			zap.String("quote_id", r.QuoteID.String()),
			zap.String("qty_available", item.QtyAvailable.String()),
			zap.String("qty_reserved", item.QtyReserved.String()),
		)
		events = append(events, inventory.NewStockOversoldEvent(item))
	}
	l.publish(ctx, events...)
}

func (l *ReservationLedger) incrementReserved(ctx context.Context, items inventory.InventoryItemRepository, itemID uuid.UUID, qty decimal.Decimal) error {
	if !l.enforce {
		return items.IncrementReserved(ctx, itemID, qty)
	}
	ok, err := items.IncrementReservedIfAvailable(ctx, itemID, qty)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	item, err := items.FindByID(ctx, itemID)
	if err != nil {
		return err
	}
	return shared.NewDomainError(shared.CodeInsufficientStock,
		fmt.Sprintf("Insufficient stock for %s: available=%s, requested=%s",
			item.SKU, item.AvailableForSale().String(), qty.String()))
}

// Release cancels every active reservation of the quote and decrements the
// counters, floored at zero. Each reservation is released in its own
// transaction; calling Release again only touches what is still active.
// An unknown quote is a no-op.
func (l *ReservationLedger) Release(ctx context.Context, quoteID uuid.UUID) (*ReleaseResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "release", telemetry.SpanAttrQuoteID, quoteID)
	defer span.End()

	result := &ReleaseResult{QuoteID: quoteID, TotalReleased: decimal.Zero}

	active, err := l.reservationRepo.FindActiveByQuote(ctx, quoteID)
	if err != nil {
		return result, fmt.Errorf("find active reservations: %w", err)
	}

	var errs []error
	for i := range active {
		r := active[i]
		var outcome releaseOutcome
		err := l.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			outcome, err = l.releaseOne(ctx, repos, &r)
			return err
		})
		if err != nil {
			l.logger.Error("failed to release reservation",
				zap.String("reservation_id", r.ID.String()),
				zap.String("quote_id", quoteID.String()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("release reservation %s: %w", r.ID, err))
			continue
		}
		result.record(r, outcome)
	}

	l.PublishReleased(ctx, result.Released)
	err = errors.Join(errs...)
	telemetry.RecordError(span, err)
	return result, err
}

// ReleaseWith releases the quote's active reservations inside a transaction
// owned by the caller. The caller publishes the returned reservations with
// PublishReleased once the transaction committed.
func (l *ReservationLedger) ReleaseWith(ctx context.Context, repos TransactionalRepositories, quoteID uuid.UUID) (*ReleaseResult, error) {
	result := &ReleaseResult{QuoteID: quoteID, TotalReleased: decimal.Zero}
	active, err := repos.ReservationRepo().FindActiveByQuote(ctx, quoteID)
	if err != nil {
		return nil, fmt.Errorf("find active reservations: %w", err)
	}
	for i := range active {
		r := active[i]
		outcome, err := l.releaseOne(ctx, repos, &r)
		if err != nil {
			return nil, fmt.Errorf("release reservation %s: %w", r.ID, err)
		}
		result.record(r, outcome)
	}
	return result, nil
}

// ReleaseItem releases a single reservation. A missing or already cancelled
// reservation is a no-op and returns false.
func (l *ReservationLedger) ReleaseItem(ctx context.Context, reservationID uuid.UUID) (bool, error) {
	r, err := l.reservationRepo.FindByID(ctx, reservationID)
	if errors.Is(err, shared.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !r.IsActive() {
		return false, nil
	}

	var outcome releaseOutcome
	err = l.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		outcome, err = l.releaseOne(ctx, repos, r)
		return err
	})
	if err != nil {
		return false, err
	}
	if outcome == releaseSkipped {
		return false, nil
	}
	l.PublishReleased(ctx, []inventory.Reservation{*r})
	return true, nil
}

// ReleaseReservationWith releases one reservation inside a transaction owned
// by the caller. It returns false when the reservation was no longer active.
func (l *ReservationLedger) ReleaseReservationWith(ctx context.Context, repos TransactionalRepositories, r *inventory.Reservation) (bool, error) {
	outcome, err := l.releaseOne(ctx, repos, r)
	if err != nil {
		return false, err
	}
	return outcome != releaseSkipped, nil
}

// PublishReleased announces committed releases
func (l *ReservationLedger) PublishReleased(ctx context.Context, released []inventory.Reservation) {
	if len(released) == 0 {
		return
	}
	events := make([]shared.DomainEvent, 0, len(released))
	for i := range released {
		events = append(events, inventory.NewReservationReleasedEvent(&released[i]))
	}
	l.publish(ctx, events...)
}

type releaseOutcome int

const (
	releaseSkipped releaseOutcome = iota
	releaseDone
	releaseItemMissing
)

// releaseOne flips one reservation and decrements its item. The conditional
// flip makes a second concurrent release of the same row a no-op.
func (l *ReservationLedger) releaseOne(ctx context.Context, repos TransactionalRepositories, r *inventory.Reservation) (releaseOutcome, error) {
	flipped, err := repos.ReservationRepo().CancelIfActive(ctx, r.ID)
	if err != nil {
		return releaseSkipped, err
	}
	if !flipped {
		return releaseSkipped, nil
	}
	_ = r.Cancel()

	err = repos.InventoryRepo().DecrementReservedFloor(ctx, r.InventoryItemID, r.Quantity)
	if errors.Is(err, shared.ErrNotFound) {
		l.logger.Warn("reserved item no longer exists, reservation cancelled without decrement",
			zap.String("reservation_id", r.ID.String()),
			zap.String("item_id", r.InventoryItemID.String()),
			zap.String("quote_id", r.QuoteID.String()),
		)
		return releaseItemMissing, nil
	}
	if err != nil {
		return releaseSkipped, err
	}
	return releaseDone, nil
}

func (r *ReleaseResult) record(res inventory.Reservation, outcome releaseOutcome) {
	switch outcome {
	case releaseDone:
		r.Released = append(r.Released, res)
		r.TotalReleased = r.TotalReleased.Add(res.Quantity)
	case releaseItemMissing:
		r.Released = append(r.Released, res)
		r.MissingItems = append(r.MissingItems, res.InventoryItemID)
	}
}

// Reconcile compares qty_reserved with the active reservations of one item.
// A repair recomputes the counter in a single statement, so a reservation
// committed after the comparison is still counted.
func (l *ReservationLedger) Reconcile(ctx context.Context, itemID uuid.UUID, repair bool) (*DriftReport, error) {
	var report *DriftReport
	err := l.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		item, err := repos.InventoryRepo().FindByID(ctx, itemID)
		if err != nil {
			return err
		}
		sum, err := repos.ReservationRepo().SumActiveByItem(ctx, itemID)
		if err != nil {
			return err
		}
		report = &DriftReport{
			ItemID:    item.ID,
			SKU:       item.SKU,
			Counter:   item.QtyReserved,
			ActiveSum: sum,
			Drift:     item.QtyReserved.Sub(sum),
		}
		if !report.HasDrift() || !repair {
			return nil
		}
		if err := repos.InventoryRepo().RecomputeReserved(ctx, itemID); err != nil {
			return err
		}
		report.Repaired = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if report.HasDrift() {
		l.logger.Warn("reservation counter drift",
			zap.String("item_id", report.ItemID.String()),
			zap.String("sku", report.SKU),
			zap.String("counter", report.Counter.String()),
			zap.String("active_sum", report.ActiveSum.String()),
			zap.Bool("repaired", report.Repaired),
		)
		l.publish(ctx, inventory.NewReservationDriftEvent(report.ItemID, report.Counter, report.ActiveSum, report.Repaired))
	}
	return report, nil
}

// ReconcileAll runs Reconcile over every item and returns the drifted ones
func (l *ReservationLedger) ReconcileAll(ctx context.Context, repair bool) ([]DriftReport, error) {
	ids, err := l.itemRepo.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list inventory items: %w", err)
	}
	var (
		drifted []DriftReport
		errs    []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		report, err := l.Reconcile(ctx, id, repair)
		if errors.Is(err, shared.ErrNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("reconcile %s: %w", id, err))
			continue
		}
		if report.HasDrift() {
			drifted = append(drifted, *report)
		}
	}
	return drifted, errors.Join(errs...)
}

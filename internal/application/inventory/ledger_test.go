package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erp/salesops/internal/domain/inventory"
	"github.com/erp/salesops/internal/domain/shared"
)

func newTestLedger(opts ...LedgerOption) (*ReservationLedger, *MockInventoryItemRepository, *MockReservationRepository, *MockEventPublisher) {
	itemRepo := new(MockInventoryItemRepository)
	resRepo := new(MockReservationRepository)
	publisher := NewMockEventPublisher()
	ledger := NewReservationLedger(NewNoOpTransactionScope(itemRepo, resRepo), itemRepo, resRepo, opts...)
	ledger.SetEventPublisher(publisher)
	return ledger, itemRepo, resRepo, publisher
}

func TestReservationLedger_Reserve(t *testing.T) {
	ctx := context.Background()

	t.Run("increments counter and records reservation", func(t *testing.T) {
		ledger, itemRepo, resRepo, publisher := newTestLedger()
		item := newTestItem("SKU-1", 10, 3)
		quoteID := uuid.New()
		lineID := uuid.New()

		itemRepo.On("IncrementReserved", mock.Anything, item.ID, decimal.NewFromInt(3)).Return(nil).Once()
		resRepo.On("Create", mock.Anything, mock.AnythingOfType("*inventory.Reservation")).Return(nil).Once()
		itemRepo.On("FindByID", mock.Anything, item.ID).Return(item, nil).Once()

		r, err := ledger.Reserve(ctx, ReserveRequest{
			ItemID:     item.ID,
			QuoteID:    quoteID,
			ClientID:   uuid.New(),
			LineItemID: &lineID,
			Quantity:   decimal.NewFromInt(3),
		})

		require.NoError(t, err)
		assert.Equal(t, inventory.ReservationStatusActive, r.Status)
		assert.Equal(t, quoteID, r.QuoteID)
		assert.Equal(t, &lineID, r.LineItemID)
		assert.Len(t, publisher.GetEventsByType(inventory.EventTypeReservationCreated), 1)
		assert.Empty(t, publisher.GetEventsByType(inventory.EventTypeStockOversold))
		itemRepo.AssertNotCalled(t, "IncrementReservedIfAvailable", mock.Anything, mock.Anything, mock.Anything)
		itemRepo.AssertExpectations(t)
		resRepo.AssertExpectations(t)
	})

	t.Run("permissive mode surfaces oversell", func(t *testing.T) {
		ledger, itemRepo, resRepo, publisher := newTestLedger()
		item := newTestItem("SKU-2", 8, 10)

		itemRepo.On("IncrementReserved", mock.Anything, item.ID, decimal.NewFromInt(5)).Return(nil).Once()
		resRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
		itemRepo.On("FindByID", mock.Anything, item.ID).Return(item, nil).Once()

		_, err := ledger.Reserve(ctx, ReserveRequest{ItemID: item.ID, QuoteID: uuid.New(), Quantity: decimal.NewFromInt(5)})

		require.NoError(t, err)
		events := publisher.GetEventsByType(inventory.EventTypeStockOversold)
		require.Len(t, events, 1)
		oversold := events[0].(*inventory.StockOversoldEvent)
		assert.True(t, oversold.Deficit.Equal(decimal.NewFromInt(2)))
	})

	t.Run("enforced mode rejects when stock is short", func(t *testing.T) {
		ledger, itemRepo, resRepo, publisher := newTestLedger(WithEnforceAvailability(true))
		item := newTestItem("SKU-3", 8, 5)

		itemRepo.On("IncrementReservedIfAvailable", mock.Anything, item.ID, decimal.NewFromInt(5)).Return(false, nil).Once()
		itemRepo.On("FindByID", mock.Anything, item.ID).Return(item, nil).Once()

		r, err := ledger.Reserve(ctx, ReserveRequest{ItemID: item.ID, QuoteID: uuid.New(), Quantity: decimal.NewFromInt(5)})

		assert.Nil(t, r)
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
		assert.Contains(t, err.Error(), "SKU-3")
		resRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		assert.Empty(t, publisher.GetEvents())
	})

	t.Run("enforced mode on a missing item reports not found", func(t *testing.T) {
		ledger, itemRepo, _, _ := newTestLedger(WithEnforceAvailability(true))
		itemID := uuid.New()

		itemRepo.On("IncrementReservedIfAvailable", mock.Anything, itemID, decimal.NewFromInt(1)).Return(false, nil).Once()
		itemRepo.On("FindByID", mock.Anything, itemID).Return(nil, shared.ErrNotFound).Once()

		_, err := ledger.Reserve(ctx, ReserveRequest{ItemID: itemID, QuoteID: uuid.New(), Quantity: decimal.NewFromInt(1)})

		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("rejects non-positive quantity before touching storage", func(t *testing.T) {
		ledger, itemRepo, resRepo, _ := newTestLedger()

		_, err := ledger.Reserve(ctx, ReserveRequest{ItemID: uuid.New(), QuoteID: uuid.New(), Quantity: decimal.Zero})

		assert.ErrorIs(t, err, shared.ErrValidation)
		itemRepo.AssertNotCalled(t, "IncrementReserved", mock.Anything, mock.Anything, mock.Anything)
		resRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("storage failure is returned without events", func(t *testing.T) {
		ledger, itemRepo, _, publisher := newTestLedger()
		itemID := uuid.New()
		boom := errors.New("connection reset")

		itemRepo.On("IncrementReserved", mock.Anything, itemID, decimal.NewFromInt(2)).Return(boom).Once()

		_, err := ledger.Reserve(ctx, ReserveRequest{ItemID: itemID, QuoteID: uuid.New(), Quantity: decimal.NewFromInt(2)})

		assert.ErrorIs(t, err, boom)
		assert.Empty(t, publisher.GetEvents())
	})
}

func TestReservationLedger_Release(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels and decrements every active reservation", func(t *testing.T) {
		ledger, itemRepo, resRepo, publisher := newTestLedger()
		quoteID := uuid.New()
		itemA, itemB := uuid.New(), uuid.New()
		r1 := newTestReservation(itemA, quoteID, 3)
		r2 := newTestReservation(itemB, quoteID, 2)

		resRepo.On("FindActiveByQuote", mock.Anything, quoteID).Return([]inventory.Reservation{r1, r2}, nil).Once()
		resRepo.On("CancelIfActive", mock.Anything, r1.ID).Return(true, nil).Once()
		resRepo.On("CancelIfActive", mock.Anything, r2.ID).Return(true, nil).Once()
		itemRepo.On("DecrementReservedFloor", mock.Anything, itemA, decimal.NewFromInt(3)).Return(nil).Once()
		itemRepo.On("DecrementReservedFloor", mock.Anything, itemB, decimal.NewFromInt(2)).Return(nil).Once()

		result, err := ledger.Release(ctx, quoteID)

		require.NoError(t, err)
		assert.Len(t, result.Released, 2)
		assert.True(t, result.TotalReleased.Equal(decimal.NewFromInt(5)))
		for _, r := range result.Released {
			assert.Equal(t, inventory.ReservationStatusCancelled, r.Status)
		}
		assert.Len(t, publisher.GetEventsByType(inventory.EventTypeReservationReleased), 2)
		itemRepo.AssertExpectations(t)
		resRepo.AssertExpectations(t)
	})

	t.Run("second release is a no-op", func(t *testing.T) {
		ledger, itemRepo, resRepo, publisher := newTestLedger()
		quoteID := uuid.New()

		resRepo.On("FindActiveByQuote", mock.Anything, quoteID).Return([]inventory.Reservation{}, nil).Once()

		result, err := ledger.Release(ctx, quoteID)

		require.NoError(t, err)
		assert.Empty(t, result.Released)
		assert.True(t, result.TotalReleased.IsZero())
		assert.Empty(t, publisher.GetEvents())
		itemRepo.AssertNotCalled(t, "DecrementReservedFloor", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("reservation cancelled concurrently is not decremented again", func(t *testing.T) {
		ledger, itemRepo, resRepo, publisher := newTestLedger()
		quoteID := uuid.New()
		r := newTestReservation(uuid.New(), quoteID, 4)

		resRepo.On("FindActiveByQuote", mock.Anything, quoteID).Return([]inventory.Reservation{r}, nil).Once()
		resRepo.On("CancelIfActive", mock.Anything, r.ID).Return(false, nil).Once()

		result, err := ledger.Release(ctx, quoteID)

		require.NoError(t, err)
		assert.Empty(t, result.Released)
		assert.Empty(t, publisher.GetEvents())
		itemRepo.AssertNotCalled(t, "DecrementReservedFloor", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing item still cancels the reservation", func(t *testing.T) {
		ledger, itemRepo, resRepo, _ := newTestLedger()
		quoteID := uuid.New()
		r := newTestReservation(uuid.New(), quoteID, 1)

		resRepo.On("FindActiveByQuote", mock.Anything, quoteID).Return([]inventory.Reservation{r}, nil).Once()
		resRepo.On("CancelIfActive", mock.Anything, r.ID).Return(true, nil).Once()
		itemRepo.On("DecrementReservedFloor", mock.Anything, r.InventoryItemID, decimal.NewFromInt(1)).Return(shared.ErrNotFound).Once()

		result, err := ledger.Release(ctx, quoteID)

		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{r.InventoryItemID}, result.MissingItems)
		assert.Len(t, result.Released, 1)
		assert.True(t, result.TotalReleased.IsZero())
	})

	t.Run("one failing reservation does not stop the others", func(t *testing.T) {
		ledger, itemRepo, resRepo, _ := newTestLedger()
		quoteID := uuid.New()
		r1 := newTestReservation(uuid.New(), quoteID, 1)
		r2 := newTestReservation(uuid.New(), quoteID, 2)
		boom := errors.New("deadlock detected")

		resRepo.On("FindActiveByQuote", mock.Anything, quoteID).Return([]inventory.Reservation{r1, r2}, nil).Once()
		resRepo.On("CancelIfActive", mock.Anything, r1.ID).Return(false, boom).Once()
		resRepo.On("CancelIfActive", mock.Anything, r2.ID).Return(true, nil).Once()
		itemRepo.On("DecrementReservedFloor", mock.Anything, r2.InventoryItemID, decimal.NewFromInt(2)).Return(nil).Once()

		result, err := ledger.Release(ctx, quoteID)

		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), r1.ID.String())
		require.Len(t, result.Released, 1)
		assert.Equal(t, r2.ID, result.Released[0].ID)
	})
}

func TestReservationLedger_ReleaseWith(t *testing.T) {
	ctx := context.Background()
	ledger, itemRepo, resRepo, publisher := newTestLedger()
	quoteID := uuid.New()
	r := newTestReservation(uuid.New(), quoteID, 3)
	boom := errors.New("write failed")

	resRepo.On("FindActiveByQuote", mock.Anything, quoteID).Return([]inventory.Reservation{r}, nil).Once()
	resRepo.On("CancelIfActive", mock.Anything, r.ID).Return(true, nil).Once()
	itemRepo.On("DecrementReservedFloor", mock.Anything, r.InventoryItemID, decimal.NewFromInt(3)).Return(boom).Once()

	scope := NewNoOpTransactionScope(itemRepo, resRepo)
	result, err := ledger.ReleaseWith(ctx, scope, quoteID)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, publisher.GetEvents(), "events are published by the caller after commit")
}

func TestReservationLedger_ReleaseItem(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown reservation is a no-op", func(t *testing.T) {
		ledger, _, resRepo, _ := newTestLedger()
		id := uuid.New()
		resRepo.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound).Once()

		released, err := ledger.ReleaseItem(ctx, id)

		require.NoError(t, err)
		assert.False(t, released)
	})

	t.Run("cancelled reservation is a no-op", func(t *testing.T) {
		ledger, _, resRepo, _ := newTestLedger()
		r := newTestReservation(uuid.New(), uuid.New(), 2)
		require.NoError(t, r.Cancel())
		resRepo.On("FindByID", mock.Anything, r.ID).Return(&r, nil).Once()

		released, err := ledger.ReleaseItem(ctx, r.ID)

		require.NoError(t, err)
		assert.False(t, released)
		resRepo.AssertNotCalled(t, "CancelIfActive", mock.Anything, mock.Anything)
	})

	t.Run("active reservation is released once", func(t *testing.T) {
		ledger, itemRepo, resRepo, publisher := newTestLedger()
		r := newTestReservation(uuid.New(), uuid.New(), 2)
		resRepo.On("FindByID", mock.Anything, r.ID).Return(&r, nil).Once()
		resRepo.On("CancelIfActive", mock.Anything, r.ID).Return(true, nil).Once()
		itemRepo.On("DecrementReservedFloor", mock.Anything, r.InventoryItemID, decimal.NewFromInt(2)).Return(nil).Once()

		released, err := ledger.ReleaseItem(ctx, r.ID)

		require.NoError(t, err)
		assert.True(t, released)
		assert.Len(t, publisher.GetEventsByType(inventory.EventTypeReservationReleased), 1)
	})
}

func TestReservationLedger_Reconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("no drift leaves the counter alone", func(t *testing.T) {
		ledger, itemRepo, resRepo, publisher := newTestLedger()
		item := newTestItem("SKU-R1", 10, 4)
		itemRepo.On("FindByID", mock.Anything, item.ID).Return(item, nil).Once()
		resRepo.On("SumActiveByItem", mock.Anything, item.ID).Return(decimal.NewFromInt(4), nil).Once()

		report, err := ledger.Reconcile(ctx, item.ID, true)

		require.NoError(t, err)
		assert.False(t, report.HasDrift())
		assert.False(t, report.Repaired)
		assert.Empty(t, publisher.GetEvents())
		itemRepo.AssertNotCalled(t, "RecomputeReserved", mock.Anything, mock.Anything)
	})

	t.Run("drift is repaired to the reservation sum", func(t *testing.T) {
		ledger, itemRepo, resRepo, publisher := newTestLedger()
		item := newTestItem("SKU-R2", 10, 7)
		itemRepo.On("FindByID", mock.Anything, item.ID).Return(item, nil).Once()
		resRepo.On("SumActiveByItem", mock.Anything, item.ID).Return(decimal.NewFromInt(4), nil).Once()
		itemRepo.On("RecomputeReserved", mock.Anything, item.ID).Return(nil).Once()

		report, err := ledger.Reconcile(ctx, item.ID, true)

		require.NoError(t, err)
		assert.True(t, report.Drift.Equal(decimal.NewFromInt(3)))
		assert.True(t, report.Repaired)
		require.Len(t, publisher.GetEventsByType(inventory.EventTypeReservationDrift), 1)
		itemRepo.AssertExpectations(t)
	})

	t.Run("report only", func(t *testing.T) {
		ledger, itemRepo, resRepo, _ := newTestLedger()
		item := newTestItem("SKU-R3", 10, 0)
		itemRepo.On("FindByID", mock.Anything, item.ID).Return(item, nil).Once()
		resRepo.On("SumActiveByItem", mock.Anything, item.ID).Return(decimal.NewFromInt(2), nil).Once()

		report, err := ledger.Reconcile(ctx, item.ID, false)

		require.NoError(t, err)
		assert.True(t, report.HasDrift())
		assert.False(t, report.Repaired)
		itemRepo.AssertNotCalled(t, "RecomputeReserved", mock.Anything, mock.Anything)
	})
}

func TestReservationLedger_ReconcileAll(t *testing.T) {
	ctx := context.Background()
	ledger, itemRepo, resRepo, _ := newTestLedger()
	clean := newTestItem("SKU-A", 5, 1)
	drifted := newTestItem("SKU-B", 5, 3)
	goneID := uuid.New()

	itemRepo.On("ListIDs", mock.Anything).Return([]uuid.UUID{clean.ID, drifted.ID, goneID}, nil).Once()
	itemRepo.On("FindByID", mock.Anything, clean.ID).Return(clean, nil).Once()
	itemRepo.On("FindByID", mock.Anything, drifted.ID).Return(drifted, nil).Once()
	itemRepo.On("FindByID", mock.Anything, goneID).Return(nil, shared.ErrNotFound).Once()
	resRepo.On("SumActiveByItem", mock.Anything, clean.ID).Return(decimal.NewFromInt(1), nil).Once()
	resRepo.On("SumActiveByItem", mock.Anything, drifted.ID).Return(decimal.Zero, nil).Once()

	reports, err := ledger.ReconcileAll(ctx, false)

	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "SKU-B", reports[0].SKU)
}

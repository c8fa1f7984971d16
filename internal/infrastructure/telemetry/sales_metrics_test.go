package telemetry_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/erp/salesops/internal/domain/billing"
	"github.com/erp/salesops/internal/domain/inventory"
	"github.com/erp/salesops/internal/domain/numbering"
	"github.com/erp/salesops/internal/domain/sales"
	"github.com/erp/salesops/internal/domain/shared"
	"github.com/erp/salesops/internal/infrastructure/telemetry"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumInt(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", m.Name)
	want := attribute.NewSet(attrs...)
	var total int64
	for _, dp := range sum.DataPoints {
		if len(attrs) == 0 || dp.Attributes.Equals(&want) {
			total += dp.Value
		}
	}
	return total
}

func gaugeInt(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	g, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok, "%s is not an int64 gauge", m.Name)
	require.Len(t, g.DataPoints, 1)
	return g.DataPoints[0].Value
}

func base(eventType string) shared.BaseDomainEvent {
	return shared.NewBaseDomainEvent(eventType, "Test", uuid.New())
}

func TestNewSalesMetrics_NilMeter(t *testing.T) {
	m, err := telemetry.NewSalesMetrics(nil, nil, nil)
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
	assert.Nil(t, m)
}

func TestSalesMetrics_NoopMeter(t *testing.T) {
	m, err := telemetry.NewSalesMetrics(noop.NewMeterProvider().Meter("test"), nil, nil)
	require.NoError(t, err)
	assert.NoError(t, m.Handle(context.Background(), &sales.QuoteCreatedEvent{BaseDomainEvent: base(sales.EventTypeQuoteCreated)}))
	assert.NoError(t, m.CollectLedgerStats(context.Background()))
}

func TestSalesMetrics_CountsDomainEvents(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := telemetry.NewMeterProviderWithReader(reader)
	m, err := telemetry.NewSalesMetrics(mp.Meter("salesops"), nil, nil)
	require.NoError(t, err)

	quoteID := uuid.New()
	events := []shared.DomainEvent{
		&sales.QuoteCreatedEvent{BaseDomainEvent: base(sales.EventTypeQuoteCreated), Total: decimal.NewFromInt(360)},
		&sales.QuoteCreatedEvent{BaseDomainEvent: base(sales.EventTypeQuoteCreated), Total: decimal.NewFromInt(120)},
		&sales.QuoteStatusChangedEvent{BaseDomainEvent: base(sales.EventTypeQuoteStatusChanged), From: sales.QuoteStatusSent, To: sales.QuoteStatusRejected},
		&sales.QuoteRolledBackEvent{BaseDomainEvent: base(sales.EventTypeQuoteRolledBack), Operation: "quote creation", Compensated: true},
		&billing.InvoiceCreatedEvent{BaseDomainEvent: base(billing.EventTypeInvoiceCreated), QuoteID: &quoteID, Total: decimal.NewFromInt(324)},
		&billing.InvoiceCreatedEvent{BaseDomainEvent: base(billing.EventTypeInvoiceCreated), Total: decimal.NewFromInt(10)},
		&inventory.ReservationCreatedEvent{BaseDomainEvent: base(inventory.EventTypeReservationCreated)},
		&inventory.ReservationCreatedEvent{BaseDomainEvent: base(inventory.EventTypeReservationCreated)},
		&inventory.ReservationReleasedEvent{BaseDomainEvent: base(inventory.EventTypeReservationReleased)},
		&inventory.StockOversoldEvent{BaseDomainEvent: base(inventory.EventTypeStockOversold)},
		&inventory.ReservationDriftEvent{BaseDomainEvent: base(inventory.EventTypeReservationDrift), Repaired: true},
		&numbering.NumberDegradedEvent{BaseDomainEvent: base(numbering.EventTypeNumberDegraded), Kind: numbering.KindQuote},
		&sales.QuoteDeletedEvent{BaseDomainEvent: base(sales.EventTypeQuoteDeleted)},
	}
	for _, e := range events {
		require.NoError(t, m.Handle(ctx, e))
	}

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumInt(t, got["salesops_quotes_created_total"]))
	assert.Equal(t, int64(1), sumInt(t, got["salesops_quote_transitions_total"],
		telemetry.AttrFromStatus.String("sent"), telemetry.AttrToStatus.String("rejected")))
	assert.Equal(t, int64(1), sumInt(t, got["salesops_saga_rollbacks_total"],
		telemetry.AttrOperation.String("quote creation"), telemetry.AttrCompensated.Bool(true)))
	assert.Equal(t, int64(1), sumInt(t, got["salesops_invoices_created_total"], telemetry.AttrFromQuote.Bool(true)))
	assert.Equal(t, int64(2), sumInt(t, got["salesops_invoices_created_total"]))
	assert.Equal(t, int64(2), sumInt(t, got["salesops_reservations_created_total"]))
	assert.Equal(t, int64(1), sumInt(t, got["salesops_reservations_released_total"]))
	assert.Equal(t, int64(1), sumInt(t, got["salesops_stock_oversold_total"]))
	assert.Equal(t, int64(1), sumInt(t, got["salesops_reservation_drift_total"], telemetry.AttrRepaired.Bool(true)))
	assert.Equal(t, int64(1), sumInt(t, got["salesops_document_numbers_degraded_total"],
		telemetry.AttrDocumentKind.String("quote")))

	hist, ok := got["salesops_document_total_amount"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(4), count)
}

type fixedStats struct {
	stats telemetry.LedgerStats
}

func (f fixedStats) LedgerStats(context.Context) (telemetry.LedgerStats, error) {
	return f.stats, nil
}

func TestSalesMetrics_CollectLedgerStats(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := telemetry.NewMeterProviderWithReader(reader)
	m, err := telemetry.NewSalesMetrics(mp.Meter("salesops"), fixedStats{telemetry.LedgerStats{
		ReservedQuantity:   12.5,
		ActiveReservations: 4,
		OversoldItems:      1,
		LowStockItems:      2,
	}}, nil)
	require.NoError(t, err)

	require.NoError(t, m.CollectLedgerStats(context.Background()))

	got := collect(t, reader)
	assert.Equal(t, int64(4), gaugeInt(t, got["salesops_active_reservations"]))
	assert.Equal(t, int64(1), gaugeInt(t, got["salesops_oversold_items"]))
	assert.Equal(t, int64(2), gaugeInt(t, got["salesops_low_stock_items"]))
	reserved, ok := got["salesops_reserved_quantity"].Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	assert.InDelta(t, 12.5, reserved.DataPoints[0].Value, 1e-9)
}

func TestSalesMetrics_PeriodicCollectionStops(t *testing.T) {
	m, err := telemetry.NewSalesMetrics(noop.NewMeterProvider().Meter("test"), fixedStats{}, nil)
	require.NoError(t, err)
	m.StartPeriodicCollection(context.Background(), 0)
	m.Stop()
	m.Stop()
}

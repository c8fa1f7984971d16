package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/erp/salesops/internal/domain/billing"
	"github.com/erp/salesops/internal/domain/inventory"
	"github.com/erp/salesops/internal/domain/numbering"
	"github.com/erp/salesops/internal/domain/sales"
	"github.com/erp/salesops/internal/domain/shared"
)

// ErrMeterNil is returned when no meter is supplied.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// LedgerStats is a point-in-time view of the reservation ledger
type LedgerStats struct {
	ReservedQuantity   float64
	ActiveReservations int64
	OversoldItems      int64
	LowStockItems      int64
}

// LedgerStatsProvider reads ledger aggregates for the periodic gauges
type LedgerStatsProvider interface {
	LedgerStats(ctx context.Context) (LedgerStats, error)
}

// SalesMetrics turns domain events into counters and samples ledger gauges.
// It is subscribed to the event bus as a regular handler.
type SalesMetrics struct {
	logger *zap.Logger

	quotesCreated      *Counter
	quoteTransitions   *Counter
	invoicesCreated    *Counter
	invoiceTransitions *Counter
	documentAmount     *Histogram
	reservationsMade   *Counter
	reservationsFreed  *Counter
	sagaRollbacks      *Counter
	numbersDegraded    *Counter
	stockOversold      *Counter
	ledgerDrift        *Counter

	reservedQuantity   *FloatGauge
	activeReservations *Gauge
	oversoldItems      *Gauge
	lowStockItems      *Gauge

	stats    LedgerStatsProvider
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSalesMetrics registers all instruments on the meter
func NewSalesMetrics(meter metric.Meter, stats LedgerStatsProvider, logger *zap.Logger) (*SalesMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &SalesMetrics{logger: logger, stats: stats, stopCh: make(chan struct{})}

	counters := []struct {
		dst              **Counter
		name, desc, unit string
	}{
		{&m.quotesCreated, "salesops_quotes_created_total", "Quotes created", "{quote}"},
		{&m.quoteTransitions, "salesops_quote_transitions_total", "Quote status transitions", "{transition}"},
		{&m.invoicesCreated, "salesops_invoices_created_total", "Invoices created", "{invoice}"},
		{&m.invoiceTransitions, "salesops_invoice_transitions_total", "Invoice status transitions", "{transition}"},
		{&m.reservationsMade, "salesops_reservations_created_total", "Reservations created", "{reservation}"},
		{&m.reservationsFreed, "salesops_reservations_released_total", "Reservations released", "{reservation}"},
		{&m.sagaRollbacks, "salesops_saga_rollbacks_total", "Quote operations rolled back by compensation", "{rollback}"},
		{&m.numbersDegraded, "salesops_document_numbers_degraded_total", "Documents numbered by the fallback generator", "{document}"},
		{&m.stockOversold, "salesops_stock_oversold_total", "Reservations that left an item oversold", "{event}"},
		{&m.ledgerDrift, "salesops_reservation_drift_total", "Items whose reserved counter drifted from active reservations", "{item}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(meter, c.name, c.desc, c.unit)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	var err error
	if m.documentAmount, err = NewHistogram(meter, HistogramOpts{
		Name:        "salesops_document_total_amount",
		Description: "Document totals at creation",
		Unit:        "{currency}",
		Boundaries:  []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
	}); err != nil {
		return nil, err
	}
	if m.reservedQuantity, err = NewFloatGauge(meter, "salesops_reserved_quantity", "Sum of qty_reserved across items", "{unit}"); err != nil {
		return nil, err
	}
	if m.activeReservations, err = NewGauge(meter, "salesops_active_reservations", "Active reservations", "{reservation}"); err != nil {
		return nil, err
	}
	if m.oversoldItems, err = NewGauge(meter, "salesops_oversold_items", "Items with qty_reserved above qty_available", "{item}"); err != nil {
		return nil, err
	}
	if m.lowStockItems, err = NewGauge(meter, "salesops_low_stock_items", "Items below their minimum stock", "{item}"); err != nil {
		return nil, err
	}
	return m, nil
}

// EventTypes lists the events the metrics handler consumes
func (m *SalesMetrics) EventTypes() []string {
	return []string{
		sales.EventTypeQuoteCreated,
		sales.EventTypeQuoteStatusChanged,
		sales.EventTypeQuoteRolledBack,
		billing.EventTypeInvoiceCreated,
		billing.EventTypeInvoiceStatusChanged,
		inventory.EventTypeReservationCreated,
		inventory.EventTypeReservationReleased,
		inventory.EventTypeStockOversold,
		inventory.EventTypeReservationDrift,
		numbering.EventTypeNumberDegraded,
	}
}

// Handle records one event. Unknown events are ignored.
func (m *SalesMetrics) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *sales.QuoteCreatedEvent:
		m.quotesCreated.Inc(ctx)
		m.documentAmount.Record(ctx, e.Total.InexactFloat64(), AttrDocumentKind.String(string(numbering.KindQuote)))
	case *sales.QuoteStatusChangedEvent:
		m.quoteTransitions.Inc(ctx, AttrFromStatus.String(string(e.From)), AttrToStatus.String(string(e.To)))
	case *sales.QuoteRolledBackEvent:
		m.sagaRollbacks.Inc(ctx, AttrOperation.String(e.Operation), AttrCompensated.Bool(e.Compensated))
	case *billing.InvoiceCreatedEvent:
		m.invoicesCreated.Inc(ctx, AttrFromQuote.Bool(e.QuoteID != nil))
		m.documentAmount.Record(ctx, e.Total.InexactFloat64(), AttrDocumentKind.String(string(numbering.KindInvoice)))
	case *billing.InvoiceStatusChangedEvent:
		m.invoiceTransitions.Inc(ctx, AttrFromStatus.String(string(e.From)), AttrToStatus.String(string(e.To)))
	case *inventory.ReservationCreatedEvent:
		m.reservationsMade.Inc(ctx)
	case *inventory.ReservationReleasedEvent:
		m.reservationsFreed.Inc(ctx)
	case *inventory.StockOversoldEvent:
		m.stockOversold.Inc(ctx)
	case *inventory.ReservationDriftEvent:
		m.ledgerDrift.Inc(ctx, AttrRepaired.Bool(e.Repaired))
	case *numbering.NumberDegradedEvent:
		m.numbersDegraded.Inc(ctx, AttrDocumentKind.String(string(e.Kind)))
	}
	return nil
}

// CollectLedgerStats samples the ledger gauges once
func (m *SalesMetrics) CollectLedgerStats(ctx context.Context) error {
	if m.stats == nil {
		return nil
	}
	s, err := m.stats.LedgerStats(ctx)
	if err != nil {
		return err
	}
	m.reservedQuantity.Record(ctx, s.ReservedQuantity)
	m.activeReservations.Record(ctx, s.ActiveReservations)
	m.oversoldItems.Record(ctx, s.OversoldItems)
	m.lowStockItems.Record(ctx, s.LowStockItems)
	return nil
}

// StartPeriodicCollection samples the ledger gauges every interval until Stop
func (m *SalesMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	if m.stats == nil {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if err := m.CollectLedgerStats(ctx); err != nil {
				m.logger.Warn("ledger stats collection failed", zap.Error(err))
			}
			select {
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop ends periodic collection
func (m *SalesMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
	})
}

var _ shared.EventHandler = (*SalesMetrics)(nil)

package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	appbilling "github.com/erp/salesops/internal/application/billing"
	appinventory "github.com/erp/salesops/internal/application/inventory"
)

const (
	OverdueSweepJobName = "invoice-overdue-sweep"
	ReconcileJobName    = "reservation-reconcile"
)

// OverdueMarker persists the overdue status of sent invoices past their due date
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, now time.Time) (*appbilling.OverdueSweepResult, error)
}

// Reconciler compares reservation counters against active reservations
type Reconciler interface {
	ReconcileAll(ctx context.Context, repair bool) ([]appinventory.DriftReport, error)
}

// OverdueSweepJob marks sent invoices past their due date as overdue
func OverdueSweepJob(marker OverdueMarker, interval time.Duration, logger *zap.Logger) Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Job{
		Name:     OverdueSweepJobName,
		Interval: interval,
		Run: func(ctx context.Context) error {
			result, err := marker.MarkOverdue(ctx, time.Now())
			if result != nil && result.Marked > 0 {
				logger.Info("Overdue invoices marked",
					zap.Int("checked", result.Checked),
					zap.Int("marked", result.Marked),
					zap.Int("skipped", result.Skipped),
				)
			}
			return err
		},
	}
}

// ReconcileJob checks every inventory item for reservation drift, repairing it when asked
func ReconcileJob(reconciler Reconciler, interval time.Duration, repair bool, logger *zap.Logger) Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Job{
		Name:     ReconcileJobName,
		Interval: interval,
		Run: func(ctx context.Context) error {
			drifted, err := reconciler.ReconcileAll(ctx, repair)
			if len(drifted) > 0 {
				logger.Warn("Reservation drift found",
					zap.Int("items", len(drifted)),
					zap.Bool("repair", repair),
				)
			}
			return err
		},
	}
}

package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormLedgerStatsProvider aggregates ledger gauges straight from the tables
type GormLedgerStatsProvider struct {
	db *gorm.DB
}

func NewGormLedgerStatsProvider(db *gorm.DB) *GormLedgerStatsProvider {
	return &GormLedgerStatsProvider{db: db}
}

// LedgerStats runs two aggregate queries that are not read in one snapshot.
func (p *GormLedgerStatsProvider) LedgerStats(ctx context.Context) (LedgerStats, error) {
	var stats LedgerStats
	db := p.db.WithContext(ctx)

	var items struct {
		Reserved float64
		Oversold int64
		LowStock int64
	}
	err := db.Table("inventory_items").
		Select(`COALESCE(SUM(qty_reserved), 0) AS reserved,
			COALESCE(SUM(CASE WHEN qty_reserved > qty_available THEN 1 ELSE 0 END), 0) AS oversold,
			COALESCE(SUM(CASE WHEN min_stock > 0 AND qty_available < min_stock THEN 1 ELSE 0 END), 0) AS low_stock`).
		Scan(&items).Error
	if err != nil {
		return stats, err
	}

	if err := db.Table("reservations").
		Where("status = ?", "active").
		Count(&stats.ActiveReservations).Error; err != nil {
		return stats, err
	}

	stats.ReservedQuantity = items.Reserved
	stats.OversoldItems = items.Oversold
	stats.LowStockItems = items.LowStock
	return stats, nil
}

var _ LedgerStatsProvider = (*GormLedgerStatsProvider)(nil)

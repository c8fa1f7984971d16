package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/erp/salesops/internal/domain/inventory"
	"github.com/erp/salesops/internal/domain/shared"
	"github.com/erp/salesops/internal/infrastructure/persistence/models"
)

// GormReservationRepository implements ReservationRepository using GORM
type GormReservationRepository struct {
	db *gorm.DB
}

// NewGormReservationRepository creates a new GormReservationRepository
func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *GormReservationRepository) WithTx(tx *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: tx}
}

// FindByID finds a reservation by ID
func (r *GormReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Reservation, error) {
	var model models.ReservationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByQuote returns every reservation of a quote, active or not
func (r *GormReservationRepository) FindByQuote(ctx context.Context, quoteID uuid.UUID) ([]inventory.Reservation, error) {
	return r.find(ctx, "quote_id = ?", quoteID)
}

// FindActiveByQuote returns active reservations of a quote
func (r *GormReservationRepository) FindActiveByQuote(ctx context.Context, quoteID uuid.UUID) ([]inventory.Reservation, error) {
	return r.find(ctx, "quote_id = ? AND status = ?", quoteID, inventory.ReservationStatusActive)
}

// FindActiveByItem returns active reservations held against an item
func (r *GormReservationRepository) FindActiveByItem(ctx context.Context, itemID uuid.UUID) ([]inventory.Reservation, error) {
	return r.find(ctx, "inventory_item_id = ? AND status = ?", itemID, inventory.ReservationStatusActive)
}

func (r *GormReservationRepository) find(ctx context.Context, where string, args ...any) ([]inventory.Reservation, error) {
	var rows []models.ReservationModel
	if err := r.db.WithContext(ctx).Where(where, args...).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]inventory.Reservation, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// SumActiveByItem sums the quantity of active reservations for an item
func (r *GormReservationRepository) SumActiveByItem(ctx context.Context, itemID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.ReservationModel{}).
		Select("COALESCE(SUM(quantity), 0) as total").
		Where("inventory_item_id = ? AND status = ?", itemID, inventory.ReservationStatusActive).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// CountActiveByItem counts active reservations for an item
func (r *GormReservationRepository) CountActiveByItem(ctx context.Context, itemID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ReservationModel{}).
		Where("inventory_item_id = ? AND status = ?", itemID, inventory.ReservationStatusActive).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Create inserts a reservation
func (r *GormReservationRepository) Create(ctx context.Context, res *inventory.Reservation) error {
	return r.db.WithContext(ctx).Create(models.ReservationModelFromDomain(res)).Error
}

// CancelIfActive flips an active reservation to cancelled.
// Concurrent callers race on the status guard; exactly one sees true.
func (r *GormReservationRepository) CancelIfActive(ctx context.Context, id uuid.UUID) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.ReservationModel{}).
		Where("id = ? AND status = ?", id, inventory.ReservationStatusActive).
		Updates(map[string]any{
			"status":       inventory.ReservationStatusCancelled,
			"cancelled_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Ensure GormReservationRepository implements ReservationRepository
var _ inventory.ReservationRepository = (*GormReservationRepository)(nil)

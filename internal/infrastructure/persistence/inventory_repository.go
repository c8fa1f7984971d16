package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/salesops/internal/domain/inventory"
	"github.com/erp/salesops/internal/domain/shared"
	"github.com/erp/salesops/internal/infrastructure/persistence/models"
)

// GormInventoryItemRepository implements InventoryItemRepository using GORM
type GormInventoryItemRepository struct {
	db *gorm.DB
}

// NewGormInventoryItemRepository creates a new GormInventoryItemRepository
func NewGormInventoryItemRepository(db *gorm.DB) *GormInventoryItemRepository {
	return &GormInventoryItemRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *GormInventoryItemRepository) WithTx(tx *gorm.DB) *GormInventoryItemRepository {
	return &GormInventoryItemRepository{db: tx}
}

// FindByID finds an inventory item by its ID
func (r *GormInventoryItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.InventoryItem, error) {
	var model models.InventoryItemModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindBySKU finds an inventory item by its SKU
func (r *GormInventoryItemRepository) FindBySKU(ctx context.Context, sku string) (*inventory.InventoryItem, error) {
	var model models.InventoryItemModel
	if err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists inventory items matching the filter
func (r *GormInventoryItemRepository) FindAll(ctx context.Context, filter shared.Filter) ([]inventory.InventoryItem, error) {
	var rows []models.InventoryItemModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.InventoryItemModel{}), filter)
	if err := paginate(query, filter, InventoryItemSortFields).Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]inventory.InventoryItem, len(rows))
	for i := range rows {
		items[i] = *rows[i].ToDomain()
	}
	return items, nil
}

// Count counts inventory items matching the filter
func (r *GormInventoryItemRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.InventoryItemModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListIDs returns every item ID, oldest first
func (r *GormInventoryItemRepository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&models.InventoryItemModel{}).
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Save inserts the item or updates its descriptive fields.
// Counters only move through the arithmetic updates below.
func (r *GormInventoryItemRepository) Save(ctx context.Context, item *inventory.InventoryItem) error {
	model := models.InventoryItemModelFromDomain(item)
	updates := clause.AssignmentColumns([]string{
		"sku", "name", "min_stock", "purchase_price", "sale_price", "updated_at",
	})
	updates = append(updates, clause.Assignment{
		Column: clause.Column{Name: "version"},
		Value:  gorm.Expr("inventory_items.version + 1"),
	})
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: updates,
	}).Create(model).Error
}

// Delete deletes an inventory item
func (r *GormInventoryItemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.InventoryItemModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ExistsBySKU checks if an item with the SKU exists
func (r *GormInventoryItemRepository) ExistsBySKU(ctx context.Context, sku string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.InventoryItemModel{}).
		Where("sku = ?", sku).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// AdjustAvailable adds delta to qty_available in a single guarded statement
func (r *GormInventoryItemRepository) AdjustAvailable(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	result := r.db.WithContext(ctx).Model(&models.InventoryItemModel{}).
		Where("id = ? AND qty_available + CAST(? AS NUMERIC) >= 0", id, delta).
		Updates(map[string]any{
			"qty_available": gorm.Expr("qty_available + CAST(? AS NUMERIC)", delta),
			"version":       gorm.Expr("version + 1"),
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.InventoryItemModel{}).
		Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return shared.ErrNotFound
	}
	return inventory.ErrNegativeStock
}

// IncrementReserved adds quantity to qty_reserved in a single statement
func (r *GormInventoryItemRepository) IncrementReserved(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) error {
	result := r.db.WithContext(ctx).Model(&models.InventoryItemModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"qty_reserved": gorm.Expr("qty_reserved + CAST(? AS NUMERIC)", quantity),
			"version":      gorm.Expr("version + 1"),
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// IncrementReservedIfAvailable adds quantity only while enough unreserved stock remains
func (r *GormInventoryItemRepository) IncrementReservedIfAvailable(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.InventoryItemModel{}).
		Where("id = ? AND qty_available - qty_reserved >= CAST(? AS NUMERIC)", id, quantity).
		Updates(map[string]any{
			"qty_reserved": gorm.Expr("qty_reserved + CAST(? AS NUMERIC)", quantity),
			"version":      gorm.Expr("version + 1"),
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// DecrementReservedFloor subtracts quantity from qty_reserved without going below zero
func (r *GormInventoryItemRepository) DecrementReservedFloor(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) error {
	result := r.db.WithContext(ctx).Model(&models.InventoryItemModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"qty_reserved": gorm.Expr(
				"CASE WHEN qty_reserved > CAST(? AS NUMERIC) THEN qty_reserved - CAST(? AS NUMERIC) ELSE 0 END",
				quantity, quantity),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// RecomputeReserved rewrites qty_reserved from the active reservations in one statement
func (r *GormInventoryItemRepository) RecomputeReserved(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&models.InventoryItemModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"qty_reserved": gorm.Expr(
				"(SELECT COALESCE(SUM(quantity), 0) FROM reservations WHERE inventory_item_id = inventory_items.id AND status = ?)",
				string(inventory.ReservationStatusActive)),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *GormInventoryItemRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		p := likePattern(filter.Search)
		query = query.Where("LOWER(sku) LIKE ? OR LOWER(name) LIKE ?", p, p)
	}
	for key, value := range filter.Filters {
		switch key {
		case "below_minimum":
			if value == true {
				query = query.Where("min_stock > 0 AND qty_available < min_stock")
			}
		case "oversold":
			if value == true {
				query = query.Where("qty_reserved > qty_available")
			}
		}
	}
	return query
}

// Ensure GormInventoryItemRepository implements InventoryItemRepository
var _ inventory.InventoryItemRepository = (*GormInventoryItemRepository)(nil)

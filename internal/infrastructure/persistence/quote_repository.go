package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/salesops/internal/domain/sales"
	"github.com/erp/salesops/internal/domain/shared"
	"github.com/erp/salesops/internal/infrastructure/persistence/models"
)

// GormQuoteRepository implements QuoteRepository using GORM
type GormQuoteRepository struct {
	db *gorm.DB
}

// NewGormQuoteRepository creates a new GormQuoteRepository
func NewGormQuoteRepository(db *gorm.DB) *GormQuoteRepository {
	return &GormQuoteRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *GormQuoteRepository) WithTx(tx *gorm.DB) *GormQuoteRepository {
	return &GormQuoteRepository{db: tx}
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func insertLines[T any](tx *gorm.DB, items []T) error {
	if len(items) == 0 {
		return nil
	}
	return tx.Create(&items).Error
}

// FindByID finds a quote with its line items
func (r *GormQuoteRepository) FindByID(ctx context.Context, id uuid.UUID) (*sales.Quote, error) {
	var model models.QuoteModel
	if err := r.db.WithContext(ctx).Preload("Items", orderedItems).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNumber finds a quote by its document number
func (r *GormQuoteRepository) FindByNumber(ctx context.Context, number string) (*sales.Quote, error) {
	var model models.QuoteModel
	if err := r.db.WithContext(ctx).Preload("Items", orderedItems).Where("number = ?", number).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists quotes with their line items
func (r *GormQuoteRepository) FindAll(ctx context.Context, filter shared.Filter) ([]sales.Quote, error) {
	var rows []models.QuoteModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.QuoteModel{}), filter)
	if err := paginate(query, filter, QuoteSortFields).Preload("Items", orderedItems).Find(&rows).Error; err != nil {
		return nil, err
	}
	quotes := make([]sales.Quote, len(rows))
	for i := range rows {
		quotes[i] = *rows[i].ToDomain()
	}
	return quotes, nil
}

// Count counts quotes matching the filter
func (r *GormQuoteRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.db.WithContext(ctx).Model(&models.QuoteModel{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Create inserts the quote header and its line items
func (r *GormQuoteRepository) Create(ctx context.Context, quote *sales.Quote) error {
	model := models.QuoteModelFromDomain(quote)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
			return err
		}
		return insertLines(tx, model.Items)
	})
}

// Update writes the editable header columns guarded by version and status,
// then replaces the line items. It bumps the stored version by one.
func (r *GormQuoteRepository) Update(ctx context.Context, quote *sales.Quote, expectedVersion int) error {
	model := models.QuoteModelFromDomain(quote)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.QuoteModel{}).
			Where("id = ? AND version = ? AND status IN ?", quote.ID, expectedVersion, sales.EditableQuoteStatuses).
			Updates(map[string]any{
				"valid_until": model.ValidUntil,
				"subtotal":    model.Subtotal,
				"discount":    model.Discount,
				"shipping":    model.Shipping,
				"tax_rate":    model.TaxRate,
				"tax_amount":  model.TaxAmount,
				"total":       model.Total,
				"notes":       model.Notes,
				"version":     expectedVersion + 1,
				"updated_at":  quote.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return NewGormQuoteRepository(tx).missingOrConflict(ctx, quote.ID)
		}
		if err := tx.Where("quote_id = ?", quote.ID).Delete(&models.QuoteItemModel{}).Error; err != nil {
			return err
		}
		if err := insertLines(tx, model.Items); err != nil {
			return err
		}
		quote.Version = expectedVersion + 1
		return nil
	})
}

// UpdateStatus writes the status columns only if the stored status still equals from
func (r *GormQuoteRepository) UpdateStatus(ctx context.Context, quote *sales.Quote, from sales.QuoteStatus) error {
	result := r.db.WithContext(ctx).Model(&models.QuoteModel{}).
		Where("id = ? AND status = ?", quote.ID, from).
		Updates(map[string]any{
			"status":     quote.Status,
			"sent_at":    quote.SentAt,
			"decided_at": quote.DecidedAt,
			"version":    quote.Version,
			"updated_at": quote.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}
	return r.missingOrConflict(ctx, quote.ID)
}

// DeleteWithLines removes the line items then the quote
func (r *GormQuoteRepository) DeleteWithLines(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quote_id = ?", id).Delete(&models.QuoteItemModel{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.QuoteModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// ExistsByNumber checks if a quote number is taken
func (r *GormQuoteRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.QuoteModel{}).Where("number = ?", number).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormQuoteRepository) missingOrConflict(ctx context.Context, id uuid.UUID) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.QuoteModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return shared.ErrNotFound
	}
	return shared.NewDomainError(shared.CodeConcurrencyConflict, "Quote was changed by another request")
}

func (r *GormQuoteRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		p := likePattern(filter.Search)
		query = query.Where("LOWER(number) LIKE ? OR LOWER(client_name) LIKE ?", p, p)
	}
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "client_id":
			query = query.Where("client_id = ?", value)
		case "created_by":
			query = query.Where("created_by = ?", value)
		}
	}
	return query
}

// Ensure GormQuoteRepository implements QuoteRepository
var _ sales.QuoteRepository = (*GormQuoteRepository)(nil)

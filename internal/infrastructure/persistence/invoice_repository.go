package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/salesops/internal/domain/billing"
	"github.com/erp/salesops/internal/domain/shared"
	"github.com/erp/salesops/internal/infrastructure/persistence/models"
)

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *GormInvoiceRepository) WithTx(tx *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: tx}
}

// FindByID finds an invoice with its line items
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).Preload("Items", orderedItems).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNumber finds an invoice by its document number
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, number string) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).Preload("Items", orderedItems).Where("number = ?", number).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByQuote returns the invoices generated from a quote
func (r *GormInvoiceRepository) FindByQuote(ctx context.Context, quoteID uuid.UUID) ([]billing.Invoice, error) {
	var rows []models.InvoiceModel
	if err := r.db.WithContext(ctx).Preload("Items", orderedItems).
		Where("quote_id = ?", quoteID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return invoicesToDomain(rows), nil
}

// FindAll lists invoices with their line items
func (r *GormInvoiceRepository) FindAll(ctx context.Context, filter shared.Filter) ([]billing.Invoice, error) {
	var rows []models.InvoiceModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.InvoiceModel{}), filter)
	if err := paginate(query, filter, InvoiceSortFields).Preload("Items", orderedItems).Find(&rows).Error; err != nil {
		return nil, err
	}
	return invoicesToDomain(rows), nil
}

// Count counts invoices matching the filter
func (r *GormInvoiceRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.db.WithContext(ctx).Model(&models.InvoiceModel{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindPastDue returns sent invoices due strictly before the given day, oldest due first
func (r *GormInvoiceRepository) FindPastDue(ctx context.Context, before time.Time, limit int) ([]billing.Invoice, error) {
	var rows []models.InvoiceModel
	query := r.db.WithContext(ctx).
		Where("status = ? AND due_date < ?", billing.InvoiceStatusSent, before).
		Order("due_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return invoicesToDomain(rows), nil
}

// Create inserts the invoice header and its line items
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
			return err
		}
		return insertLines(tx, model.Items)
	})
}

// Update writes the editable columns of an open invoice guarded by version,
// then replaces the line items. It bumps the stored version by one.
func (r *GormInvoiceRepository) Update(ctx context.Context, invoice *billing.Invoice, expectedVersion int) error {
	model := models.InvoiceModelFromDomain(invoice)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.InvoiceModel{}).
			Where("id = ? AND version = ? AND status IN ?", invoice.ID, expectedVersion, billing.OpenInvoiceStatuses).
			Updates(map[string]any{
				"due_date":   model.DueDate,
				"subtotal":   model.Subtotal,
				"tax_amount": model.TaxAmount,
				"total":      model.Total,
				"notes":      model.Notes,
				"version":    expectedVersion + 1,
				"updated_at": invoice.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return NewGormInvoiceRepository(tx).missingOrConflict(ctx, invoice.ID)
		}
		if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&models.InvoiceItemModel{}).Error; err != nil {
			return err
		}
		if err := insertLines(tx, model.Items); err != nil {
			return err
		}
		invoice.Version = expectedVersion + 1
		return nil
	})
}

// UpdateStatus writes the status columns only if the stored status still equals from
func (r *GormInvoiceRepository) UpdateStatus(ctx context.Context, invoice *billing.Invoice, from billing.InvoiceStatus) error {
	result := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("id = ? AND status = ?", invoice.ID, from).
		Updates(map[string]any{
			"status":       invoice.Status,
			"sent_at":      invoice.SentAt,
			"paid_at":      invoice.PaidAt,
			"cancelled_at": invoice.CancelledAt,
			"version":      invoice.Version,
			"updated_at":   invoice.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}
	return r.missingOrConflict(ctx, invoice.ID)
}

func (r *GormInvoiceRepository) missingOrConflict(ctx context.Context, id uuid.UUID) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return shared.ErrNotFound
	}
	return shared.NewDomainError(shared.CodeConcurrencyConflict, "Invoice was changed by another request")
}

// DetachQuote clears quote_id on every invoice referencing the quote
func (r *GormInvoiceRepository) DetachQuote(ctx context.Context, quoteID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("quote_id = ?", quoteID).
		Updates(map[string]any{
			"quote_id":   nil,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// DeleteWithLines removes the line items then the invoice
func (r *GormInvoiceRepository) DeleteWithLines(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", id).Delete(&models.InvoiceItemModel{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.InvoiceModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func (r *GormInvoiceRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
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
		case "quote_id":
			query = query.Where("quote_id = ?", value)
		case "due_before":
			query = query.Where("due_date < ?", value)
		}
	}
	return query
}

func invoicesToDomain(rows []models.InvoiceModel) []billing.Invoice {
	out := make([]billing.Invoice, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ billing.InvoiceRepository = (*GormInvoiceRepository)(nil)

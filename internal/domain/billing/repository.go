package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/erp/salesops/internal/domain/shared"
)

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	FindByNumber(ctx context.Context, number string) (*Invoice, error)
	FindByQuote(ctx context.Context, quoteID uuid.UUID) ([]Invoice, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Invoice, error)
	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// FindPastDue returns sent invoices whose due date is before the given day
	FindPastDue(ctx context.Context, before time.Time, limit int) ([]Invoice, error)

	// Create inserts a new invoice with its line items
	Create(ctx context.Context, invoice *Invoice) error

	// Update rewrites the editable columns and replaces the line items while
	// the stored version equals expectedVersion and the invoice is still open
	Update(ctx context.Context, invoice *Invoice, expectedVersion int) error

	// UpdateStatus writes only the status columns, guarded by the expected current status
	UpdateStatus(ctx context.Context, invoice *Invoice, from InvoiceStatus) error

	// DetachQuote sets quote_id to NULL on every invoice referencing the quote
	DetachQuote(ctx context.Context, quoteID uuid.UUID) (int64, error)

	// DeleteWithLines removes line items then the invoice
	DeleteWithLines(ctx context.Context, id uuid.UUID) error
}

package sales

import (
	"context"

	"github.com/google/uuid"

	"github.com/erp/salesops/internal/domain/shared"
)

// QuoteRepository defines the interface for quote persistence
type QuoteRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Quote, error)
	FindByNumber(ctx context.Context, number string) (*Quote, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Quote, error)
	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// Create inserts a new quote with its line items
	Create(ctx context.Context, quote *Quote) error

	// Update rewrites the editable columns and replaces the line items, only
	// while the stored version equals expectedVersion and the status is still
	// editable. A lost guard returns ErrNotFound or a concurrency conflict.
	Update(ctx context.Context, quote *Quote, expectedVersion int) error

	// UpdateStatus writes only the status columns, guarded by the expected current status
	UpdateStatus(ctx context.Context, quote *Quote, from QuoteStatus) error

	// DeleteWithLines removes line items then the quote
	DeleteWithLines(ctx context.Context, id uuid.UUID) error
	ExistsByNumber(ctx context.Context, number string) (bool, error)
}

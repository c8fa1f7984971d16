package sales

import (
	"context"

	appinv "github.com/erp/salesops/internal/application/inventory"
	"github.com/erp/salesops/internal/domain/billing"
	"github.com/erp/salesops/internal/domain/sales"
)

// TransactionScope runs quote operations that touch documents and the ledger
// in one database transaction.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories extends the ledger repositories with the document
// repositories, all bound to the same transaction.
type TransactionalRepositories interface {
	appinv.TransactionalRepositories
	// QuoteRepo returns the quote repository scoped to the current transaction
	QuoteRepo() sales.QuoteRepository
	// InvoiceRepo returns the invoice repository scoped to the current transaction
	InvoiceRepo() billing.InvoiceRepository
}

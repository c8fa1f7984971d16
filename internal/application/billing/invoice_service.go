package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appdoc "github.com/erp/salesops/internal/application/document"
	appnum "github.com/erp/salesops/internal/application/numbering"
	"github.com/erp/salesops/internal/domain/billing"
	"github.com/erp/salesops/internal/domain/numbering"
	"github.com/erp/salesops/internal/domain/partner"
	"github.com/erp/salesops/internal/domain/pricing"
	"github.com/erp/salesops/internal/domain/sales"
	"github.com/erp/salesops/internal/domain/shared"
)

const defaultOverdueBatchSize = 200

// InvoiceService handles the invoice lifecycle. It never touches the
// reservation ledger.
type InvoiceService struct {
	invoiceRepo    billing.InvoiceRepository
	quoteRepo      sales.QuoteRepository
	numbers        *appnum.Generator
	directory      partner.Directory
	eventPublisher shared.EventPublisher
	logger         *zap.Logger

	paymentTerm time.Duration
	taxRate     decimal.Decimal
	batchSize   int
	now         func() time.Time
}

// InvoiceServiceOption is a functional option for configuring the service
type InvoiceServiceOption func(*InvoiceService)

// WithPaymentTerm sets the default due-date gap for invoices created from scratch
func WithPaymentTerm(d time.Duration) InvoiceServiceOption {
	return func(s *InvoiceService) {
		if d > 0 {
			s.paymentTerm = d
		}
	}
}

// WithInvoiceTaxRate sets the tax rate of invoices created from scratch.
// Invoices created from a quote keep the quote's rate.
func WithInvoiceTaxRate(rate decimal.Decimal) InvoiceServiceOption {
	return func(s *InvoiceService) {
		s.taxRate = rate
	}
}

// WithOverdueBatchSize bounds how many invoices one sweep query loads
func WithOverdueBatchSize(n int) InvoiceServiceOption {
	return func(s *InvoiceService) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithInvoiceClock overrides the time source
func WithInvoiceClock(now func() time.Time) InvoiceServiceOption {
	return func(s *InvoiceService) {
		s.now = now
	}
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	invoiceRepo billing.InvoiceRepository,
	quoteRepo sales.QuoteRepository,
	numbers *appnum.Generator,
	directory partner.Directory,
	logger *zap.Logger,
	opts ...InvoiceServiceOption,
) *InvoiceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &InvoiceService{
		invoiceRepo: invoiceRepo,
		quoteRepo:   quoteRepo,
		numbers:     numbers,
		directory:   directory,
		logger:      logger,
		paymentTerm: billing.DefaultPaymentTerm,
		taxRate:     pricing.DefaultTaxRate,
		batchSize:   defaultOverdueBatchSize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *InvoiceService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// publishDomainEvents publishes and clears the invoice's pending events
func (s *InvoiceService) publishDomainEvents(ctx context.Context, inv *billing.Invoice) {
	events := inv.GetDomainEvents()
	if s.eventPublisher != nil && len(events) > 0 {
		_ = s.eventPublisher.Publish(ctx, events...)
	}
	inv.ClearDomainEvents()
}

// Create builds an invoice from scratch: no discount, no shipping, configured tax
func (s *InvoiceService) Create(ctx context.Context, req CreateInvoiceRequest, actorID *uuid.UUID) (*InvoiceResponse, error) {
	issue := s.now()
	if req.IssueDate != nil && !req.IssueDate.IsZero() {
		issue = *req.IssueDate
	}
	due := req.DueDate
	if due == nil {
		d := issue.Add(s.paymentTerm)
		due = &d
	}
	taxRate := s.taxRate
	inv, err := billing.NewInvoice(req.ClientID, appdoc.ToLineInputs(req.Items), billing.InvoiceParams{
		CreatedBy: actorID,
		IssueDate: &issue,
		DueDate:   due,
		Notes:     req.Notes,
		TaxRate:   &taxRate,
	})
	if err != nil {
		return nil, err
	}

	client, err := s.directory.FindClient(ctx, req.ClientID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.NewValidationError("client_id", "Client not found")
	}
	if err != nil {
		return nil, err
	}
	if !client.IsActive() {
		return nil, shared.NewValidationError("client_id", "Client is inactive")
	}
	inv.ClientName = client.DisplayName()

	if err := s.checkActor(ctx, actorID); err != nil {
		return nil, err
	}
	return s.persistNew(ctx, inv)
}

// CreateFromQuote snapshots an accepted quote into a new draft invoice due
// fourteen days after issue.
func (s *InvoiceService) CreateFromQuote(ctx context.Context, quoteID uuid.UUID, req CreateFromQuoteRequest, actorID *uuid.UUID) (*InvoiceResponse, error) {
	q, err := s.quoteRepo.FindByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if q.Status != sales.QuoteStatusAccepted {
		return nil, shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("Only accepted quotes can be invoiced, quote %s is %s", q.Number, q.Status))
	}
	if err := s.checkActor(ctx, actorID); err != nil {
		return nil, err
	}

	issue := s.now()
	if req.IssueDate != nil && !req.IssueDate.IsZero() {
		issue = *req.IssueDate
	}
	inv, err := billing.NewInvoiceFromQuote(billing.QuoteSnapshot{
		QuoteID:    q.ID,
		ClientID:   q.ClientID,
		ClientName: q.ClientName,
		Items:      q.Items,
		Notes:      q.Notes,
		Discount:   q.Discount,
		Shipping:   q.Shipping,
		TaxRate:    q.TaxRate,
	}, actorID, issue)
	if err != nil {
		return nil, err
	}
	return s.persistNew(ctx, inv)
}

func (s *InvoiceService) checkActor(ctx context.Context, actorID *uuid.UUID) error {
	if actorID == nil {
		return nil
	}
	_, err := s.directory.FindUser(ctx, *actorID)
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NewValidationError("created_by", "User not found")
	}
	return err
}

func (s *InvoiceService) persistNew(ctx context.Context, inv *billing.Invoice) (*InvoiceResponse, error) {
	n := s.numbers.NextNumber(ctx, numbering.KindInvoice, inv.IssueDate.Year())
	if err := inv.AssignNumber(n); err != nil {
		return nil, err
	}
	if !n.Sequential {
		inv.AddDomainEvent(numbering.NewNumberDegradedEvent(billing.AggregateTypeInvoice, inv.ID, n, n.Reason))
	}
	if err := s.invoiceRepo.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("save invoice: %w", err)
	}
	inv.MarkCreated()

	fields := []zap.Field{
		zap.String("invoice_id", inv.ID.String()),
		zap.String("number", inv.Number),
		zap.Bool("number_degraded", inv.NumberDegraded),
		zap.String("total", inv.Total.String()),
	}
	if inv.QuoteID != nil {
		fields = append(fields, zap.String("quote_id", inv.QuoteID.String()))
	}
	s.logger.Info("invoice created", fields...)
	s.publishDomainEvents(ctx, inv)

	resp := ToInvoiceResponse(inv, s.now())
	return &resp, nil
}

// GetByID retrieves an invoice with its lines
func (s *InvoiceService) GetByID(ctx context.Context, id uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(inv, s.now())
	return &resp, nil
}

// GetByNumber retrieves an invoice by its document number
func (s *InvoiceService) GetByNumber(ctx context.Context, number string) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(inv, s.now())
	return &resp, nil
}

// ForQuote lists the invoices created from a quote
func (s *InvoiceService) ForQuote(ctx context.Context, quoteID uuid.UUID) ([]InvoiceListItemResponse, error) {
	invoices, err := s.invoiceRepo.FindByQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	return ToInvoiceListItemResponses(invoices, s.now()), nil
}

// List lists invoices with filtering and pagination
func (s *InvoiceService) List(ctx context.Context, filter InvoiceListFilter) (*shared.Paginated[InvoiceListItemResponse], error) {
	f := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Search:   filter.Search,
		Filters:  make(map[string]interface{}),
	}
	if filter.Status != "" {
		f.Filters["status"] = filter.Status
	}
	if filter.ClientID != nil {
		f.Filters["client_id"] = *filter.ClientID
	}
	if filter.QuoteID != nil {
		f.Filters["quote_id"] = *filter.QuoteID
	}
	if filter.DueBefore != nil {
		f.Filters["due_before"] = *filter.DueBefore
	}
	f = f.Normalize()

	invoices, err := s.invoiceRepo.FindAll(ctx, f)
	if err != nil {
		return nil, err
	}
	total, err := s.invoiceRepo.Count(ctx, f)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(ToInvoiceListItemResponses(invoices, s.now()), total, f.Page, f.PageSize)
	return &page, nil
}

// Update applies a partial update to an open invoice. The write is guarded
// by the version read here, so a concurrent transition or delete wins.
func (s *InvoiceService) Update(ctx context.Context, id uuid.UUID, req UpdateInvoiceRequest) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inv.CanModify() {
		return nil, shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Cannot modify invoice in %s status", inv.Status))
	}
	expectedVersion := inv.Version

	if req.Items != nil {
		if err := inv.ReplaceItems(appdoc.ToLineInputs(*req.Items)); err != nil {
			return nil, err
		}
	}
	if req.DueDate != nil {
		if err := inv.SetDueDate(*req.DueDate); err != nil {
			return nil, err
		}
	}
	if req.Notes != nil {
		inv.SetNotes(*req.Notes)
	}

	if err := s.invoiceRepo.Update(ctx, inv, expectedVersion); err != nil {
		return nil, err
	}
	inv.AddDomainEvent(billing.NewInvoiceUpdatedEvent(inv))
	s.publishDomainEvents(ctx, inv)

	resp := ToInvoiceResponse(inv, s.now())
	return &resp, nil
}

// Transition moves the invoice along its status table
func (s *InvoiceService) Transition(ctx context.Context, id uuid.UUID, target billing.InvoiceStatus) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := inv.Status
	if err := inv.TransitionTo(target); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.UpdateStatus(ctx, inv, from); err != nil {
		return nil, err
	}
	s.publishDomainEvents(ctx, inv)

	resp := ToInvoiceResponse(inv, s.now())
	return &resp, nil
}

// Delete removes the invoice and its lines
func (s *InvoiceService) Delete(ctx context.Context, id uuid.UUID) error {
	inv, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.invoiceRepo.DeleteWithLines(ctx, id); err != nil {
		return err
	}
	s.logger.Info("invoice deleted",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("number", inv.Number),
	)
	inv.AddDomainEvent(billing.NewInvoiceDeletedEvent(inv))
	s.publishDomainEvents(ctx, inv)
	return nil
}

// MarkOverdue persists sent→overdue for every invoice due before today.
// An invoice whose status changed underneath the sweep is skipped.
func (s *InvoiceService) MarkOverdue(ctx context.Context, now time.Time) (*OverdueSweepResult, error) {
	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	result := &OverdueSweepResult{}

	for {
		batch, err := s.invoiceRepo.FindPastDue(ctx, today, s.batchSize)
		if err != nil {
			return result, fmt.Errorf("load past-due invoices: %w", err)
		}
		marked := 0
		for i := range batch {
			inv := &batch[i]
			result.Checked++
			if err := inv.TransitionTo(billing.InvoiceStatusOverdue); err != nil {
				result.Skipped++
				continue
			}
			err := s.invoiceRepo.UpdateStatus(ctx, inv, billing.InvoiceStatusSent)
			switch {
			case err == nil:
				marked++
				s.publishDomainEvents(ctx, inv)
			case errors.Is(err, shared.ErrConcurrencyConflict), errors.Is(err, shared.ErrNotFound):
				result.Skipped++
			default:
				result.Marked += marked
				return result, fmt.Errorf("mark invoice %s overdue: %w", inv.Number, err)
			}
		}
		result.Marked += marked
		if len(batch) < s.batchSize || marked == 0 {
			break
		}
	}

	if result.Marked > 0 {
		s.logger.Info("overdue invoices marked",
			zap.Int("marked", result.Marked),
			zap.Int("skipped", result.Skipped),
		)
	}
	return result, nil
}

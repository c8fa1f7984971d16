package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	appdoc "github.com/erp/salesops/internal/application/document"
	appinv "github.com/erp/salesops/internal/application/inventory"
	appnum "github.com/erp/salesops/internal/application/numbering"
	"github.com/erp/salesops/internal/domain/document"
	"github.com/erp/salesops/internal/domain/inventory"
	"github.com/erp/salesops/internal/domain/numbering"
	"github.com/erp/salesops/internal/domain/partner"
	"github.com/erp/salesops/internal/domain/pricing"
	"github.com/erp/salesops/internal/domain/sales"
	"github.com/erp/salesops/internal/domain/shared"
	"github.com/erp/salesops/internal/infrastructure/telemetry"
)

const (
	operationCreate = "quote creation"
	operationUpdate = "quote update"
)

// QuoteService coordinates the quote lifecycle with the reservation ledger.
type QuoteService struct {
	quoteRepo       sales.QuoteRepository
	itemRepo        inventory.InventoryItemRepository
	reservationRepo inventory.ReservationRepository
	scope           TransactionScope
	ledger          *appinv.ReservationLedger
	numbers         *appnum.Generator
	directory       partner.Directory
	eventPublisher  shared.EventPublisher
	logger          *zap.Logger

	defaultTaxRate decimal.Decimal
	validity       time.Duration
	now            func() time.Time
}

// QuoteServiceOption is a functional option for configuring the service
type QuoteServiceOption func(*QuoteService)

// WithDefaultTaxRate sets the tax rate applied when a request carries none
func WithDefaultTaxRate(rate decimal.Decimal) QuoteServiceOption {
	return func(s *QuoteService) {
		s.defaultTaxRate = rate
	}
}

// WithQuoteValidity sets how long a new quote stays valid
func WithQuoteValidity(d time.Duration) QuoteServiceOption {
	return func(s *QuoteService) {
		if d > 0 {
			s.validity = d
		}
	}
}

// WithQuoteClock overrides the time source
func WithQuoteClock(now func() time.Time) QuoteServiceOption {
	return func(s *QuoteService) {
		s.now = now
	}
}

// NewQuoteService creates a new QuoteService
func NewQuoteService(
	quoteRepo sales.QuoteRepository,
	itemRepo inventory.InventoryItemRepository,
	reservationRepo inventory.ReservationRepository,
	scope TransactionScope,
	ledger *appinv.ReservationLedger,
	numbers *appnum.Generator,
	directory partner.Directory,
	logger *zap.Logger,
	opts ...QuoteServiceOption,
) *QuoteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &QuoteService{
		quoteRepo:       quoteRepo,
		itemRepo:        itemRepo,
		reservationRepo: reservationRepo,
		scope:           scope,
		ledger:          ledger,
		numbers:         numbers,
		directory:       directory,
		logger:          logger,
		defaultTaxRate:  pricing.DefaultTaxRate,
		validity:        sales.DefaultValidity,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *QuoteService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *QuoteService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
}

// publishDomainEvents publishes and clears the quote's pending events
func (s *QuoteService) publishDomainEvents(ctx context.Context, q *sales.Quote) {
	s.publish(ctx, q.GetDomainEvents()...)
	q.ClearDomainEvents()
}

// Create validates and numbers the quote, reserves every inventory-backed
// line, then persists the quote. The quote is invisible to other requests
// until every reservation committed; a failure releases the reservations
// already made and nothing is stored.
func (s *QuoteService) Create(ctx context.Context, req CreateQuoteRequest, actorID *uuid.UUID) (_ *QuoteResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "quote", "create",
		telemetry.SpanAttrClientID, req.ClientID,
		telemetry.SpanAttrLineCount, len(req.Items),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	q, err := s.newQuote(ctx, req, actorID)
	if err != nil {
		return nil, err
	}

	n := s.numbers.NextNumber(ctx, numbering.KindQuote, s.now().Year())
	if err := q.AssignNumber(n); err != nil {
		return nil, err
	}
	if !n.Sequential {
		q.AddDomainEvent(numbering.NewNumberDegradedEvent(sales.AggregateTypeQuote, q.ID, n, n.Reason))
	}

	sg := newSaga(operationCreate, s.logger.With(zap.String("quote_id", q.ID.String())))
	for _, line := range q.InventoryLines() {
		lineID := line.ID
		if err := s.reserve(ctx, sg, q, *line.InventoryItemID, line.Quantity, &lineID); err != nil {
			return nil, s.rollback(ctx, sg, q.ID, fmt.Sprintf("reserve line %d", line.Position+1), err)
		}
	}
	if err := s.quoteRepo.Create(ctx, q); err != nil {
		if sg.empty() {
			return nil, fmt.Errorf("persist quote: %w", err)
		}
		return nil, s.rollback(ctx, sg, q.ID, "persist quote", err)
	}

	q.MarkCreated()
	telemetry.SetAttributes(span, telemetry.SpanAttrQuoteID, q.ID, telemetry.SpanAttrNumber, q.Number)
	s.logger.Info("quote created",
		zap.String("quote_id", q.ID.String()),
		zap.String("number", q.Number),
		zap.Bool("number_degraded", q.NumberDegraded),
		zap.Int("reserved_lines", len(q.InventoryLines())),
	)
	s.publishDomainEvents(ctx, q)

	resp := ToQuoteResponse(q, s.now())
	return &resp, nil
}

func (s *QuoteService) newQuote(ctx context.Context, req CreateQuoteRequest, actorID *uuid.UUID) (*sales.Quote, error) {
	taxRate := s.defaultTaxRate
	if req.TaxRate != nil {
		taxRate = *req.TaxRate
	}
	validUntil := req.ValidUntil
	if validUntil == nil {
		v := s.now().Add(s.validity)
		validUntil = &v
	}
	lines := appdoc.ToLineInputs(req.Items)
	q, err := sales.NewQuote(req.ClientID, lines, sales.QuoteParams{
		CreatedBy:  actorID,
		ValidUntil: validUntil,
		Discount:   req.Discount,
		Shipping:   req.Shipping,
		TaxRate:    &taxRate,
		Notes:      req.Notes,
	})
	if err != nil {
		return nil, err
	}

	client, err := s.lookupClient(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}
	q.ClientName = client.DisplayName()

	if err := s.checkActor(ctx, actorID); err != nil {
		return nil, err
	}
	if err := s.checkInventoryItems(ctx, lines); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *QuoteService) lookupClient(ctx context.Context, clientID uuid.UUID) (*partner.Client, error) {
	client, err := s.directory.FindClient(ctx, clientID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.NewValidationError("client_id", "Client not found")
	}
	if err != nil {
		return nil, err
	}
	if !client.IsActive() {
		return nil, shared.NewValidationError("client_id", "Client is inactive")
	}
	return client, nil
}

func (s *QuoteService) checkActor(ctx context.Context, actorID *uuid.UUID) error {
	if actorID == nil {
		return nil
	}
	_, err := s.directory.FindUser(ctx, *actorID)
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NewValidationError("created_by", "User not found")
	}
	return err
}

// checkInventoryItems rejects references to unknown items before any mutation
func (s *QuoteService) checkInventoryItems(ctx context.Context, lines []document.LineInput) error {
	for _, id := range appdoc.InventoryItemIDs(lines) {
		_, err := s.itemRepo.FindByID(ctx, id)
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewValidationError("items", fmt.Sprintf("Inventory item %s does not exist", id))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// reserve records one reservation and registers its release as compensation
func (s *QuoteService) reserve(ctx context.Context, sg *saga, q *sales.Quote, itemID uuid.UUID, qty decimal.Decimal, lineID *uuid.UUID) error {
	r, err := s.ledger.Reserve(ctx, appinv.ReserveRequest{
		ItemID:     itemID,
		QuoteID:    q.ID,
		ClientID:   q.ClientID,
		LineItemID: lineID,
		Quantity:   qty,
	})
	if err != nil {
		return err
	}
	sg.onFailure("release reservation "+r.ID.String(), func(ctx context.Context) error {
		_, err := s.ledger.ReleaseItem(ctx, r.ID)
		return err
	})
	return nil
}

func (s *QuoteService) rollback(ctx context.Context, sg *saga, quoteID uuid.UUID, step string, cause error) error {
	err := sg.fail(ctx, step, cause)
	var se *SagaError
	if errors.As(err, &se) {
		s.reportRollback(ctx, quoteID, se)
	}
	return err
}

func (s *QuoteService) reportRollback(ctx context.Context, quoteID uuid.UUID, se *SagaError) {
	telemetry.AddEvent(trace.SpanFromContext(ctx), "saga.rollback",
		telemetry.SpanAttrSagaStep, se.Step,
		telemetry.SpanAttrCompensated, se.Compensated,
	)
	s.publish(ctx, sales.NewQuoteRolledBackEvent(quoteID, se.Operation, se.Step, se.Compensated))
}

// GetByID retrieves a quote with its lines
func (s *QuoteService) GetByID(ctx context.Context, id uuid.UUID) (*QuoteResponse, error) {
	q, err := s.quoteRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToQuoteResponse(q, s.now())
	return &resp, nil
}

// GetByNumber retrieves a quote by its document number
func (s *QuoteService) GetByNumber(ctx context.Context, number string) (*QuoteResponse, error) {
	q, err := s.quoteRepo.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	resp := ToQuoteResponse(q, s.now())
	return &resp, nil
}

// List lists quotes with filtering and pagination
func (s *QuoteService) List(ctx context.Context, filter QuoteListFilter) (*shared.Paginated[QuoteListItemResponse], error) {
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
	f = f.Normalize()

	quotes, err := s.quoteRepo.FindAll(ctx, f)
	if err != nil {
		return nil, err
	}
	total, err := s.quoteRepo.Count(ctx, f)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(ToQuoteListItemResponses(quotes, s.now()), total, f.Page, f.PageSize)
	return &page, nil
}

// Update applies a partial update. The guarded header write and, when the
// items change, the per-item reservation adjustments run in one transaction,
// so a quote rejected, sent or deleted since it was read is left untouched.
func (s *QuoteService) Update(ctx context.Context, id uuid.UUID, req UpdateQuoteRequest) (_ *QuoteResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "quote", "update", telemetry.SpanAttrQuoteID, id)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	q, err := s.quoteRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !q.CanModify() {
		return nil, shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Cannot modify quote in %s status", q.Status))
	}
	expectedVersion := q.Version

	itemsChanged := req.Items != nil
	if itemsChanged {
		lines := appdoc.ToLineInputs(*req.Items)
		if err := s.checkInventoryItems(ctx, lines); err != nil {
			return nil, err
		}
		if err := q.ReplaceItems(lines); err != nil {
			return nil, err
		}
	}
	if req.Discount != nil || req.Shipping != nil {
		discount, shipping := q.Discount, q.Shipping
		if req.Discount != nil {
			discount = *req.Discount
		}
		if req.Shipping != nil {
			shipping = *req.Shipping
		}
		if err := q.SetAdjustments(discount, shipping); err != nil {
			return nil, err
		}
	}
	if req.TaxRate != nil {
		if err := q.SetTaxRate(*req.TaxRate); err != nil {
			return nil, err
		}
	}
	if req.ValidUntil != nil {
		if err := q.SetValidUntil(*req.ValidUntil); err != nil {
			return nil, err
		}
	}
	if req.Notes != nil {
		q.SetNotes(*req.Notes)
	}

	var changes reservationChanges
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.QuoteRepo().Update(ctx, q, expectedVersion); err != nil {
			return err
		}
		if !itemsChanged {
			return nil
		}
		return s.adjustReservations(ctx, repos, q, &changes)
	})
	var se *SagaError
	if errors.As(err, &se) {
		s.logger.Warn("quote update rolled back",
			zap.String("quote_id", q.ID.String()),
			zap.String("step", se.Step),
			zap.Error(se.Cause),
		)
		s.reportRollback(ctx, q.ID, se)
	}
	if err != nil {
		return nil, err
	}

	s.ledger.PublishReleased(ctx, changes.released)
	s.ledger.PublishReserved(ctx, changes.reserved)
	q.AddDomainEvent(sales.NewQuoteUpdatedEvent(q))
	s.publishDomainEvents(ctx, q)

	resp := ToQuoteResponse(q, s.now())
	return &resp, nil
}

// reservationChanges collects what an update committed, for publishing
type reservationChanges struct {
	reserved []inventory.Reservation
	released []inventory.Reservation
}

// adjustReservations brings the quote's active reservations in line with the
// inventory demand of its current lines. Per item: more demand reserves the
// difference; less demand releases the item's reservations and reserves the
// remainder. Items whose demand is unchanged are left alone. A failing step
// is returned as a SagaError; the surrounding transaction undoes the others.
func (s *QuoteService) adjustReservations(ctx context.Context, repos TransactionalRepositories, q *sales.Quote, changes *reservationChanges) error {
	failed := func(step string, err error) error {
		return &SagaError{Operation: operationUpdate, Step: step, Cause: err, Compensated: true}
	}

	active, err := repos.ReservationRepo().FindActiveByQuote(ctx, q.ID)
	if err != nil {
		return failed("load reservations", err)
	}

	held := make(map[uuid.UUID]decimal.Decimal)
	byItem := make(map[uuid.UUID][]inventory.Reservation)
	for _, r := range active {
		held[r.InventoryItemID] = held[r.InventoryItemID].Add(r.Quantity)
		byItem[r.InventoryItemID] = append(byItem[r.InventoryItemID], r)
	}

	demand := q.InventoryDemand()
	firstLine := make(map[uuid.UUID]*uuid.UUID)
	var order []uuid.UUID
	for _, line := range q.InventoryLines() {
		itemID := *line.InventoryItemID
		if _, ok := firstLine[itemID]; !ok {
			lineID := line.ID
			firstLine[itemID] = &lineID
			order = append(order, itemID)
		}
	}
	for _, r := range active {
		if _, ok := firstLine[r.InventoryItemID]; !ok {
			firstLine[r.InventoryItemID] = nil
			order = append(order, r.InventoryItemID)
		}
	}

	reserve := func(itemID uuid.UUID, qty decimal.Decimal) error {
		r, err := s.ledger.ReserveWith(ctx, repos, appinv.ReserveRequest{
			ItemID:     itemID,
			QuoteID:    q.ID,
			ClientID:   q.ClientID,
			LineItemID: firstLine[itemID],
			Quantity:   qty,
		})
		if err != nil {
			return failed("reserve item "+itemID.String(), err)
		}
		changes.reserved = append(changes.reserved, *r)
		return nil
	}

	for _, itemID := range order {
		want, have := demand[itemID], held[itemID]
		switch {
		case want.Equal(have):
			continue
		case want.GreaterThan(have):
			if err := reserve(itemID, want.Sub(have)); err != nil {
				return err
			}
		default:
			for i := range byItem[itemID] {
				r := byItem[itemID][i]
				released, err := s.ledger.ReleaseReservationWith(ctx, repos, &r)
				if err != nil {
					return failed("release reservation "+r.ID.String(), err)
				}
				if released {
					changes.released = append(changes.released, r)
				}
			}
			if want.IsPositive() {
				if err := reserve(itemID, want); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Transition moves the quote along its status table. Rejecting a quote
// releases its reservations in the same transaction as the status write,
// which comes first so a racing update or delete of the quote waits on it.
func (s *QuoteService) Transition(ctx context.Context, id uuid.UUID, target sales.QuoteStatus) (_ *QuoteResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "quote", "transition",
		telemetry.SpanAttrQuoteID, id,
		telemetry.SpanAttrStatus, string(target),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	q, err := s.quoteRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := q.Status
	if err := q.TransitionTo(target); err != nil {
		return nil, err
	}

	if target != sales.QuoteStatusRejected {
		if err := s.quoteRepo.UpdateStatus(ctx, q, from); err != nil {
			return nil, err
		}
		s.publishDomainEvents(ctx, q)
		resp := ToQuoteResponse(q, s.now())
		return &resp, nil
	}

	var released *appinv.ReleaseResult
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.QuoteRepo().UpdateStatus(ctx, q, from); err != nil {
			return err
		}
		var err error
		released, err = s.ledger.ReleaseWith(ctx, repos, q.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("quote rejected, reservations released",
		zap.String("quote_id", q.ID.String()),
		zap.Int("released", len(released.Released)),
		zap.String("total_released", released.TotalReleased.String()),
	)
	s.ledger.PublishReleased(ctx, released.Released)
	s.publishDomainEvents(ctx, q)

	resp := ToQuoteResponse(q, s.now())
	return &resp, nil
}

// Delete removes the quote with its lines, detaches its invoices and releases
// its reservations, all in one transaction.
func (s *QuoteService) Delete(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "quote", "delete", telemetry.SpanAttrQuoteID, id)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	q, err := s.quoteRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	var (
		detached int64
		released *appinv.ReleaseResult
	)
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.QuoteRepo().DeleteWithLines(ctx, q.ID); err != nil {
			return err
		}
		var err error
		detached, err = repos.InvoiceRepo().DetachQuote(ctx, q.ID)
		if err != nil {
			return fmt.Errorf("detach invoices: %w", err)
		}
		released, err = s.ledger.ReleaseWith(ctx, repos, q.ID)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("quote deleted",
		zap.String("quote_id", q.ID.String()),
		zap.String("number", q.Number),
		zap.Int64("detached_invoices", detached),
		zap.Int("released", len(released.Released)),
	)
	s.ledger.PublishReleased(ctx, released.Released)
	s.publish(ctx, sales.NewQuoteDeletedEvent(q, detached))
	return nil
}

// Duplicate creates a new draft quote with the same client, lines and
// adjustments. Reservations are made afresh.
func (s *QuoteService) Duplicate(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) (*QuoteResponse, error) {
	src, err := s.quoteRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	inputs := document.ToInputs(src.Items)
	items := make([]appdoc.LineItemInput, len(inputs))
	for i, in := range inputs {
		items[i] = appdoc.LineItemInput{
			Description:     in.Description,
			Quantity:        in.Quantity,
			UnitPrice:       in.UnitPrice,
			InventoryItemID: in.InventoryItemID,
		}
	}
	taxRate := src.TaxRate
	return s.Create(ctx, CreateQuoteRequest{
		ClientID: src.ClientID,
		Items:    items,
		Discount: src.Discount,
		Shipping: src.Shipping,
		TaxRate:  &taxRate,
		Notes:    src.Notes,
	}, actorID)
}

// Reservations lists every reservation of the quote, active and cancelled
func (s *QuoteService) Reservations(ctx context.Context, id uuid.UUID) ([]appinv.ReservationResponse, error) {
	if _, err := s.quoteRepo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	rs, err := s.reservationRepo.FindByQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	return appinv.ToReservationResponses(rs), nil
}

package sales

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/salesops/internal/domain/shared"
)

const AggregateTypeQuote = "Quote"

const (
	EventTypeQuoteCreated       = "QuoteCreated"
	EventTypeQuoteUpdated       = "QuoteUpdated"
	EventTypeQuoteStatusChanged = "QuoteStatusChanged"
	EventTypeQuoteDeleted       = "QuoteDeleted"
)

// QuoteCreatedEvent is raised once the quote and all its reservations committed
type QuoteCreatedEvent struct {
	shared.BaseDomainEvent
	QuoteID  uuid.UUID       `json:"quote_id"`
	Number   string          `json:"number"`
	ClientID uuid.UUID       `json:"client_id"`
	Total    decimal.Decimal `json:"total"`
}

func NewQuoteCreatedEvent(q *Quote) *QuoteCreatedEvent {
	return &QuoteCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeQuoteCreated, AggregateTypeQuote, q.ID),
		QuoteID:         q.ID,
		Number:          q.Number,
		ClientID:        q.ClientID,
		Total:           q.Total,
	}
}

// QuoteUpdatedEvent is raised after items or adjustments changed
type QuoteUpdatedEvent struct {
	shared.BaseDomainEvent
	QuoteID uuid.UUID       `json:"quote_id"`
	Total   decimal.Decimal `json:"total"`
}

func NewQuoteUpdatedEvent(q *Quote) *QuoteUpdatedEvent {
	return &QuoteUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeQuoteUpdated, AggregateTypeQuote, q.ID),
		QuoteID:         q.ID,
		Total:           q.Total,
	}
}

// QuoteStatusChangedEvent is raised on every status transition
type QuoteStatusChangedEvent struct {
	shared.BaseDomainEvent
	QuoteID uuid.UUID   `json:"quote_id"`
	From    QuoteStatus `json:"from"`
	To      QuoteStatus `json:"to"`
}

func NewQuoteStatusChangedEvent(q *Quote, from, to QuoteStatus) *QuoteStatusChangedEvent {
	return &QuoteStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeQuoteStatusChanged, AggregateTypeQuote, q.ID),
		QuoteID:         q.ID,
		From:            from,
		To:              to,
	}
}

// QuoteDeletedEvent is raised after the quote row is gone
type QuoteDeletedEvent struct {
	shared.BaseDomainEvent
	QuoteID          uuid.UUID `json:"quote_id"`
	Number           string    `json:"number"`
	DetachedInvoices int64     `json:"detached_invoices"`
}

func NewQuoteDeletedEvent(q *Quote, detached int64) *QuoteDeletedEvent {
	return &QuoteDeletedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeQuoteDeleted, AggregateTypeQuote, q.ID),
		QuoteID:          q.ID,
		Number:           q.Number,
		DetachedInvoices: detached,
	}
}

const EventTypeQuoteRolledBack = "QuoteOperationRolledBack"

// QuoteRolledBackEvent is raised when a multi-step quote operation failed and
// its committed steps were compensated
type QuoteRolledBackEvent struct {
	shared.BaseDomainEvent
	QuoteID     uuid.UUID `json:"quote_id"`
	Operation   string    `json:"operation"`
	Step        string    `json:"step"`
	Compensated bool      `json:"compensated"`
}

func NewQuoteRolledBackEvent(quoteID uuid.UUID, operation, step string, compensated bool) *QuoteRolledBackEvent {
	return &QuoteRolledBackEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeQuoteRolledBack, AggregateTypeQuote, quoteID),
		QuoteID:         quoteID,
		Operation:       operation,
		Step:            step,
		Compensated:     compensated,
	}
}

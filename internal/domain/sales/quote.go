package sales

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/salesops/internal/domain/document"
	"github.com/erp/salesops/internal/domain/numbering"
	"github.com/erp/salesops/internal/domain/pricing"
	"github.com/erp/salesops/internal/domain/shared"
)

// QuoteStatus represents the status of a quote
type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "draft"
	QuoteStatusSent     QuoteStatus = "sent"
	QuoteStatusAccepted QuoteStatus = "accepted"
	QuoteStatusRejected QuoteStatus = "rejected"
)

// quoteTransitions is the only place quote status moves are defined
var quoteTransitions = document.Transitions[QuoteStatus]{
	QuoteStatusDraft: {QuoteStatusSent},
	QuoteStatusSent:  {QuoteStatusAccepted, QuoteStatusRejected},
}

func (s QuoteStatus) IsValid() bool {
	switch s {
	case QuoteStatusDraft, QuoteStatusSent, QuoteStatusAccepted, QuoteStatusRejected:
		return true
	}
	return false
}

func (s QuoteStatus) String() string {
	return string(s)
}

// CanTransitionTo checks the transition table
func (s QuoteStatus) CanTransitionTo(target QuoteStatus) bool {
	return quoteTransitions.Allows(s, target)
}

// IsTerminal reports whether the status admits no further transition
func (s QuoteStatus) IsTerminal() bool {
	return quoteTransitions.IsTerminal(s)
}

// DefaultValidity is how long a quote stays valid when no date is given
const DefaultValidity = 30 * 24 * time.Hour

// Quote is the aggregate root for commercial proposals
type Quote struct {
	shared.BaseAggregateRoot
	Number         string
	NumberDegraded bool
	ClientID       uuid.UUID
	ClientName     string
	CreatedBy      *uuid.UUID
	Status         QuoteStatus
	ValidUntil     time.Time
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	Shipping       decimal.Decimal
	TaxRate        decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
	Notes          string
	Items          []document.LineItem
	SentAt         *time.Time
	DecidedAt      *time.Time
}

// QuoteParams carries the optional inputs of NewQuote
type QuoteParams struct {
	ClientName string
	CreatedBy  *uuid.UUID
	ValidUntil *time.Time
	Discount   decimal.Decimal
	Shipping   decimal.Decimal
	TaxRate    *decimal.Decimal
	Notes      string
}

// NewQuote validates inputs and builds a draft quote with computed totals.
// The quote has no number until AssignNumber is called.
func NewQuote(clientID uuid.UUID, items []document.LineInput, p QuoteParams) (*Quote, error) {
	if clientID == uuid.Nil {
		return nil, shared.NewValidationError("client_id", "Client is required")
	}
	if err := validateAdjustments(p.Discount, p.Shipping); err != nil {
		return nil, err
	}
	taxRate := pricing.DefaultTaxRate
	if p.TaxRate != nil {
		if err := validateTaxRate(*p.TaxRate); err != nil {
			return nil, err
		}
		taxRate = *p.TaxRate
	}

	q := &Quote{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ClientID:          clientID,
		ClientName:        strings.TrimSpace(p.ClientName),
		CreatedBy:         p.CreatedBy,
		Status:            QuoteStatusDraft,
		Discount:          p.Discount,
		Shipping:          p.Shipping,
		TaxRate:           taxRate,
		Notes:             p.Notes,
	}
	lines, err := document.BuildLines(q.ID, items)
	if err != nil {
		return nil, err
	}
	q.Items = lines
	if p.ValidUntil != nil {
		q.ValidUntil = *p.ValidUntil
	} else {
		q.ValidUntil = q.CreatedAt.Add(DefaultValidity)
	}
	q.Recalculate()
	return q, nil
}

// AssignNumber sets the document number once
func (q *Quote) AssignNumber(n numbering.Number) error {
	if q.Number != "" {
		return shared.NewDomainError(shared.CodeInvalidState, "Quote already has a number")
	}
	q.Number = n.Value
	q.NumberDegraded = !n.Sequential
	return nil
}

// MarkCreated records the creation event after persistence
func (q *Quote) MarkCreated() {
	q.AddDomainEvent(NewQuoteCreatedEvent(q))
}

// Recalculate derives all money fields from lines and adjustments
func (q *Quote) Recalculate() {
	t := pricing.Calculate(pricing.Input{
		Lines:    document.PricingLines(q.Items),
		Discount: q.Discount,
		Shipping: q.Shipping,
		TaxRate:  q.TaxRate,
	})
	q.Subtotal = t.Subtotal
	q.TaxAmount = t.TaxAmount
	q.Total = t.Total
}

// EditableQuoteStatuses are the statuses in which a quote accepts edits
var EditableQuoteStatuses = []QuoteStatus{QuoteStatusDraft, QuoteStatusSent}

// CanModify reports whether line items may still be edited
func (q *Quote) CanModify() bool {
	return slices.Contains(EditableQuoteStatuses, q.Status)
}

// ReplaceItems swaps the full line-item set and recomputes totals
func (q *Quote) ReplaceItems(items []document.LineInput) error {
	if !q.CanModify() {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Cannot modify quote in %s status", q.Status))
	}
	lines, err := document.BuildLines(q.ID, items)
	if err != nil {
		return err
	}
	q.Items = lines
	q.Recalculate()
	q.IncrementVersion()
	return nil
}

// SetAdjustments sets discount and shipping and recomputes totals
func (q *Quote) SetAdjustments(discount, shipping decimal.Decimal) error {
	if !q.CanModify() {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Cannot modify quote in %s status", q.Status))
	}
	if err := validateAdjustments(discount, shipping); err != nil {
		return err
	}
	q.Discount = discount
	q.Shipping = shipping
	q.Recalculate()
	q.IncrementVersion()
	return nil
}

// SetTaxRate overrides the tax percentage
func (q *Quote) SetTaxRate(rate decimal.Decimal) error {
	if !q.CanModify() {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Cannot modify quote in %s status", q.Status))
	}
	if err := validateTaxRate(rate); err != nil {
		return err
	}
	q.TaxRate = rate
	q.Recalculate()
	q.IncrementVersion()
	return nil
}

func (q *Quote) SetNotes(notes string) {
	q.Notes = notes
	q.Touch()
}

func (q *Quote) SetValidUntil(t time.Time) error {
	if t.IsZero() {
		return shared.NewValidationError("valid_until", "Validity date is required")
	}
	q.ValidUntil = t
	q.Touch()
	return nil
}

// IsExpired reports whether an undecided quote is past its validity date
func (q *Quote) IsExpired(now time.Time) bool {
	return !q.Status.IsTerminal() && now.After(q.ValidUntil)
}

// TransitionTo moves the quote along the transition table
func (q *Quote) TransitionTo(target QuoteStatus) error {
	if !target.IsValid() {
		return shared.NewValidationError("status", fmt.Sprintf("unknown quote status %q", target))
	}
	if !q.Status.CanTransitionTo(target) {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("Cannot move quote from %s to %s", q.Status, target))
	}
	from := q.Status
	now := time.Now()
	q.Status = target
	switch target {
	case QuoteStatusSent:
		q.SentAt = &now
	case QuoteStatusAccepted, QuoteStatusRejected:
		q.DecidedAt = &now
	}
	q.IncrementVersion()
	q.AddDomainEvent(NewQuoteStatusChangedEvent(q, from, target))
	return nil
}

// InventoryDemand returns the quantity of each inventory item the quote references
func (q *Quote) InventoryDemand() map[uuid.UUID]decimal.Decimal {
	return document.InventoryDemand(q.Items)
}

// InventoryLines returns the lines bound to an inventory item, in order
func (q *Quote) InventoryLines() []document.LineItem {
	out := make([]document.LineItem, 0, len(q.Items))
	for _, l := range q.Items {
		if l.InventoryItemID != nil {
			out = append(out, l)
		}
	}
	return out
}

func validateAdjustments(discount, shipping decimal.Decimal) error {
	if discount.IsNegative() {
		return shared.NewValidationError("discount", "Discount cannot be negative")
	}
	if shipping.IsNegative() {
		return shared.NewValidationError("shipping", "Shipping cannot be negative")
	}
	return nil
}

func validateTaxRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return shared.NewValidationError("tax_rate", "Tax rate must be between 0 and 100")
	}
	return nil
}

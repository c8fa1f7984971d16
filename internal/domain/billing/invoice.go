// Package billing models invoices. Invoices never reserve stock.
package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/salesops/internal/domain/document"
	"github.com/erp/salesops/internal/domain/numbering"
	"github.com/erp/salesops/internal/domain/pricing"
	"github.com/erp/salesops/internal/domain/shared"
)

// InvoiceStatus represents the status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

var invoiceTransitions = document.Transitions[InvoiceStatus]{
	InvoiceStatusDraft:   {InvoiceStatusSent, InvoiceStatusCancelled},
	InvoiceStatusSent:    {InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled},
	InvoiceStatusOverdue: {InvoiceStatusPaid, InvoiceStatusCancelled},
}

func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

func (s InvoiceStatus) String() string {
	return string(s)
}

func (s InvoiceStatus) CanTransitionTo(target InvoiceStatus) bool {
	return invoiceTransitions.Allows(s, target)
}

func (s InvoiceStatus) IsTerminal() bool {
	return invoiceTransitions.IsTerminal(s)
}

// OpenInvoiceStatuses are the non-terminal statuses, the ones that accept edits
var OpenInvoiceStatuses = []InvoiceStatus{InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusOverdue}

// DefaultPaymentTerm is the gap between issue and due date
const DefaultPaymentTerm = 14 * 24 * time.Hour

// Invoice is the aggregate root for billing documents.
// Discount and Shipping are zero unless snapshotted from a quote.
type Invoice struct {
	shared.BaseAggregateRoot
	Number         string
	NumberDegraded bool
	ClientID       uuid.UUID
	ClientName     string
	QuoteID        *uuid.UUID
	CreatedBy      *uuid.UUID
	Status         InvoiceStatus
	IssueDate      time.Time
	DueDate        time.Time
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	Shipping       decimal.Decimal
	TaxRate        decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
	Notes          string
	Items          []document.LineItem
	SentAt         *time.Time
	PaidAt         *time.Time
	CancelledAt    *time.Time
}

// InvoiceParams carries the optional inputs of NewInvoice
type InvoiceParams struct {
	ClientName string
	CreatedBy  *uuid.UUID
	IssueDate  *time.Time
	DueDate    *time.Time
	Notes      string
	// TaxRate overrides pricing.DefaultTaxRate for invoices built from scratch
	TaxRate *decimal.Decimal
}

// NewInvoice builds a draft invoice from scratch: no discount, no shipping and
// the default tax rate unless p.TaxRate is set
func NewInvoice(clientID uuid.UUID, items []document.LineInput, p InvoiceParams) (*Invoice, error) {
	if clientID == uuid.Nil {
		return nil, shared.NewValidationError("client_id", "Client is required")
	}
	if p.TaxRate != nil && (p.TaxRate.IsNegative() || p.TaxRate.GreaterThan(decimal.NewFromInt(100))) {
		return nil, shared.NewValidationError("tax_rate", "Tax rate must be between 0 and 100")
	}
	inv := newInvoice(clientID, p)
	lines, err := document.BuildLines(inv.ID, items)
	if err != nil {
		return nil, err
	}
	inv.Items = lines
	if err := inv.setDates(p.IssueDate, p.DueDate); err != nil {
		return nil, err
	}
	inv.Recalculate()
	return inv, nil
}

// QuoteSnapshot is the part of a quote an invoice copies
type QuoteSnapshot struct {
	QuoteID    uuid.UUID
	ClientID   uuid.UUID
	ClientName string
	Items      []document.LineItem
	Notes      string
	Discount   decimal.Decimal
	Shipping   decimal.Decimal
	TaxRate    decimal.Decimal
}

// NewInvoiceFromQuote copies lines and financials from an accepted quote.
// The due date is always issue date + 14 days.
func NewInvoiceFromQuote(snap QuoteSnapshot, createdBy *uuid.UUID, issueDate time.Time) (*Invoice, error) {
	if snap.ClientID == uuid.Nil {
		return nil, shared.NewValidationError("client_id", "Client is required")
	}
	if len(snap.Items) == 0 {
		return nil, shared.NewValidationError("items", "At least one line item is required")
	}
	inv := newInvoice(snap.ClientID, InvoiceParams{ClientName: snap.ClientName, CreatedBy: createdBy, Notes: snap.Notes})
	quoteID := snap.QuoteID
	inv.QuoteID = &quoteID
	inv.Items = document.CopyLines(inv.ID, snap.Items)
	inv.Discount = snap.Discount
	inv.Shipping = snap.Shipping
	inv.TaxRate = snap.TaxRate
	if issueDate.IsZero() {
		issueDate = time.Now()
	}
	inv.IssueDate = truncateDay(issueDate)
	inv.DueDate = inv.IssueDate.Add(DefaultPaymentTerm)
	inv.Recalculate()
	return inv, nil
}

func newInvoice(clientID uuid.UUID, p InvoiceParams) *Invoice {
	taxRate := pricing.DefaultTaxRate
	if p.TaxRate != nil {
		taxRate = *p.TaxRate
	}
	return &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ClientID:          clientID,
		ClientName:        strings.TrimSpace(p.ClientName),
		CreatedBy:         p.CreatedBy,
		Status:            InvoiceStatusDraft,
		Discount:          decimal.Zero,
		Shipping:          decimal.Zero,
		TaxRate:           taxRate,
		Notes:             p.Notes,
	}
}

func (i *Invoice) setDates(issue, due *time.Time) error {
	i.IssueDate = truncateDay(time.Now())
	if issue != nil && !issue.IsZero() {
		i.IssueDate = truncateDay(*issue)
	}
	i.DueDate = i.IssueDate.Add(DefaultPaymentTerm)
	if due != nil && !due.IsZero() {
		d := truncateDay(*due)
		if d.Before(i.IssueDate) {
			return shared.NewValidationError("due_date", "Due date cannot be before issue date")
		}
		i.DueDate = d
	}
	return nil
}

// AssignNumber sets the document number once
func (i *Invoice) AssignNumber(n numbering.Number) error {
	if i.Number != "" {
		return shared.NewDomainError(shared.CodeInvalidState, "Invoice already has a number")
	}
	i.Number = n.Value
	i.NumberDegraded = !n.Sequential
	return nil
}

// MarkCreated records the creation event after persistence
func (i *Invoice) MarkCreated() {
	i.AddDomainEvent(NewInvoiceCreatedEvent(i))
}

// Recalculate derives money fields from lines and stored adjustments
func (i *Invoice) Recalculate() {
	t := pricing.Calculate(pricing.Input{
		Lines:    document.PricingLines(i.Items),
		Discount: i.Discount,
		Shipping: i.Shipping,
		TaxRate:  i.TaxRate,
	})
	i.Subtotal = t.Subtotal
	i.TaxAmount = t.TaxAmount
	i.Total = t.Total
}

// CanModify reports whether the invoice is still open for edits
func (i *Invoice) CanModify() bool {
	return !i.Status.IsTerminal()
}

// ReplaceItems swaps the full line-item set and recomputes totals
func (i *Invoice) ReplaceItems(items []document.LineInput) error {
	if !i.CanModify() {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Cannot modify invoice in %s status", i.Status))
	}
	lines, err := document.BuildLines(i.ID, items)
	if err != nil {
		return err
	}
	i.Items = lines
	i.Recalculate()
	i.IncrementVersion()
	return nil
}

// SetDueDate changes the due date of an open invoice
func (i *Invoice) SetDueDate(due time.Time) error {
	if !i.CanModify() {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Cannot modify invoice in %s status", i.Status))
	}
	d := truncateDay(due)
	if d.Before(i.IssueDate) {
		return shared.NewValidationError("due_date", "Due date cannot be before issue date")
	}
	i.DueDate = d
	i.Touch()
	return nil
}

func (i *Invoice) SetNotes(notes string) {
	i.Notes = notes
	i.Touch()
}

// DetachQuote clears the origin reference
func (i *Invoice) DetachQuote() {
	i.QuoteID = nil
	i.Touch()
}

// IsOverdue reports whether a sent invoice is past its due date
func (i *Invoice) IsOverdue(now time.Time) bool {
	return i.Status == InvoiceStatusSent && now.After(i.DueDate.Add(24*time.Hour-time.Nanosecond))
}

// EffectiveStatus is the status to display: sent and past due reads as overdue
func (i *Invoice) EffectiveStatus(now time.Time) InvoiceStatus {
	if i.IsOverdue(now) {
		return InvoiceStatusOverdue
	}
	return i.Status
}

// TransitionTo moves the invoice along the transition table
func (i *Invoice) TransitionTo(target InvoiceStatus) error {
	if !target.IsValid() {
		return shared.NewValidationError("status", fmt.Sprintf("unknown invoice status %q", target))
	}
	if !i.Status.CanTransitionTo(target) {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("Cannot move invoice from %s to %s", i.Status, target))
	}
	from := i.Status
	now := time.Now()
	i.Status = target
	switch target {
	case InvoiceStatusSent:
		i.SentAt = &now
	case InvoiceStatusPaid:
		i.PaidAt = &now
	case InvoiceStatusCancelled:
		i.CancelledAt = &now
	}
	i.IncrementVersion()
	i.AddDomainEvent(NewInvoiceStatusChangedEvent(i, from, target))
	return nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	appdoc "github.com/erp/salesops/internal/application/document"
	"github.com/erp/salesops/internal/domain/billing"
)

// CreateInvoiceRequest represents a request to create an invoice from scratch
type CreateInvoiceRequest struct {
	ClientID  uuid.UUID              `json:"client_id" binding:"required"`
	Items     []appdoc.LineItemInput `json:"items" binding:"required,min=1,dive"`
	IssueDate *time.Time             `json:"issue_date"`
	DueDate   *time.Time             `json:"due_date"`
	Notes     string                 `json:"notes" binding:"max=2000"`
}

// CreateFromQuoteRequest carries the optional issue date of an invoice built from a quote
type CreateFromQuoteRequest struct {
	IssueDate *time.Time `json:"issue_date"`
}

// UpdateInvoiceRequest represents a partial invoice update.
// Items, when present, replace the full line set.
type UpdateInvoiceRequest struct {
	Items   *[]appdoc.LineItemInput `json:"items" binding:"omitempty,min=1,dive"`
	DueDate *time.Time              `json:"due_date"`
	Notes   *string                 `json:"notes" binding:"omitempty,max=2000"`
}

// TransitionInvoiceRequest represents a status change
type TransitionInvoiceRequest struct {
	Status string `json:"status" binding:"required,oneof=draft sent paid overdue cancelled"`
}

// InvoiceListFilter represents filter options for invoice list
type InvoiceListFilter struct {
	Search    string     `form:"search"`
	Status    string     `form:"status" binding:"omitempty,oneof=draft sent paid overdue cancelled"`
	ClientID  *uuid.UUID `form:"-"`
	QuoteID   *uuid.UUID `form:"-"`
	DueBefore *time.Time `form:"due_before" time_format:"2006-01-02"`
	Page      int        `form:"page" binding:"omitempty,min=1"`
	PageSize  int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy   string     `form:"order_by"`
	OrderDir  string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// InvoiceResponse represents an invoice in API responses.
// EffectiveStatus reads overdue for a sent invoice past its due date even
// before the sweep has persisted it.
type InvoiceResponse struct {
	ID              uuid.UUID                 `json:"id"`
	Number          string                    `json:"number"`
	NumberDegraded  bool                      `json:"number_degraded"`
	ClientID        uuid.UUID                 `json:"client_id"`
	ClientName      string                    `json:"client_name"`
	QuoteID         *uuid.UUID                `json:"quote_id,omitempty"`
	CreatedBy       *uuid.UUID                `json:"created_by,omitempty"`
	Status          string                    `json:"status"`
	EffectiveStatus string                    `json:"effective_status"`
	IssueDate       time.Time                 `json:"issue_date"`
	DueDate         time.Time                 `json:"due_date"`
	Subtotal        decimal.Decimal           `json:"subtotal"`
	Discount        decimal.Decimal           `json:"discount"`
	Shipping        decimal.Decimal           `json:"shipping"`
	TaxRate         decimal.Decimal           `json:"tax_rate"`
	TaxAmount       decimal.Decimal           `json:"tax_amount"`
	Total           decimal.Decimal           `json:"total"`
	Notes           string                    `json:"notes,omitempty"`
	Items           []appdoc.LineItemResponse `json:"items"`
	SentAt          *time.Time                `json:"sent_at,omitempty"`
	PaidAt          *time.Time                `json:"paid_at,omitempty"`
	CancelledAt     *time.Time                `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
	UpdatedAt       time.Time                 `json:"updated_at"`
	Version         int                       `json:"version"`
}

// InvoiceListItemResponse is the list projection of an invoice
type InvoiceListItemResponse struct {
	ID              uuid.UUID       `json:"id"`
	Number          string          `json:"number"`
	ClientID        uuid.UUID       `json:"client_id"`
	ClientName      string          `json:"client_name"`
	QuoteID         *uuid.UUID      `json:"quote_id,omitempty"`
	Status          string          `json:"status"`
	EffectiveStatus string          `json:"effective_status"`
	IssueDate       time.Time       `json:"issue_date"`
	DueDate         time.Time       `json:"due_date"`
	Total           decimal.Decimal `json:"total"`
}

// OverdueSweepResult summarizes one MarkOverdue run
type OverdueSweepResult struct {
	Checked int `json:"checked"`
	Marked  int `json:"marked"`
	Skipped int `json:"skipped"`
}

// ToInvoiceResponse converts a domain invoice to a response DTO
func ToInvoiceResponse(inv *billing.Invoice, now time.Time) InvoiceResponse {
	return InvoiceResponse{
		ID:              inv.ID,
		Number:          inv.Number,
		NumberDegraded:  inv.NumberDegraded,
		ClientID:        inv.ClientID,
		ClientName:      inv.ClientName,
		QuoteID:         inv.QuoteID,
		CreatedBy:       inv.CreatedBy,
		Status:          inv.Status.String(),
		EffectiveStatus: inv.EffectiveStatus(now).String(),
		IssueDate:       inv.IssueDate,
		DueDate:         inv.DueDate,
		Subtotal:        inv.Subtotal,
		Discount:        inv.Discount,
		Shipping:        inv.Shipping,
		TaxRate:         inv.TaxRate,
		TaxAmount:       inv.TaxAmount,
		Total:           inv.Total,
		Notes:           inv.Notes,
		Items:           appdoc.ToLineItemResponses(inv.Items),
		SentAt:          inv.SentAt,
		PaidAt:          inv.PaidAt,
		CancelledAt:     inv.CancelledAt,
		CreatedAt:       inv.CreatedAt,
		UpdatedAt:       inv.UpdatedAt,
		Version:         inv.Version,
	}
}

// ToInvoiceListItemResponses converts domain invoices to list DTOs
func ToInvoiceListItemResponses(invoices []billing.Invoice, now time.Time) []InvoiceListItemResponse {
	out := make([]InvoiceListItemResponse, len(invoices))
	for i := range invoices {
		inv := &invoices[i]
		out[i] = InvoiceListItemResponse{
			ID:              inv.ID,
			Number:          inv.Number,
			ClientID:        inv.ClientID,
			ClientName:      inv.ClientName,
			QuoteID:         inv.QuoteID,
			Status:          inv.Status.String(),
			EffectiveStatus: inv.EffectiveStatus(now).String(),
			IssueDate:       inv.IssueDate,
			DueDate:         inv.DueDate,
			Total:           inv.Total,
		}
	}
	return out
}

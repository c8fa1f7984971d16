package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	appdoc "github.com/erp/salesops/internal/application/document"
	"github.com/erp/salesops/internal/domain/sales"
)

// CreateQuoteRequest represents a request to create a quote
type CreateQuoteRequest struct {
	ClientID   uuid.UUID              `json:"client_id" binding:"required"`
	Items      []appdoc.LineItemInput `json:"items" binding:"required,min=1,dive"`
	Discount   decimal.Decimal        `json:"discount" binding:"decimal_gte0"`
	Shipping   decimal.Decimal        `json:"shipping" binding:"decimal_gte0"`
	TaxRate    *decimal.Decimal       `json:"tax_rate" binding:"omitempty,decimal_gte0"`
	ValidUntil *time.Time             `json:"valid_until"`
	Notes      string                 `json:"notes" binding:"max=2000"`
}

// UpdateQuoteRequest represents a partial quote update.
// Items, when present, replace the full line set.
type UpdateQuoteRequest struct {
	Items      *[]appdoc.LineItemInput `json:"items" binding:"omitempty,min=1,dive"`
	Discount   *decimal.Decimal        `json:"discount" binding:"omitempty,decimal_gte0"`
	Shipping   *decimal.Decimal        `json:"shipping" binding:"omitempty,decimal_gte0"`
	TaxRate    *decimal.Decimal        `json:"tax_rate" binding:"omitempty,decimal_gte0"`
	ValidUntil *time.Time              `json:"valid_until"`
	Notes      *string                 `json:"notes" binding:"omitempty,max=2000"`
}

// TransitionQuoteRequest represents a status change
type TransitionQuoteRequest struct {
	Status string `json:"status" binding:"required,oneof=draft sent accepted rejected"`
}

// QuoteListFilter represents filter options for quote list
type QuoteListFilter struct {
	Search   string     `form:"search"`
	Status   string     `form:"status" binding:"omitempty,oneof=draft sent accepted rejected"`
	ClientID *uuid.UUID `form:"-"`
	Page     int        `form:"page" binding:"omitempty,min=1"`
	PageSize int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string     `form:"order_by"`
	OrderDir string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// QuoteResponse represents a quote in API responses
type QuoteResponse struct {
	ID             uuid.UUID                 `json:"id"`
	Number         string                    `json:"number"`
	NumberDegraded bool                      `json:"number_degraded"`
	ClientID       uuid.UUID                 `json:"client_id"`
	ClientName     string                    `json:"client_name"`
	CreatedBy      *uuid.UUID                `json:"created_by,omitempty"`
	Status         string                    `json:"status"`
	Expired        bool                      `json:"expired"`
	ValidUntil     time.Time                 `json:"valid_until"`
	Subtotal       decimal.Decimal           `json:"subtotal"`
	Discount       decimal.Decimal           `json:"discount"`
	Shipping       decimal.Decimal           `json:"shipping"`
	TaxRate        decimal.Decimal           `json:"tax_rate"`
	TaxAmount      decimal.Decimal           `json:"tax_amount"`
	Total          decimal.Decimal           `json:"total"`
	Notes          string                    `json:"notes,omitempty"`
	Items          []appdoc.LineItemResponse `json:"items"`
	SentAt         *time.Time                `json:"sent_at,omitempty"`
	DecidedAt      *time.Time                `json:"decided_at,omitempty"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
	Version        int                       `json:"version"`
}

// QuoteListItemResponse is the list projection of a quote
type QuoteListItemResponse struct {
	ID         uuid.UUID       `json:"id"`
	Number     string          `json:"number"`
	ClientID   uuid.UUID       `json:"client_id"`
	ClientName string          `json:"client_name"`
	Status     string          `json:"status"`
	Expired    bool            `json:"expired"`
	ValidUntil time.Time       `json:"valid_until"`
	Total      decimal.Decimal `json:"total"`
	ItemCount  int             `json:"item_count"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ToQuoteResponse converts a domain quote to a response DTO
func ToQuoteResponse(q *sales.Quote, now time.Time) QuoteResponse {
	return QuoteResponse{
		ID:             q.ID,
		Number:         q.Number,
		NumberDegraded: q.NumberDegraded,
		ClientID:       q.ClientID,
		ClientName:     q.ClientName,
		CreatedBy:      q.CreatedBy,
		Status:         q.Status.String(),
		Expired:        q.IsExpired(now),
		ValidUntil:     q.ValidUntil,
		Subtotal:       q.Subtotal,
		Discount:       q.Discount,
		Shipping:       q.Shipping,
		TaxRate:        q.TaxRate,
		TaxAmount:      q.TaxAmount,
		Total:          q.Total,
		Notes:          q.Notes,
		Items:          appdoc.ToLineItemResponses(q.Items),
		SentAt:         q.SentAt,
		DecidedAt:      q.DecidedAt,
		CreatedAt:      q.CreatedAt,
		UpdatedAt:      q.UpdatedAt,
		Version:        q.Version,
	}
}

// ToQuoteListItemResponses converts domain quotes to list DTOs
func ToQuoteListItemResponses(quotes []sales.Quote, now time.Time) []QuoteListItemResponse {
	out := make([]QuoteListItemResponse, len(quotes))
	for i := range quotes {
		q := &quotes[i]
		out[i] = QuoteListItemResponse{
			ID:         q.ID,
			Number:     q.Number,
			ClientID:   q.ClientID,
			ClientName: q.ClientName,
			Status:     q.Status.String(),
			Expired:    q.IsExpired(now),
			ValidUntil: q.ValidUntil,
			Total:      q.Total,
			ItemCount:  len(q.Items),
			CreatedAt:  q.CreatedAt,
		}
	}
	return out
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/salesops/internal/domain/document"
	"github.com/erp/salesops/internal/domain/sales"
)

// QuoteModel is the persistence model for the Quote aggregate
type QuoteModel struct {
	AggregateModel
	Number         string            `gorm:"type:varchar(50);not null;uniqueIndex"`
	NumberDegraded bool              `gorm:"not null;default:false"`
	ClientID       uuid.UUID         `gorm:"type:uuid;not null;index"`
	ClientName     string            `gorm:"type:varchar(200)"`
	CreatedBy      *uuid.UUID        `gorm:"type:uuid"`
	Status         sales.QuoteStatus `gorm:"type:varchar(20);not null;default:'draft';index"`
	ValidUntil     time.Time         `gorm:"not null"`
	Subtotal       decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	Discount       decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	Shipping       decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	TaxRate        decimal.Decimal   `gorm:"type:decimal(7,4);not null"`
	TaxAmount      decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	Total          decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	Notes          string            `gorm:"type:text"`
	SentAt         *time.Time
	DecidedAt      *time.Time
	Items          []QuoteItemModel `gorm:"foreignKey:QuoteID;references:ID"`
}

// TableName returns the table name for GORM
func (QuoteModel) TableName() string {
	return "quotes"
}

// QuoteItemModel is a line item of a quote
type QuoteItemModel struct {
	LineItemColumns
	QuoteID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// TableName returns the table name for GORM
func (QuoteItemModel) TableName() string {
	return "quote_items"
}

// ToDomain converts the persistence model to a domain Quote
func (m *QuoteModel) ToDomain() *sales.Quote {
	q := &sales.Quote{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Number:            m.Number,
		NumberDegraded:    m.NumberDegraded,
		ClientID:          m.ClientID,
		ClientName:        m.ClientName,
		CreatedBy:         m.CreatedBy,
		Status:            m.Status,
		ValidUntil:        m.ValidUntil,
		Subtotal:          m.Subtotal,
		Discount:          m.Discount,
		Shipping:          m.Shipping,
		TaxRate:           m.TaxRate,
		TaxAmount:         m.TaxAmount,
		Total:             m.Total,
		Notes:             m.Notes,
		SentAt:            m.SentAt,
		DecidedAt:         m.DecidedAt,
		Items:             make([]document.LineItem, len(m.Items)),
	}
	for i, item := range m.Items {
		q.Items[i] = item.toDomain(m.ID)
	}
	return q
}

// QuoteModelFromDomain creates a new persistence model from a domain Quote
func QuoteModelFromDomain(q *sales.Quote) *QuoteModel {
	m := &QuoteModel{
		Number:         q.Number,
		NumberDegraded: q.NumberDegraded,
		ClientID:       q.ClientID,
		ClientName:     q.ClientName,
		CreatedBy:      q.CreatedBy,
		Status:         q.Status,
		ValidUntil:     q.ValidUntil,
		Subtotal:       q.Subtotal,
		Discount:       q.Discount,
		Shipping:       q.Shipping,
		TaxRate:        q.TaxRate,
		TaxAmount:      q.TaxAmount,
		Total:          q.Total,
		Notes:          q.Notes,
		SentAt:         q.SentAt,
		DecidedAt:      q.DecidedAt,
		Items:          make([]QuoteItemModel, len(q.Items)),
	}
	m.FromDomainAggregateRoot(q.BaseAggregateRoot)
	for i, l := range q.Items {
		m.Items[i] = QuoteItemModel{LineItemColumns: lineColumnsFromDomain(l), QuoteID: q.ID}
	}
	return m
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/salesops/internal/domain/billing"
	"github.com/erp/salesops/internal/domain/document"
)

// InvoiceModel is the persistence model for the Invoice aggregate
type InvoiceModel struct {
	AggregateModel
	Number         string                `gorm:"type:varchar(50);not null;uniqueIndex"`
	NumberDegraded bool                  `gorm:"not null;default:false"`
	ClientID       uuid.UUID             `gorm:"type:uuid;not null;index"`
	ClientName     string                `gorm:"type:varchar(200)"`
	QuoteID        *uuid.UUID            `gorm:"type:uuid;index"`
	CreatedBy      *uuid.UUID            `gorm:"type:uuid"`
	Status         billing.InvoiceStatus `gorm:"type:varchar(20);not null;default:'draft';index:idx_invoice_status_due,priority:1"`
	IssueDate      time.Time             `gorm:"type:date;not null"`
	DueDate        time.Time             `gorm:"type:date;not null;index:idx_invoice_status_due,priority:2"`
	Subtotal       decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Discount       decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	Shipping       decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	TaxRate        decimal.Decimal       `gorm:"type:decimal(7,4);not null"`
	TaxAmount      decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Total          decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Notes          string                `gorm:"type:text"`
	SentAt         *time.Time
	PaidAt         *time.Time
	CancelledAt    *time.Time
	Items          []InvoiceItemModel `gorm:"foreignKey:InvoiceID;references:ID"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// InvoiceItemModel is a line item of an invoice
type InvoiceItemModel struct {
	LineItemColumns
	InvoiceID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// TableName returns the table name for GORM
func (InvoiceItemModel) TableName() string {
	return "invoice_items"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	inv := &billing.Invoice{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Number:            m.Number,
		NumberDegraded:    m.NumberDegraded,
		ClientID:          m.ClientID,
		ClientName:        m.ClientName,
		QuoteID:           m.QuoteID,
		CreatedBy:         m.CreatedBy,
		Status:            m.Status,
		IssueDate:         m.IssueDate,
		DueDate:           m.DueDate,
		Subtotal:          m.Subtotal,
		Discount:          m.Discount,
		Shipping:          m.Shipping,
		TaxRate:           m.TaxRate,
		TaxAmount:         m.TaxAmount,
		Total:             m.Total,
		Notes:             m.Notes,
		SentAt:            m.SentAt,
		PaidAt:            m.PaidAt,
		CancelledAt:       m.CancelledAt,
		Items:             make([]document.LineItem, len(m.Items)),
	}
	for i, item := range m.Items {
		inv.Items[i] = item.toDomain(m.ID)
	}
	return inv
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{
		Number:         inv.Number,
		NumberDegraded: inv.NumberDegraded,
		ClientID:       inv.ClientID,
		ClientName:     inv.ClientName,
		QuoteID:        inv.QuoteID,
		CreatedBy:      inv.CreatedBy,
		Status:         inv.Status,
		IssueDate:      inv.IssueDate,
		DueDate:        inv.DueDate,
		Subtotal:       inv.Subtotal,
		Discount:       inv.Discount,
		Shipping:       inv.Shipping,
		TaxRate:        inv.TaxRate,
		TaxAmount:      inv.TaxAmount,
		Total:          inv.Total,
		Notes:          inv.Notes,
		SentAt:         inv.SentAt,
		PaidAt:         inv.PaidAt,
		CancelledAt:    inv.CancelledAt,
		Items:          make([]InvoiceItemModel, len(inv.Items)),
	}
	m.FromDomainAggregateRoot(inv.BaseAggregateRoot)
	for i, l := range inv.Items {
		m.Items[i] = InvoiceItemModel{LineItemColumns: lineColumnsFromDomain(l), InvoiceID: inv.ID}
	}
	return m
}

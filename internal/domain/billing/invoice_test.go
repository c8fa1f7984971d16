package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/salesops/internal/domain/document"
	"github.com/erp/salesops/internal/domain/shared"
)

func serviceLine(qty, price int64) document.LineInput {
	return document.LineInput{
		Description: "Consulting",
		Quantity:    decimal.NewFromInt(qty),
		UnitPrice:   decimal.NewFromInt(price),
	}
}

func createTestInvoice(t *testing.T) *Invoice {
	t.Helper()
	inv, err := NewInvoice(uuid.New(), []document.LineInput{serviceLine(2, 50)}, InvoiceParams{})
	require.NoError(t, err)
	return inv
}

func TestNewInvoice(t *testing.T) {
	t.Run("total is subtotal times 1.2", func(t *testing.T) {
		inv := createTestInvoice(t)
		assert.Equal(t, InvoiceStatusDraft, inv.Status)
		assert.True(t, inv.Subtotal.Equal(decimal.NewFromInt(100)))
		assert.True(t, inv.Total.Equal(decimal.NewFromInt(120)))
		assert.True(t, inv.Discount.IsZero())
		assert.Equal(t, DefaultPaymentTerm, inv.DueDate.Sub(inv.IssueDate))
	})

	t.Run("explicit dates", func(t *testing.T) {
		issue := time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC)
		due := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
		inv, err := NewInvoice(uuid.New(), []document.LineInput{serviceLine(1, 1)}, InvoiceParams{IssueDate: &issue, DueDate: &due})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), inv.IssueDate)
		assert.Equal(t, due, inv.DueDate)
	})

	t.Run("due before issue", func(t *testing.T) {
		issue := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
		due := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		_, err := NewInvoice(uuid.New(), []document.LineInput{serviceLine(1, 1)}, InvoiceParams{IssueDate: &issue, DueDate: &due})
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("missing client", func(t *testing.T) {
		_, err := NewInvoice(uuid.Nil, []document.LineInput{serviceLine(1, 1)}, InvoiceParams{})
		assert.Error(t, err)
	})

	t.Run("empty items", func(t *testing.T) {
		_, err := NewInvoice(uuid.New(), nil, InvoiceParams{})
		assert.Error(t, err)
	})
}

func TestNewInvoiceFromQuote(t *testing.T) {
	quoteID := uuid.New()
	itemID := uuid.New()
	lines, err := document.BuildLines(quoteID, []document.LineInput{
		{Description: "Widget", Quantity: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(100), InventoryItemID: &itemID},
	})
	require.NoError(t, err)

	issue := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	inv, err := NewInvoiceFromQuote(QuoteSnapshot{
		QuoteID:  quoteID,
		ClientID: uuid.New(),
		Items:    lines,
		Notes:    "thanks",
		Discount: decimal.NewFromInt(50),
		Shipping: decimal.NewFromInt(20),
		TaxRate:  decimal.NewFromInt(20),
	}, nil, issue)
	require.NoError(t, err)

	require.NotNil(t, inv.QuoteID)
	assert.Equal(t, quoteID, *inv.QuoteID)
	assert.Equal(t, time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC), inv.DueDate)
	assert.True(t, inv.Total.Equal(decimal.NewFromInt(324)))
	assert.Equal(t, "thanks", inv.Notes)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, inv.ID, inv.Items[0].DocumentID)
	assert.NotEqual(t, lines[0].ID, inv.Items[0].ID)
}

func TestInvoiceStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to InvoiceStatus
		allowed  bool
	}{
		{InvoiceStatusDraft, InvoiceStatusSent, true},
		{InvoiceStatusDraft, InvoiceStatusCancelled, true},
		{InvoiceStatusDraft, InvoiceStatusPaid, false},
		{InvoiceStatusSent, InvoiceStatusPaid, true},
		{InvoiceStatusSent, InvoiceStatusOverdue, true},
		{InvoiceStatusSent, InvoiceStatusCancelled, true},
		{InvoiceStatusOverdue, InvoiceStatusPaid, true},
		{InvoiceStatusOverdue, InvoiceStatusCancelled, true},
		{InvoiceStatusOverdue, InvoiceStatusSent, false},
		{InvoiceStatusPaid, InvoiceStatusCancelled, false},
		{InvoiceStatusCancelled, InvoiceStatusDraft, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestInvoice_TransitionTo(t *testing.T) {
	inv := createTestInvoice(t)
	require.NoError(t, inv.TransitionTo(InvoiceStatusSent))
	require.NoError(t, inv.TransitionTo(InvoiceStatusPaid))
	assert.NotNil(t, inv.PaidAt)
	assert.False(t, inv.CanModify())

	err := inv.TransitionTo(InvoiceStatusCancelled)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
}

func TestInvoice_EffectiveStatus(t *testing.T) {
	inv := createTestInvoice(t)
	after := inv.DueDate.Add(48 * time.Hour)

	assert.Equal(t, InvoiceStatusDraft, inv.EffectiveStatus(after))

	require.NoError(t, inv.TransitionTo(InvoiceStatusSent))
	assert.Equal(t, InvoiceStatusSent, inv.EffectiveStatus(inv.DueDate.Add(time.Hour)))
	assert.Equal(t, InvoiceStatusOverdue, inv.EffectiveStatus(after))

	require.NoError(t, inv.TransitionTo(InvoiceStatusPaid))
	assert.Equal(t, InvoiceStatusPaid, inv.EffectiveStatus(after))
}

func TestInvoice_ReplaceItems(t *testing.T) {
	inv := createTestInvoice(t)
	require.NoError(t, inv.TransitionTo(InvoiceStatusSent))
	require.NoError(t, inv.ReplaceItems([]document.LineInput{serviceLine(1, 10)}))
	assert.True(t, inv.Total.Equal(decimal.NewFromInt(12)))

	require.NoError(t, inv.TransitionTo(InvoiceStatusCancelled))
	assert.Error(t, inv.ReplaceItems([]document.LineInput{serviceLine(1, 10)}))
}

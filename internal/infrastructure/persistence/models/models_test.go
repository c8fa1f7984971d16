package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/salesops/internal/domain/document"
	"github.com/erp/salesops/internal/domain/numbering"
	"github.com/erp/salesops/internal/domain/sales"
)

func TestQuoteModel_RoundTripKeepsLines(t *testing.T) {
	itemID := uuid.New()
	q, err := sales.NewQuote(uuid.New(), []document.LineInput{
		{Description: "Widget", Quantity: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(100), InventoryItemID: &itemID},
		{Description: "Labour", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(40)},
	}, sales.QuoteParams{Discount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	require.NoError(t, q.AssignNumber(numbering.Number{Value: "CP-2025-0001", Sequential: true}))

	m := QuoteModelFromDomain(q)
	require.Len(t, m.Items, 2)
	assert.Equal(t, q.ID, m.Items[0].QuoteID)

	back := m.ToDomain()
	assert.Equal(t, q.ID, back.ID)
	assert.Equal(t, "CP-2025-0001", back.Number)
	assert.True(t, back.Total.Equal(q.Total))
	require.Len(t, back.Items, 2)
	assert.Equal(t, itemID, *back.Items[0].InventoryItemID)
	assert.Equal(t, q.ID, back.Items[1].DocumentID)
}

func TestAll_ListsEveryTable(t *testing.T) {
	names := map[string]bool{}
	for _, m := range All() {
		if tn, ok := m.(interface{ TableName() string }); ok {
			names[tn.TableName()] = true
		}
	}
	for _, want := range []string{"inventory_items", "reservations", "quotes", "quote_items", "invoices", "invoice_items", "document_sequences", "clients", "users"} {
		assert.True(t, names[want], want)
	}
}

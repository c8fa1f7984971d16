// Package pricing derives document totals from line items.
package pricing

import (
	"github.com/shopspring/decimal"
)

// DefaultTaxRate is the tax percentage applied when a document does not carry its own
var DefaultTaxRate = decimal.NewFromInt(20)

var hundred = decimal.NewFromInt(100)

// Line is the priced part of a document line
type Line struct {
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// Input holds everything a total depends on
type Input struct {
	Lines    []Line
	Discount decimal.Decimal
	Shipping decimal.Decimal
	// TaxRate is a percentage, 20 means 20%
	TaxRate decimal.Decimal
}

// Totals is the result of Calculate. Values are unrounded.
type Totals struct {
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	Shipping    decimal.Decimal
	TaxableBase decimal.Decimal
	TaxRate     decimal.Decimal
	TaxAmount   decimal.Decimal
	Total       decimal.Decimal
}

// LineTotal returns quantity * unit price
func LineTotal(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice)
}

// Calculate computes document totals:
//
//	subtotal     = Σ quantity * unit_price
//	taxable_base = max(0, subtotal - discount + shipping)
//	tax_amount   = taxable_base * tax_rate / 100
//	total        = taxable_base + tax_amount
//
// Negative discount, shipping or tax rate are treated as zero. It never fails.
func Calculate(in Input) Totals {
	subtotal := decimal.Zero
	for _, l := range in.Lines {
		subtotal = subtotal.Add(LineTotal(l.Quantity, l.UnitPrice))
	}

	discount := nonNegative(in.Discount)
	shipping := nonNegative(in.Shipping)
	rate := nonNegative(in.TaxRate)

	base := nonNegative(subtotal.Sub(discount).Add(shipping))
	tax := base.Mul(rate).Div(hundred)

	return Totals{
		Subtotal:    subtotal,
		Discount:    discount,
		Shipping:    shipping,
		TaxableBase: base,
		TaxRate:     rate,
		TaxAmount:   tax,
		Total:       base.Add(tax),
	}
}

// Display renders a monetary value with two decimals. The value itself is untouched.
func Display(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

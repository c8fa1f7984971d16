// Package numbering defines human-readable document numbers such as CP-2025-0001.
package numbering

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/erp/salesops/internal/domain/shared"
)

// Kind identifies a numbered document family
type Kind string

const (
	KindQuote   Kind = "quote"
	KindInvoice Kind = "invoice"
)

// IsValid reports whether the kind is known
func (k Kind) IsValid() bool {
	switch k {
	case KindQuote, KindInvoice:
		return true
	}
	return false
}

// Prefix returns the number prefix for the kind
func (k Kind) Prefix() string {
	switch k {
	case KindQuote:
		return "CP"
	case KindInvoice:
		return "FA"
	}
	return ""
}

func (k Kind) String() string {
	return string(k)
}

// KindFromPrefix resolves a prefix back to its kind
func KindFromPrefix(prefix string) (Kind, bool) {
	switch prefix {
	case "CP":
		return KindQuote, true
	case "FA":
		return KindInvoice, true
	}
	return "", false
}

// Number is an issued document number.
// Sequential is false when the number came from the fallback path.
type Number struct {
	Value      string
	Kind       Kind
	Year       int
	Sequence   int64
	Sequential bool
	// Reason is set on fallback numbers
	Reason string
}

func (n Number) String() string {
	return n.Value
}

// Format renders <prefix>-<year>-<seq> with seq zero-padded to four digits
func Format(kind Kind, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%04d", kind.Prefix(), year, seq)
}

// Parse reads a formatted number back. Fallback numbers parse with Sequential=false.
func Parse(value string) (Number, error) {
	parts := strings.SplitN(value, "-", 3)
	if len(parts) != 3 {
		return Number{}, shared.NewValidationError("number", "expected <prefix>-<year>-<seq>")
	}
	kind, ok := KindFromPrefix(parts[0])
	if !ok {
		return Number{}, shared.NewValidationError("number", fmt.Sprintf("unknown prefix %q", parts[0]))
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 4 {
		return Number{}, shared.NewValidationError("number", fmt.Sprintf("invalid year %q", parts[1]))
	}
	n := Number{Value: value, Kind: kind, Year: year}
	if strings.HasPrefix(parts[2], FallbackMarker) {
		return n, nil
	}
	seq, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || seq < 1 {
		return Number{}, shared.NewValidationError("number", fmt.Sprintf("invalid sequence %q", parts[2]))
	}
	n.Sequence = seq
	n.Sequential = true
	return n, nil
}

// FallbackMarker starts the sequence part of a non-sequential number
const FallbackMarker = "X"

// Counter issues strictly increasing values per (kind, year).
// Implementations must serialize only on that key.
type Counter interface {
	Next(ctx context.Context, kind Kind, year int) (int64, error)
}

// CounterFunc adapts a function to Counter
type CounterFunc func(ctx context.Context, kind Kind, year int) (int64, error)

func (f CounterFunc) Next(ctx context.Context, kind Kind, year int) (int64, error) {
	return f(ctx, kind, year)
}

// Package numbering issues document numbers on top of an atomic counter.
package numbering

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/salesops/internal/domain/numbering"
)

// Generator turns counter values into formatted numbers. When the counter is
// unavailable it issues a fallback number flagged as non-sequential.
type Generator struct {
	counter numbering.Counter
	logger  *zap.Logger
	now     func() time.Time
}

// GeneratorOption is a functional option for configuring the generator
type GeneratorOption func(*Generator)

// WithClock overrides the time source used for fallback numbers
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		g.now = now
	}
}

// NewGenerator creates a new Generator
func NewGenerator(counter numbering.Counter, logger *zap.Logger, opts ...GeneratorOption) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Generator{
		counter: counter,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NextNumber never fails: a counter error yields a fallback number with
// Sequential=false and the error text in Reason.
func (g *Generator) NextNumber(ctx context.Context, kind numbering.Kind, year int) numbering.Number {
	seq, err := g.counter.Next(ctx, kind, year)
	if err == nil && seq > 0 {
		return numbering.Number{
			Value:      numbering.Format(kind, year, seq),
			Kind:       kind,
			Year:       year,
			Sequence:   seq,
			Sequential: true,
		}
	}
	if err == nil {
		err = fmt.Errorf("counter returned non-positive value %d", seq)
	}

	n := g.fallback(kind, year)
	n.Reason = err.Error()
	g.logger.Warn("document numbering degraded, issued fallback number",
		zap.String("kind", string(kind)),
		zap.Int("year", year),
		zap.String("number", n.Value),
		zap.Error(err),
	)
	return n
}

// fallback embeds a nanosecond timestamp and random bits. It sorts roughly by
// time and never collides with sequential numbers, which have no marker.
func (g *Generator) fallback(kind numbering.Kind, year int) numbering.Number {
	id := uuid.New()
	suffix := strings.ToUpper(strconv.FormatInt(g.now().UnixNano(), 36)) +
		strings.ToUpper(fmt.Sprintf("%x", id[:2]))
	return numbering.Number{
		Value: fmt.Sprintf("%s-%d-%s%s", kind.Prefix(), year, numbering.FallbackMarker, suffix),
		Kind:  kind,
		Year:  year,
	}
}

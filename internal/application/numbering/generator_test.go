package numbering

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/erp/salesops/internal/domain/numbering"
)

// memoryCounter is an in-process counter keyed by (kind, year)
type memoryCounter struct {
	mu     sync.Mutex
	values map[string]int64
}

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{values: make(map[string]int64)}
}

func (c *memoryCounter) Next(_ context.Context, kind numbering.Kind, year int) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := fmt.Sprintf("%s:%d", kind, year)
	c.values[key]++
	return c.values[key], nil
}

func TestGenerator_NextNumber(t *testing.T) {
	ctx := context.Background()

	t.Run("formats sequential numbers per kind and year", func(t *testing.T) {
		g := NewGenerator(newMemoryCounter(), nil)

		q1 := g.NextNumber(ctx, numbering.KindQuote, 2025)
		q2 := g.NextNumber(ctx, numbering.KindQuote, 2025)
		inv := g.NextNumber(ctx, numbering.KindInvoice, 2025)
		next := g.NextNumber(ctx, numbering.KindQuote, 2026)

		assert.Equal(t, "CP-2025-0001", q1.Value)
		assert.Equal(t, "CP-2025-0002", q2.Value)
		assert.Equal(t, "FA-2025-0001", inv.Value)
		assert.Equal(t, "CP-2026-0001", next.Value)
		assert.True(t, q1.Sequential)
		assert.Empty(t, q1.Reason)
	})

	t.Run("concurrent callers get distinct numbers", func(t *testing.T) {
		g := NewGenerator(newMemoryCounter(), nil)
		const n = 50

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			seen = make(map[string]bool)
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				num := g.NextNumber(ctx, numbering.KindQuote, 2025)
				mu.Lock()
				seen[num.Value] = true
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Len(t, seen, n)
		assert.True(t, seen["CP-2025-0050"])
	})

	t.Run("counter failure falls back and logs a warning", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		failing := numbering.CounterFunc(func(context.Context, numbering.Kind, int) (int64, error) {
			return 0, errors.New("connection refused")
		})
		fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
		g := NewGenerator(failing, zap.New(core), WithClock(func() time.Time { return fixed }))

		n := g.NextNumber(ctx, numbering.KindInvoice, 2025)

		assert.False(t, n.Sequential)
		assert.Contains(t, n.Value, "FA-2025-X")
		assert.Equal(t, "connection refused", n.Reason)
		parsed, err := numbering.Parse(n.Value)
		require.NoError(t, err)
		assert.False(t, parsed.Sequential)
		assert.Equal(t, numbering.KindInvoice, parsed.Kind)

		require.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		assert.Equal(t, "FA-2025-X", entry.ContextMap()["number"].(string)[:9])
	})

	t.Run("fallback numbers differ even at the same instant", func(t *testing.T) {
		failing := numbering.CounterFunc(func(context.Context, numbering.Kind, int) (int64, error) {
			return 0, errors.New("down")
		})
		fixed := time.Unix(1700000000, 0)
		g := NewGenerator(failing, nil, WithClock(func() time.Time { return fixed }))

		seen := make(map[string]bool)
		for i := 0; i < 20; i++ {
			seen[g.NextNumber(ctx, numbering.KindQuote, 2025).Value] = true
		}
		// 16 random bits per number; 20 draws colliding is possible but vanishingly rare
		assert.GreaterOrEqual(t, len(seen), 19)
	})

	t.Run("non-positive counter value is treated as failure", func(t *testing.T) {
		zero := numbering.CounterFunc(func(context.Context, numbering.Kind, int) (int64, error) {
			return 0, nil
		})
		g := NewGenerator(zero, nil)

		n := g.NextNumber(ctx, numbering.KindQuote, 2025)

		assert.False(t, n.Sequential)
		assert.Contains(t, n.Reason, "non-positive")
	})
}

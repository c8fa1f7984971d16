package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	t.Run("allows up to the limit within a window", func(t *testing.T) {
		rl := NewRateLimiter(3, time.Minute)

		for i := 2; i >= 0; i-- {
			ok, remaining := rl.Allow("client")
			assert.True(t, ok)
			assert.Equal(t, i, remaining)
		}
		ok, remaining := rl.Allow("client")
		assert.False(t, ok)
		assert.Equal(t, 0, remaining)
	})

	t.Run("keys are independent", func(t *testing.T) {
		rl := NewRateLimiter(1, time.Minute)

		ok, _ := rl.Allow("a")
		assert.True(t, ok)
		ok, _ = rl.Allow("a")
		assert.False(t, ok)
		ok, _ = rl.Allow("b")
		assert.True(t, ok)
	})

	t.Run("window resets after expiry", func(t *testing.T) {
		now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		rl := NewRateLimiter(1, time.Minute)
		rl.now = func() time.Time { return now }

		ok, _ := rl.Allow("client")
		assert.True(t, ok)
		ok, _ = rl.Allow("client")
		assert.False(t, ok)

		now = now.Add(time.Minute)
		ok, _ = rl.Allow("client")
		assert.True(t, ok)
	})

	t.Run("sweep drops expired windows only", func(t *testing.T) {
		now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		rl := NewRateLimiter(5, time.Minute)
		rl.now = func() time.Time { return now }

		rl.Allow("old")
		now = now.Add(30 * time.Second)
		rl.Allow("fresh")
		now = now.Add(31 * time.Second)

		rl.Sweep()
		assert.NotContains(t, rl.clients, "old")
		assert.Contains(t, rl.clients, "fresh")
	})
}

package cache

import (
	"context"
	"errors"
	"time"
)

// ErrIdempotencyInFlight means another request holding the same key has not finished
var ErrIdempotencyInFlight = errors.New("idempotency key is in use by a request in flight")

// IdempotencyRecord is the stored outcome of a completed request
type IdempotencyRecord struct {
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyStore remembers request outcomes by Idempotency-Key.
//
// Begin claims key for a new request. It returns (nil, nil) when the caller
// now owns the key, the stored record when the key already completed, and
// ErrIdempotencyInFlight when another holder has not completed yet.
type IdempotencyStore interface {
	Begin(ctx context.Context, key, fingerprint string, ttl time.Duration) (*IdempotencyRecord, error)
	Complete(ctx context.Context, key string, record IdempotencyRecord, ttl time.Duration) error
	Abandon(ctx context.Context, key string) error
}

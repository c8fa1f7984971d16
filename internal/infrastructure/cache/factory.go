package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erp/salesops/internal/domain/numbering"
	"github.com/erp/salesops/internal/infrastructure/config"
)

// NewIdempotencyStore returns the Redis store when a client is available and
// the in-memory store otherwise.
func NewIdempotencyStore(client *redis.Client, logger *zap.Logger) IdempotencyStore {
	if client != nil {
		logger.Info("using Redis idempotency store")
		return NewRedisIdempotencyStore(client, "")
	}
	logger.Warn("Redis unavailable, using in-memory idempotency store; keys are not shared between instances")
	return NewInMemoryIdempotencyStore(5 * time.Minute)
}

// NewSequenceCounter picks the counter backend from configuration.
// The redis backend requires a client; without one it falls back to the database counter.
func NewSequenceCounter(cfg config.NumberingConfig, client *redis.Client, db SequenceFloorCounter, logger *zap.Logger) numbering.Counter {
	if cfg.Backend == "redis" {
		if client != nil {
			return NewRedisSequenceCounter(client, db, cfg.RedisKeyPrefix, logger)
		}
		logger.Warn("numbering.backend=redis but Redis is unavailable, using database counter")
	}
	return db
}

// SequenceFloorCounter is the database counter: a Counter that also exposes its floor
type SequenceFloorCounter interface {
	numbering.Counter
	SequenceFloor
}

// ConnectOptional connects to Redis when enabled. A failed connection is logged
// and yields nil so the caller can degrade to in-process backends.
func ConnectOptional(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *redis.Client {
	if !cfg.Enabled {
		return nil
	}
	client, err := NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn("redis connection failed", zap.String("addr", cfg.Addr()), zap.Error(err))
		return nil
	}
	return client
}

package cache

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/erp/salesops/internal/domain/numbering"
)

// SequenceFloor is the durable counter the Redis counter is seeded from and
// written back to, so switching backends never re-issues a number.
type SequenceFloor interface {
	Current(ctx context.Context, kind numbering.Kind, year int) (int64, error)
	Advance(ctx context.Context, kind numbering.Kind, year int, floor int64) error
}

// RedisSequenceCounter issues sequence values with INCR on <prefix>:<CP|FA>:<year>
type RedisSequenceCounter struct {
	client Cmdable
	floor  SequenceFloor
	prefix string
	logger *zap.Logger
}

func NewRedisSequenceCounter(client Cmdable, floor SequenceFloor, prefix string, logger *zap.Logger) *RedisSequenceCounter {
	if prefix == "" {
		prefix = "salesops:seq"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSequenceCounter{client: client, floor: floor, prefix: prefix, logger: logger}
}

// Key returns the redis key for (kind, year)
func (c *RedisSequenceCounter) Key(kind numbering.Kind, year int) string {
	return fmt.Sprintf("%s:%s:%d", c.prefix, kind.Prefix(), year)
}

// Next increments and returns the sequence for (kind, year)
func (c *RedisSequenceCounter) Next(ctx context.Context, kind numbering.Kind, year int) (int64, error) {
	key := c.Key(kind, year)
	if err := c.seed(ctx, key, kind, year); err != nil {
		return 0, err
	}

	seq, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}

	if c.floor != nil {
		if err := c.floor.Advance(ctx, kind, year, seq); err != nil {
			c.logger.Warn("sequence write-back failed",
				zap.String("key", key),
				zap.Int64("sequence", seq),
				zap.Error(err))
		}
	}
	return seq, nil
}

// seed copies the durable floor into redis before every INCR, so a key lost
// to a restart or eviction resumes after the last issued value.
// SETNX leaves an existing redis value alone.
func (c *RedisSequenceCounter) seed(ctx context.Context, key string, kind numbering.Kind, year int) error {
	if c.floor == nil {
		return nil
	}
	current, err := c.floor.Current(ctx, kind, year)
	if err != nil {
		return fmt.Errorf("read sequence floor: %w", err)
	}
	set, err := c.client.SetNX(ctx, key, strconv.FormatInt(current, 10), 0).Result()
	if err != nil {
		return fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if set {
		c.logger.Info("sequence seeded from database",
			zap.String("key", key),
			zap.Int64("floor", current))
	}
	return nil
}

var _ numbering.Counter = (*RedisSequenceCounter)(nil)

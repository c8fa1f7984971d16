package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/erp/salesops/internal/domain/numbering"
	"github.com/erp/salesops/internal/infrastructure/persistence/models"
)

// nextSequenceSQL bumps the (kind, year) row in one statement, creating it on first use.
// Row-level locking on the conflict target serializes callers of the same key only.
const nextSequenceSQL = `INSERT INTO document_sequences (kind, year, last_value, updated_at) VALUES (?, ?, 1, ?) ` +
	`ON CONFLICT (kind, year) DO UPDATE SET last_value = document_sequences.last_value + 1, updated_at = excluded.updated_at ` +
	`RETURNING last_value`

// GormSequenceCounter implements numbering.Counter on the document_sequences table
type GormSequenceCounter struct {
	db *gorm.DB
}

// NewGormSequenceCounter creates a new GormSequenceCounter
func NewGormSequenceCounter(db *gorm.DB) *GormSequenceCounter {
	return &GormSequenceCounter{db: db}
}

// Next returns the next value for (kind, year), starting at 1
func (c *GormSequenceCounter) Next(ctx context.Context, kind numbering.Kind, year int) (int64, error) {
	if !kind.IsValid() {
		return 0, fmt.Errorf("unknown document kind %q", kind)
	}
	var value int64
	if err := c.db.WithContext(ctx).Raw(nextSequenceSQL, string(kind), year, time.Now()).Scan(&value).Error; err != nil {
		return 0, fmt.Errorf("next %s sequence for %d: %w", kind, year, err)
	}
	if value < 1 {
		return 0, fmt.Errorf("next %s sequence for %d: counter returned %d", kind, year, value)
	}
	return value, nil
}

// Current returns the last issued value for (kind, year), or 0 when none was issued
func (c *GormSequenceCounter) Current(ctx context.Context, kind numbering.Kind, year int) (int64, error) {
	var rows []models.DocumentSequenceModel
	if err := c.db.WithContext(ctx).
		Where("kind = ? AND year = ?", string(kind), year).
		Limit(1).
		Find(&rows).Error; err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].LastValue, nil
}

// Advance raises the stored value to at least floor. Lower floors leave the row untouched.
func (c *GormSequenceCounter) Advance(ctx context.Context, kind numbering.Kind, year int, floor int64) error {
	now := time.Now()
	return c.db.WithContext(ctx).Exec(
		`INSERT INTO document_sequences (kind, year, last_value, updated_at) VALUES (?, ?, ?, ?) `+
			`ON CONFLICT (kind, year) DO UPDATE SET last_value = excluded.last_value, updated_at = excluded.updated_at `+
			`WHERE document_sequences.last_value < excluded.last_value`,
		string(kind), year, floor, now,
	).Error
}

var _ numbering.Counter = (*GormSequenceCounter)(nil)

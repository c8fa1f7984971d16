package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/erp/salesops/internal/infrastructure/config"
	"github.com/erp/salesops/internal/infrastructure/persistence/models"
)

// newTestDB opens a migrated in-memory sqlite database private to the test
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewDatabase(&config.DatabaseConfig{
		Driver: "sqlite",
		Path:   fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	t.Cleanup(func() { _ = db.Close() })
	return db.DB
}

// newMockDB returns a postgres-dialect gorm DB backed by sqlmock
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func TestNewDatabase_SQLite(t *testing.T) {
	db, err := NewDatabase(&config.DatabaseConfig{
		Driver: "sqlite",
		Path:   "file:dbtest?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "sqlite", db.Driver)
	require.NoError(t, db.Ping(context.Background()))
	require.NoError(t, db.AutoMigrate(models.All()...))

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MaxOpenConnections)

	for _, table := range []string{"inventory_items", "reservations", "quotes", "quote_items", "invoices", "invoice_items", "document_sequences", "clients", "users"} {
		assert.True(t, db.DB.Migrator().HasTable(table), table)
	}
}

func TestNewDatabase_WithGormLogger(t *testing.T) {
	gl := &countingLogger{}
	db, err := NewDatabase(&config.DatabaseConfig{
		Driver: "sqlite",
		Path:   "file:dblogger?mode=memory&cache=shared",
	}, WithGormLogger(gl))
	require.NoError(t, err)
	defer db.Close()

	assert.Same(t, gl, db.DB.Config.Logger)
}

type countingLogger struct {
	traces int
}

func (l *countingLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return l }
func (l *countingLogger) Info(context.Context, string, ...any)             {}
func (l *countingLogger) Warn(context.Context, string, ...any)             {}
func (l *countingLogger) Error(context.Context, string, ...any)            {}
func (l *countingLogger) Trace(context.Context, time.Time, func() (string, int64), error) {
	l.traces++
}

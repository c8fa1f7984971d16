// Package testutil holds fixtures shared by repository, service and
// integration tests: migrated sqlite databases, seeded rows and a recording
// event publisher.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/erp/salesops/internal/domain/inventory"
	"github.com/erp/salesops/internal/domain/partner"
	"github.com/erp/salesops/internal/infrastructure/config"
	"github.com/erp/salesops/internal/infrastructure/persistence"
	"github.com/erp/salesops/internal/infrastructure/persistence/models"
)

// NewSQLiteDB opens a migrated in-memory sqlite database private to the test.
// It is closed when the test ends.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := persistence.NewDatabase(&config.DatabaseConfig{
		Driver: "sqlite",
		Path:   fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err, "Failed to open sqlite database")
	require.NoError(t, db.AutoMigrate(models.All()...), "Failed to migrate sqlite database")
	t.Cleanup(func() { _ = db.Close() })
	return db.DB
}

// SeedClient stores an active client.
func SeedClient(t *testing.T, db *gorm.DB, name string) *partner.Client {
	t.Helper()

	c, err := partner.NewClient(name, name+" Ltd", "", "")
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormClientRepository(db).Save(context.Background(), c))
	return c
}

// SeedUser stores a user row and returns its id.
func SeedUser(t *testing.T, db *gorm.DB, name string) uuid.UUID {
	t.Helper()

	u := models.UserModel{Name: name, Email: name + "@example.com"}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	require.NoError(t, db.Create(&u).Error)
	return u.ID
}

// SeedItem stores an inventory item with the given physical stock.
func SeedItem(t *testing.T, db *gorm.DB, sku string, onHand int64) *inventory.InventoryItem {
	t.Helper()

	item, err := inventory.NewInventoryItem(sku, "Item "+sku)
	require.NoError(t, err)
	if onHand > 0 {
		require.NoError(t, item.AdjustAvailable(decimal.NewFromInt(onHand), "initial count"))
	}
	require.NoError(t, persistence.NewGormInventoryItemRepository(db).Save(context.Background(), item))
	item.ClearDomainEvents()
	return item
}

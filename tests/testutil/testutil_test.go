package testutil

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/salesops/internal/infrastructure/persistence"
)

func TestNewSQLiteDB(t *testing.T) {
	db := NewSQLiteDB(t)

	for _, table := range []string{"clients", "users", "inventory_items", "reservations", "quotes", "invoices", "document_sequences"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestNewSQLiteDB_IsolatedPerCall(t *testing.T) {
	a := NewSQLiteDB(t)
	b := NewSQLiteDB(t)

	SeedItem(t, a, "SKU-A", 1)

	var count int64
	require.NoError(t, b.Table("inventory_items").Count(&count).Error)
	assert.Zero(t, count)
}

func TestSeeders(t *testing.T) {
	db := NewSQLiteDB(t)

	client := SeedClient(t, db, "Acme")
	assert.Equal(t, "Acme Ltd", client.DisplayName())
	found, err := persistence.NewGormClientRepository(db).FindClient(t.Context(), client.ID)
	require.NoError(t, err)
	assert.Equal(t, client.ID, found.ID)

	userID := SeedUser(t, db, "alice")
	user, err := persistence.NewGormClientRepository(db).FindUser(t.Context(), userID)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Name)

	item := SeedItem(t, db, "SKU-T", 7)
	assert.Empty(t, item.GetDomainEvents())
	stored, err := persistence.NewGormInventoryItemRepository(db).FindByID(t.Context(), item.ID)
	require.NoError(t, err)
	assert.True(t, stored.QtyAvailable.Equal(decimal.NewFromInt(7)))
	assert.True(t, stored.QtyReserved.IsZero())
}

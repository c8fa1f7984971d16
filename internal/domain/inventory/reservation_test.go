package inventory

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReservation(t *testing.T) {
	itemID, quoteID, clientID := uuid.New(), uuid.New(), uuid.New()

	r, err := NewReservation(itemID, quoteID, clientID, decimal.NewFromInt(3))
	require.NoError(t, err)
	assert.True(t, r.IsActive())
	assert.Nil(t, r.CancelledAt)

	_, err = NewReservation(itemID, quoteID, clientID, decimal.Zero)
	assert.Error(t, err)
	_, err = NewReservation(uuid.Nil, quoteID, clientID, decimal.NewFromInt(1))
	assert.Error(t, err)
	_, err = NewReservation(itemID, uuid.Nil, clientID, decimal.NewFromInt(1))
	assert.Error(t, err)
}

func TestReservation_Cancel(t *testing.T) {
	r, err := NewReservation(uuid.New(), uuid.New(), uuid.New(), decimal.NewFromInt(2))
	require.NoError(t, err)

	require.NoError(t, r.Cancel())
	assert.Equal(t, ReservationStatusCancelled, r.Status)
	assert.NotNil(t, r.CancelledAt)

	assert.Error(t, r.Cancel())
}

func TestSumActive(t *testing.T) {
	a, _ := NewReservation(uuid.New(), uuid.New(), uuid.New(), decimal.NewFromInt(2))
	b, _ := NewReservation(uuid.New(), uuid.New(), uuid.New(), decimal.NewFromInt(5))
	c, _ := NewReservation(uuid.New(), uuid.New(), uuid.New(), decimal.NewFromInt(7))
	require.NoError(t, c.Cancel())

	assert.True(t, SumActive([]Reservation{*a, *b, *c}).Equal(decimal.NewFromInt(7)))
}

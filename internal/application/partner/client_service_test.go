package partner

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erp/salesops/internal/domain/partner"
	"github.com/erp/salesops/internal/domain/shared"
)

// MockClientRepository is a mock implementation of ClientRepository
type MockClientRepository struct {
	mock.Mock
}

func (m *MockClientRepository) FindByID(ctx context.Context, id uuid.UUID) (*partner.Client, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partner.Client), args.Error(1)
}

func (m *MockClientRepository) FindAll(ctx context.Context, filter shared.Filter) ([]partner.Client, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]partner.Client), args.Error(1)
}

func (m *MockClientRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockClientRepository) Save(ctx context.Context, client *partner.Client) error {
	args := m.Called(ctx, client)
	return args.Error(0)
}

func createTestClient(t *testing.T) *partner.Client {
	t.Helper()
	c, err := partner.NewClient("Jane", "Acme", "jane@acme.test", "")
	require.NoError(t, err)
	return c
}

func TestClientService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates active client", func(t *testing.T) {
		repo := new(MockClientRepository)
		svc := NewClientService(repo, nil)
		repo.On("Save", ctx, mock.AnythingOfType("*partner.Client")).Return(nil)

		resp, err := svc.Create(ctx, CreateClientRequest{Name: "Jane", Company: "Acme"})

		require.NoError(t, err)
		assert.Equal(t, "Acme", resp.DisplayName)
		assert.Equal(t, "active", resp.Status)
		repo.AssertExpectations(t)
	})

	t.Run("rejects invalid email", func(t *testing.T) {
		repo := new(MockClientRepository)
		svc := NewClientService(repo, nil)

		_, err := svc.Create(ctx, CreateClientRequest{Name: "Jane", Email: "nope"})

		assert.ErrorIs(t, err, shared.ErrValidation)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("propagates save error", func(t *testing.T) {
		repo := new(MockClientRepository)
		svc := NewClientService(repo, nil)
		repo.On("Save", ctx, mock.Anything).Return(errors.New("db down"))

		_, err := svc.Create(ctx, CreateClientRequest{Name: "Jane"})
		assert.EqualError(t, err, "db down")
	})
}

func TestClientService_List(t *testing.T) {
	ctx := context.Background()
	repo := new(MockClientRepository)
	svc := NewClientService(repo, nil)

	clients := []partner.Client{*createTestClient(t)}
	isInactiveFilter := mock.MatchedBy(func(f shared.Filter) bool {
		return f.Filters["status"] == "inactive" && f.Search == "acme" && f.Page == 1
	})
	repo.On("FindAll", ctx, isInactiveFilter).Return(clients, nil)
	repo.On("Count", ctx, isInactiveFilter).Return(int64(1), nil)

	page, err := svc.List(ctx, ClientListFilter{Search: "acme", Status: "inactive"})

	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Acme", page.Items[0].DisplayName)
}

func TestClientService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces details", func(t *testing.T) {
		repo := new(MockClientRepository)
		svc := NewClientService(repo, nil)
		client := createTestClient(t)
		repo.On("FindByID", ctx, client.ID).Return(client, nil)
		repo.On("Save", ctx, client).Return(nil)

		resp, err := svc.Update(ctx, client.ID, UpdateClientRequest{Name: "Jane Roe", Phone: "555"})

		require.NoError(t, err)
		assert.Equal(t, "Jane Roe", resp.DisplayName)
		assert.Equal(t, "555", resp.Phone)
		assert.Equal(t, 2, resp.Version)
	})

	t.Run("not found", func(t *testing.T) {
		repo := new(MockClientRepository)
		svc := NewClientService(repo, nil)
		id := uuid.New()
		repo.On("FindByID", ctx, id).Return(nil, shared.ErrNotFound)

		_, err := svc.Update(ctx, id, UpdateClientRequest{Name: "x"})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestClientService_DeactivateActivate(t *testing.T) {
	ctx := context.Background()
	repo := new(MockClientRepository)
	svc := NewClientService(repo, nil)
	client := createTestClient(t)
	repo.On("FindByID", ctx, client.ID).Return(client, nil)
	repo.On("Save", ctx, client).Return(nil)

	resp, err := svc.Deactivate(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, "inactive", resp.Status)

	// already inactive: no write
	_, err = svc.Deactivate(ctx, client.ID)
	require.NoError(t, err)
	repo.AssertNumberOfCalls(t, "Save", 1)

	resp, err = svc.Activate(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, "active", resp.Status)
	repo.AssertNumberOfCalls(t, "Save", 2)
}

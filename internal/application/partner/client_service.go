package partner

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/salesops/internal/domain/partner"
	"github.com/erp/salesops/internal/domain/shared"
)

// ClientService handles client directory operations
type ClientService struct {
	clientRepo partner.ClientRepository
	logger     *zap.Logger
}

// NewClientService creates a new ClientService
func NewClientService(clientRepo partner.ClientRepository, logger *zap.Logger) *ClientService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientService{
		clientRepo: clientRepo,
		logger:     logger,
	}
}

// Create creates a new client
func (s *ClientService) Create(ctx context.Context, req CreateClientRequest) (*ClientResponse, error) {
	client, err := partner.NewClient(req.Name, req.Company, req.Email, req.Phone)
	if err != nil {
		return nil, err
	}
	if err := s.clientRepo.Save(ctx, client); err != nil {
		return nil, err
	}
	s.logger.Info("client created", zap.String("client_id", client.ID.String()))

	resp := ToClientResponse(client)
	return &resp, nil
}

// GetByID retrieves a client by ID
func (s *ClientService) GetByID(ctx context.Context, id uuid.UUID) (*ClientResponse, error) {
	client, err := s.clientRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToClientResponse(client)
	return &resp, nil
}

// List retrieves a page of clients
func (s *ClientService) List(ctx context.Context, filter ClientListFilter) (*shared.Paginated[ClientResponse], error) {
	f := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Search:   filter.Search,
		Filters:  make(map[string]interface{}),
	}
	if filter.Status != "" {
		f.Filters["status"] = filter.Status
	}
	f = f.Normalize()

	clients, err := s.clientRepo.FindAll(ctx, f)
	if err != nil {
		return nil, err
	}
	total, err := s.clientRepo.Count(ctx, f)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(ToClientResponses(clients), total, f.Page, f.PageSize)
	return &page, nil
}

// Update replaces a client's contact details
func (s *ClientService) Update(ctx context.Context, id uuid.UUID, req UpdateClientRequest) (*ClientResponse, error) {
	client, err := s.clientRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := client.Update(req.Name, req.Company, req.Email, req.Phone); err != nil {
		return nil, err
	}
	if err := s.clientRepo.Save(ctx, client); err != nil {
		return nil, err
	}
	resp := ToClientResponse(client)
	return &resp, nil
}

// Deactivate hides a client from new quotes and invoices.
// Existing documents keep their snapshot of the client name.
func (s *ClientService) Deactivate(ctx context.Context, id uuid.UUID) (*ClientResponse, error) {
	return s.setActive(ctx, id, false)
}

// Activate re-enables a deactivated client
func (s *ClientService) Activate(ctx context.Context, id uuid.UUID) (*ClientResponse, error) {
	return s.setActive(ctx, id, true)
}

func (s *ClientService) setActive(ctx context.Context, id uuid.UUID, active bool) (*ClientResponse, error) {
	client, err := s.clientRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if client.IsActive() == active {
		resp := ToClientResponse(client)
		return &resp, nil
	}
	if active {
		client.Activate()
	} else {
		client.Deactivate()
	}
	if err := s.clientRepo.Save(ctx, client); err != nil {
		return nil, err
	}
	s.logger.Info("client status changed",
		zap.String("client_id", client.ID.String()),
		zap.String("status", string(client.Status)))

	resp := ToClientResponse(client)
	return &resp, nil
}

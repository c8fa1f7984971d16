package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erp/salesops/internal/domain/inventory"
	"github.com/erp/salesops/internal/domain/shared"
)

// InventoryService handles inventory item maintenance.
// Reserved quantities are never written here; see ReservationLedger.
type InventoryService struct {
	inventoryRepo   inventory.InventoryItemRepository
	reservationRepo inventory.ReservationRepository
	eventPublisher  shared.EventPublisher
	logger          *zap.Logger
}

// NewInventoryService creates a new InventoryService
func NewInventoryService(
	inventoryRepo inventory.InventoryItemRepository,
	reservationRepo inventory.ReservationRepository,
	logger *zap.Logger,
) *InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryService{
		inventoryRepo:   inventoryRepo,
		reservationRepo: reservationRepo,
		logger:          logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *InventoryService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// publishDomainEvents publishes all domain events from the inventory item
func (s *InventoryService) publishDomainEvents(ctx context.Context, item *inventory.InventoryItem) {
	if s.eventPublisher == nil {
		return
	}
	events := item.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	// Publish events (errors are logged by the event bus, not propagated)
	_ = s.eventPublisher.Publish(ctx, events...)
	item.ClearDomainEvents()
}

// CreateItem creates a new inventory item. The SKU must be unique.
func (s *InventoryService) CreateItem(ctx context.Context, req CreateItemRequest) (*InventoryItemResponse, error) {
	item, err := inventory.NewInventoryItem(req.SKU, req.Name)
	if err != nil {
		return nil, err
	}

	exists, err := s.inventoryRepo.ExistsBySKU(ctx, item.SKU)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError(shared.CodeAlreadyExists, fmt.Sprintf("SKU %s already exists", item.SKU))
	}

	if req.QtyAvailable != nil {
		if req.QtyAvailable.IsNegative() {
			return nil, shared.NewValidationError("qty_available", "Initial stock cannot be negative")
		}
		item.QtyAvailable = *req.QtyAvailable
	}
	if req.MinStock != nil {
		if err := item.SetMinStock(*req.MinStock); err != nil {
			return nil, err
		}
	}
	if err := item.SetPrices(valueOr(req.PurchasePrice, decimal.Zero), valueOr(req.SalePrice, decimal.Zero)); err != nil {
		return nil, err
	}

	if err := s.inventoryRepo.Save(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info("inventory item created",
		zap.String("item_id", item.ID.String()),
		zap.String("sku", item.SKU),
	)
	resp := ToInventoryItemResponse(item)
	return &resp, nil
}

// GetItem retrieves an inventory item by ID
func (s *InventoryService) GetItem(ctx context.Context, id uuid.UUID) (*InventoryItemResponse, error) {
	item, err := s.inventoryRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToInventoryItemResponse(item)
	return &resp, nil
}

// ListItems lists inventory items with filtering and pagination
func (s *InventoryService) ListItems(ctx context.Context, filter InventoryListFilter) (*shared.Paginated[InventoryItemResponse], error) {
	f := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Search:   filter.Search,
		Filters:  make(map[string]interface{}),
	}
	if filter.BelowMinimum != nil {
		f.Filters["below_minimum"] = *filter.BelowMinimum
	}
	if filter.Oversold != nil {
		f.Filters["oversold"] = *filter.Oversold
	}
	f = f.Normalize()

	items, err := s.inventoryRepo.FindAll(ctx, f)
	if err != nil {
		return nil, err
	}
	total, err := s.inventoryRepo.Count(ctx, f)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(ToInventoryItemResponses(items), total, f.Page, f.PageSize)
	return &page, nil
}

// UpdateItem updates descriptive fields, prices and the minimum stock.
// Stock counters are left to AdjustStock and the reservation ledger.
func (s *InventoryService) UpdateItem(ctx context.Context, id uuid.UUID, req UpdateItemRequest) (*InventoryItemResponse, error) {
	item, err := s.inventoryRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		if err := item.Rename(*req.Name); err != nil {
			return nil, err
		}
	}
	if req.MinStock != nil {
		if err := item.SetMinStock(*req.MinStock); err != nil {
			return nil, err
		}
	}
	if req.PurchasePrice != nil || req.SalePrice != nil {
		if err := item.SetPrices(valueOr(req.PurchasePrice, item.PurchasePrice), valueOr(req.SalePrice, item.SalePrice)); err != nil {
			return nil, err
		}
	}
	item.IncrementVersion()

	if err := s.inventoryRepo.Save(ctx, item); err != nil {
		return nil, err
	}
	resp := ToInventoryItemResponse(item)
	return &resp, nil
}

// AdjustStock applies a manual change to qty_available.
// Reductions below qty_reserved are allowed and leave the item oversold.
func (s *InventoryService) AdjustStock(ctx context.Context, id uuid.UUID, req AdjustStockRequest) (*InventoryItemResponse, error) {
	if err := inventory.ValidateStockAdjustment(req.Delta, req.Reason); err != nil {
		return nil, err
	}
	if err := s.inventoryRepo.AdjustAvailable(ctx, id, req.Delta); err != nil {
		return nil, err
	}
	item, err := s.inventoryRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	item.AddDomainEvent(inventory.NewStockAdjustedEvent(item, item.QtyAvailable.Sub(req.Delta), req.Delta, req.Reason))

	if item.IsOversold() {
		s.logger.Warn("stock adjustment left item oversold",
			zap.String("item_id", item.ID.String()),
			zap.String("sku", item.SKU),
			zap.String("qty_available", item.QtyAvailable.String()),
			zap.String("qty_reserved", item.QtyReserved.String()),
		)
		item.AddDomainEvent(inventory.NewStockOversoldEvent(item))
	}
	s.publishDomainEvents(ctx, item)

	resp := ToInventoryItemResponse(item)
	return &resp, nil
}

// DeleteItem removes an item that no open quote reserves
func (s *InventoryService) DeleteItem(ctx context.Context, id uuid.UUID) error {
	if _, err := s.inventoryRepo.FindByID(ctx, id); err != nil {
		return err
	}
	active, err := s.reservationRepo.CountActiveByItem(ctx, id)
	if err != nil {
		return err
	}
	if active > 0 {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("Inventory item has %d active reservations", active))
	}
	return s.inventoryRepo.Delete(ctx, id)
}

// ListReservations returns the active reservations of an item
func (s *InventoryService) ListReservations(ctx context.Context, itemID uuid.UUID) ([]ReservationResponse, error) {
	if _, err := s.inventoryRepo.FindByID(ctx, itemID); err != nil {
		return nil, err
	}
	reservations, err := s.reservationRepo.FindActiveByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return ToReservationResponses(reservations), nil
}

func valueOr(v *decimal.Decimal, def decimal.Decimal) decimal.Decimal {
	if v == nil {
		return def
	}
	return *v
}

package services

import (
	"context"
	"strings"
	"time"

	"example.com/backstage/services/fridge/internal/apperrors"
	"example.com/backstage/services/fridge/internal/models"
	"example.com/backstage/services/fridge/internal/repositories"

	"github.com/rs/zerolog/log"
)

// ExpiryLayout is the DD-MM-YY date format used for stock intake
const ExpiryLayout = "02-01-06"

// InventoryService covers manual stock intake and removal and catalog reads
type InventoryService struct {
	products  *repositories.ProductRepository
	inventory *repositories.InventoryRepository
	activity  *ActivityLog
	now       Clock
}

// NewInventoryService creates a new inventory service
func NewInventoryService(
	products *repositories.ProductRepository,
	inventory *repositories.InventoryRepository,
	activity *ActivityLog,
	now Clock,
) *InventoryService {
	if now == nil {
		now = SystemClock
	}
	return &InventoryService{products: products, inventory: inventory, activity: activity, now: now}
}

// Receive adds quantity units of an item expiring on expiry (DD-MM-YY)
func (s *InventoryService) Receive(ctx context.Context, itemID, quantity int, expiry string) (*models.InventoryItem, error) {
	if itemID <= 0 || quantity <= 0 {
		return nil, apperrors.InvalidArgument("item id and quantity must be positive integers")
	}
	expiryDate, err := time.Parse(ExpiryLayout, strings.TrimSpace(expiry))
	if err != nil {
		return nil, apperrors.InvalidArgument("expiry must be a DD-MM-YY date")
	}

	exists, err := s.products.Exists(ctx, itemID)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to look up product")
	}
	if !exists {
		return nil, apperrors.NotFound("product %d does not exist", itemID)
	}

	if err := s.inventory.Merge(ctx, itemID, quantity, expiryDate, s.now()); err != nil {
		return nil, apperrors.Storage(err, "failed to add stock")
	}

	log.Info().Int("item_id", itemID).Int("quantity", quantity).Str("expiry", expiry).Msg("Stock received")
	s.activity.Appendf(ctx, "Received %d units of item %d", quantity, itemID)

	return s.get(ctx, itemID)
}

// Consume removes up to quantity units of an item
func (s *InventoryService) Consume(ctx context.Context, itemID, quantity int) (*models.InventoryItem, error) {
	if itemID <= 0 || quantity <= 0 {
		return nil, apperrors.InvalidArgument("item id and quantity must be positive integers")
	}

	err := s.inventory.Consume(ctx, itemID, quantity, s.now())
	if err == repositories.ErrNotFound {
		return nil, apperrors.NotFound("item %d is not in stock", itemID)
	}
	if err != nil {
		return nil, apperrors.Storage(err, "failed to remove stock")
	}

	s.activity.Appendf(ctx, "Removed %d units of item %d", quantity, itemID)
	return s.get(ctx, itemID)
}

// List returns every inventory item
func (s *InventoryService) List(ctx context.Context) ([]models.InventoryItem, error) {
	items, err := s.inventory.List(ctx)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list inventory")
	}
	return items, nil
}

// Products returns the catalog
func (s *InventoryService) Products(ctx context.Context) ([]models.Product, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list products")
	}
	return products, nil
}

// ProductsInStock returns catalog entries with stock on hand
func (s *InventoryService) ProductsInStock(ctx context.Context) ([]models.StockedProduct, error) {
	rows, err := s.products.ListInStock(ctx)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list products in stock")
	}
	return rows, nil
}

// ProductsByName returns the catalog entries named name
func (s *InventoryService) ProductsByName(ctx context.Context, name string) ([]models.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.InvalidArgument("product name is required")
	}
	products, err := s.products.FindByName(ctx, name)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to find products")
	}
	if len(products) == 0 {
		return nil, apperrors.NotFound("no product named %q", name)
	}
	return products, nil
}

func (s *InventoryService) get(ctx context.Context, itemID int) (*models.InventoryItem, error) {
	item, err := s.inventory.Get(ctx, itemID)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to read inventory item")
	}
	return item, nil
}

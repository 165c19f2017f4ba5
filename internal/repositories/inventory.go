package repositories

import (
	"context"
	"time"

	"example.com/backstage/services/fridge/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryRepository provides access to stock levels and expiry dates
type InventoryRepository struct {
	db *gorm.DB
}

// NewInventoryRepository creates a new inventory repository
func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *InventoryRepository) WithTx(tx *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: tx}
}

// Get returns one inventory item
func (r *InventoryRepository) Get(ctx context.Context, itemID int) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.db.WithContext(ctx).Where("item_id = ?", itemID).First(&item).Error
	if err != nil {
		return nil, translate(err, "failed to get inventory item")
	}
	return &item, nil
}

// List returns every inventory item
func (r *InventoryRepository) List(ctx context.Context) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).Order("item_id").Find(&items).Error
	if err != nil {
		return nil, translate(err, "failed to list inventory")
	}
	return items, nil
}

// ListBelow returns items whose quantity is strictly below threshold
func (r *InventoryRepository) ListBelow(ctx context.Context, threshold int) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("quantity < ?", threshold).
		Order("item_id").
		Find(&items).Error
	if err != nil {
		return nil, translate(err, "failed to list low stock items")
	}
	return items, nil
}

// ListExpiredBefore returns items whose expiry is strictly before t
func (r *InventoryRepository) ListExpiredBefore(ctx context.Context, t time.Time) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("expiry_date < ?", t.UTC()).
		Order("item_id").
		Find(&items).Error
	if err != nil {
		return nil, translate(err, "failed to list expired items")
	}
	return items, nil
}

// ListExpiringBetween returns items expiring in [from, to)
func (r *InventoryRepository) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("expiry_date >= ? AND expiry_date < ?", from.UTC(), to.UTC()).
		Order("expiry_date").
		Find(&items).Error
	if err != nil {
		return nil, translate(err, "failed to list expiring items")
	}
	return items, nil
}

// Delete removes an item. It is unconditional.
func (r *InventoryRepository) Delete(ctx context.Context, itemID int) error {
	result := r.db.WithContext(ctx).Where("item_id = ?", itemID).Delete(&models.InventoryItem{})
	if result.Error != nil {
		return translate(result.Error, "failed to delete inventory item")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Merge adds delta to the stock of itemID, creating the row when absent.
// A new row takes expiry. An existing row keeps its expiry unless it had run
// out of stock or its expiry has already passed at now, in which case the
// incoming expiry replaces the stale one.
func (r *InventoryRepository) Merge(ctx context.Context, itemID, delta int, expiry time.Time, now time.Time) error {
	item := models.InventoryItem{
		ItemID:      itemID,
		Quantity:    delta,
		ExpiryDate:  expiry.UTC(),
		LastUpdated: now.UTC(),
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "item_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":     gorm.Expr("inventory.quantity + excluded.quantity"),
			"expiry_date":  gorm.Expr("CASE WHEN inventory.quantity <= 0 OR inventory.expiry_date < excluded.last_updated THEN excluded.expiry_date ELSE inventory.expiry_date END"),
			"last_updated": gorm.Expr("excluded.last_updated"),
		}),
	}).Create(&item).Error
	if err != nil {
		return translate(err, "failed to merge inventory item")
	}
	return nil
}

// Consume removes quantity from an item, never going below zero
func (r *InventoryRepository) Consume(ctx context.Context, itemID, quantity int, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("item_id = ?", itemID).
		Updates(map[string]interface{}{
			"quantity":     gorm.Expr("CASE WHEN quantity > ? THEN quantity - ? ELSE 0 END", quantity, quantity),
			"last_updated": now.UTC(),
		})
	if result.Error != nil {
		return translate(result.Error, "failed to consume inventory item")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

package repositories

import (
	"context"

	"example.com/backstage/services/fridge/internal/models"

	"gorm.io/gorm"
)

// OrderLineRepository provides access to weekly order lines
type OrderLineRepository struct {
	db *gorm.DB
}

// NewOrderLineRepository creates a new order line repository
func NewOrderLineRepository(db *gorm.DB) *OrderLineRepository {
	return &OrderLineRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *OrderLineRepository) WithTx(tx *gorm.DB) *OrderLineRepository {
	return &OrderLineRepository{db: tx}
}

// Create inserts a line. The (order_id, product_id) unique index rejects
// duplicates with ErrDuplicateKey.
func (r *OrderLineRepository) Create(ctx context.Context, line *models.OrderLine) error {
	return translate(r.db.WithContext(ctx).Create(line).Error, "failed to create order line")
}

// Get returns one line
func (r *OrderLineRepository) Get(ctx context.Context, orderID string, productID int) (*models.OrderLine, error) {
	var line models.OrderLine
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND product_id = ?", orderID, productID).
		First(&line).Error
	if err != nil {
		return nil, translate(err, "failed to get order line")
	}
	return &line, nil
}

// Exists reports whether the order already holds a line for the product
func (r *OrderLineRepository) Exists(ctx context.Context, orderID string, productID int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderLine{}).
		Where("order_id = ? AND product_id = ?", orderID, productID).
		Count(&count).Error
	if err != nil {
		return false, translate(err, "failed to check order line")
	}
	return count > 0, nil
}

// ExistingProducts returns which of productIDs already have a line in the order
func (r *OrderLineRepository) ExistingProducts(ctx context.Context, orderID string, productIDs []int) (map[int]bool, error) {
	out := make(map[int]bool, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	var found []int
	err := r.db.WithContext(ctx).
		Model(&models.OrderLine{}).
		Where("order_id = ? AND product_id IN ?", orderID, productIDs).
		Pluck("product_id", &found).Error
	if err != nil {
		return nil, translate(err, "failed to check order lines")
	}
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}

// Delete removes one line
func (r *OrderLineRepository) Delete(ctx context.Context, orderID string, productID int) error {
	result := r.db.WithContext(ctx).
		Where("order_id = ? AND product_id = ?", orderID, productID).
		Delete(&models.OrderLine{})
	if result.Error != nil {
		return translate(result.Error, "failed to delete order line")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateQuantity replaces the quantity of one line
func (r *OrderLineRepository) UpdateQuantity(ctx context.Context, orderID string, productID, quantity int) error {
	result := r.db.WithContext(ctx).
		Model(&models.OrderLine{}).
		Where("order_id = ? AND product_id = ?", orderID, productID).
		Update("quantity", quantity)
	if result.Error != nil {
		return translate(result.Error, "failed to update order line")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStatus sets the status of the order's lines for the given products and
// returns the number of rows changed
func (r *OrderLineRepository) SetStatus(ctx context.Context, orderID string, productIDs []int, status models.LineStatus) (int64, error) {
	if len(productIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.OrderLine{}).
		Where("order_id = ? AND product_id IN ?", orderID, productIDs).
		Update("status", status)
	if result.Error != nil {
		return 0, translate(result.Error, "failed to update order line status")
	}
	return result.RowsAffected, nil
}

// SetStatusFrom moves every line of the order in status from to status to
func (r *OrderLineRepository) SetStatusFrom(ctx context.Context, orderID string, from, to models.LineStatus) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.OrderLine{}).
		Where("order_id = ? AND status = ?", orderID, from).
		Update("status", to)
	if result.Error != nil {
		return 0, translate(result.Error, "failed to update order line status")
	}
	return result.RowsAffected, nil
}

// List returns the order's lines
func (r *OrderLineRepository) List(ctx context.Context, orderID string) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("ordered_at, product_id").
		Find(&lines).Error
	if err != nil {
		return nil, translate(err, "failed to list order lines")
	}
	return lines, nil
}

// ListByStatus returns the order's lines in status
func (r *OrderLineRepository) ListByStatus(ctx context.Context, orderID string, status models.LineStatus) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, status).
		Order("product_id").
		Find(&lines).Error
	if err != nil {
		return nil, translate(err, "failed to list order lines")
	}
	return lines, nil
}

// ListWithCatalog returns the order's lines joined with product name and price
func (r *OrderLineRepository) ListWithCatalog(ctx context.Context, orderID string) ([]models.OrderLineDetail, error) {
	var rows []models.OrderLineDetail
	err := r.db.WithContext(ctx).
		Table("orders AS o").
		Select("o.order_id, o.product_id, o.quantity, o.ordered_at, o.status, o.trigger_type, COALESCE(p.name, '') AS name, COALESCE(p.price, 0) AS price").
		Joins("LEFT JOIN products AS p ON p.product_id = o.product_id").
		Where("o.order_id = ?", orderID).
		Order("o.ordered_at, o.product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err, "failed to list order lines")
	}
	return rows, nil
}

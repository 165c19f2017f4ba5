package repositories

import (
	"context"

	"example.com/backstage/services/fridge/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeliveryRepository provides access to weekly deliveries
type DeliveryRepository struct {
	db *gorm.DB
}

// NewDeliveryRepository creates a new delivery repository
func NewDeliveryRepository(db *gorm.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *DeliveryRepository) WithTx(tx *gorm.DB) *DeliveryRepository {
	return &DeliveryRepository{db: tx}
}

// Create inserts a delivery. A second delivery for the same order is
// rejected with ErrDuplicateKey.
func (r *DeliveryRepository) Create(ctx context.Context, delivery *models.Delivery) error {
	if delivery.DeliveryID == uuid.Nil {
		delivery.DeliveryID = uuid.New()
	}
	return translate(r.db.WithContext(ctx).Create(delivery).Error, "failed to create delivery")
}

// GetByID returns a delivery by its surrogate id
func (r *DeliveryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.WithContext(ctx).Where("delivery_id = ?", id).First(&delivery).Error
	if err != nil {
		return nil, translate(err, "failed to get delivery")
	}
	return &delivery, nil
}

// GetByOrderID returns the delivery created for an order
func (r *DeliveryRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&delivery).Error
	if err != nil {
		return nil, translate(err, "failed to get delivery")
	}
	return &delivery, nil
}

// GetByAccessCode returns the delivery currently holding code
func (r *DeliveryRepository) GetByAccessCode(ctx context.Context, code int) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.WithContext(ctx).Where("access_code = ?", code).First(&delivery).Error
	if err != nil {
		return nil, translate(err, "failed to get delivery")
	}
	return &delivery, nil
}

// ExistsForOrder reports whether the order already has a delivery
func (r *DeliveryRepository) ExistsForOrder(ctx context.Context, orderID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Delivery{}).Where("order_id = ?", orderID).Count(&count).Error
	if err != nil {
		return false, translate(err, "failed to check delivery")
	}
	return count > 0, nil
}

// Transition moves a delivery from one status to the next. It returns
// false when the row was not in status from, and ErrInvalidTransition when
// to does not directly follow from.
func (r *DeliveryRepository) Transition(ctx context.Context, id uuid.UUID, from, to models.DeliveryStatus) (bool, error) {
	if !from.CanAdvanceTo(to) {
		return false, ErrInvalidTransition
	}
	result := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("delivery_id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, translate(result.Error, "failed to update delivery status")
	}
	return result.RowsAffected > 0, nil
}

// MarkDelivered applies a driver confirmation to an in-process delivery and
// clears its access code
func (r *DeliveryRepository) MarkDelivered(ctx context.Context, id uuid.UUID, undelivered int, notes *string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("delivery_id = ? AND status = ?", id, models.DeliveryInProcess).
		Updates(map[string]interface{}{
			"access_code":       nil,
			"items_undelivered": undelivered,
			"status":            models.DeliveryDelivered,
			"delivery_notes":    notes,
			"is_delivered":      true,
		})
	if result.Error != nil {
		return false, translate(result.Error, "failed to confirm delivery")
	}
	return result.RowsAffected > 0, nil
}

// MarkChecked completes a delivered order. Only a delivered, unchecked row
// moves, so it succeeds at most once per delivery.
func (r *DeliveryRepository) MarkChecked(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("delivery_id = ? AND is_delivered = ? AND is_checked = ?", id, true, false).
		Updates(map[string]interface{}{
			"is_checked": true,
			"status":     models.DeliveryCompleted,
		})
	if result.Error != nil {
		return false, translate(result.Error, "failed to finalize delivery")
	}
	return result.RowsAffected > 0, nil
}

// List returns deliveries, newest first
func (r *DeliveryRepository) List(ctx context.Context, limit int) ([]models.Delivery, error) {
	var deliveries []models.Delivery
	q := r.db.WithContext(ctx).Order("delivery_date DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&deliveries).Error; err != nil {
		return nil, translate(err, "failed to list deliveries")
	}
	return deliveries, nil
}

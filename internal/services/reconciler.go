package services

import (
	"context"
	"time"

	"example.com/backstage/services/fridge/internal/apperrors"
	"example.com/backstage/services/fridge/internal/messaging"
	"example.com/backstage/services/fridge/internal/metrics"
	"example.com/backstage/services/fridge/internal/models"
	"example.com/backstage/services/fridge/internal/repositories"
	"example.com/backstage/services/fridge/internal/search"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var errAlreadyFinalized = errors.New("delivery already finalized")

// FinalizeResult is the completed delivery and the stock it added
type FinalizeResult struct {
	Delivery *models.Delivery   `json:"delivery"`
	Merged   []models.OrderLine `json:"merged"`
	Expiry   time.Time          `json:"expiry"`
}

// InventoryReconciler merges a delivered order into inventory
type InventoryReconciler struct {
	db         *gorm.DB
	deliveries *repositories.DeliveryRepository
	lines      *repositories.OrderLineRepository
	inventory  *repositories.InventoryRepository
	activity   *ActivityLog
	notifier   messaging.Notifier
	indexer    search.Indexer
	metrics    *metrics.Metrics
	shelfLife  time.Duration
	now        Clock
}

// NewInventoryReconciler creates a reconciler stamping delivered stock with
// an expiry of now plus shelfLife
func NewInventoryReconciler(
	db *gorm.DB,
	deliveries *repositories.DeliveryRepository,
	lines *repositories.OrderLineRepository,
	inventory *repositories.InventoryRepository,
	activity *ActivityLog,
	notifier messaging.Notifier,
	indexer search.Indexer,
	m *metrics.Metrics,
	shelfLife time.Duration,
	now Clock,
) *InventoryReconciler {
	if notifier == nil {
		notifier = messaging.NopNotifier{}
	}
	if indexer == nil {
		indexer = search.NopIndexer{}
	}
	if now == nil {
		now = SystemClock
	}
	return &InventoryReconciler{
		db:         db,
		deliveries: deliveries,
		lines:      lines,
		inventory:  inventory,
		activity:   activity,
		notifier:   notifier,
		indexer:    indexer,
		metrics:    m,
		shelfLife:  shelfLife,
		now:        now,
	}
}

// Finalize completes a delivered order and adds its delivered lines to
// stock. It succeeds once per order.
func (r *InventoryReconciler) Finalize(ctx context.Context, orderID string) (*FinalizeResult, error) {
	delivery, err := r.deliveries.GetByOrderID(ctx, orderID)
	if err == repositories.ErrNotFound {
		return nil, apperrors.NotFound("no delivery exists for order %s", orderID)
	}
	if err != nil {
		return nil, apperrors.Storage(err, "failed to read delivery")
	}
	if !delivery.IsDelivered {
		return nil, apperrors.InvalidArgument("order %s has not been delivered yet", orderID)
	}
	if delivery.IsChecked {
		return nil, apperrors.Conflict("order %s is already finalized", orderID)
	}

	now := r.now().UTC()
	result := &FinalizeResult{Expiry: now.Add(r.shelfLife)}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := r.deliveries.WithTx(tx).MarkChecked(ctx, delivery.DeliveryID)
		if err != nil {
			return err
		}
		if !ok {
			return errAlreadyFinalized
		}

		delivered, err := r.lines.WithTx(tx).ListByStatus(ctx, orderID, models.LineDelivered)
		if err != nil {
			return err
		}

		inventory := r.inventory.WithTx(tx)
		for _, line := range delivered {
			if err := inventory.Merge(ctx, line.ProductID, line.Quantity, result.Expiry, now); err != nil {
				return err
			}
		}
		result.Merged = delivered
		return nil
	})
	if err == errAlreadyFinalized {
		return nil, apperrors.Conflict("order %s is already finalized", orderID)
	}
	if err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("Failed to finalize order")
		return nil, apperrors.Storage(err, "failed to finalize order")
	}

	units := 0
	for _, line := range result.Merged {
		units += line.Quantity
	}

	r.metrics.IncrementCounter(metrics.OrdersFinalized)
	log.Info().Str("order_id", orderID).Int("lines", len(result.Merged)).Int("units", units).Msg("Order finalized")
	r.activity.Appendf(ctx, "Order %s completed: %d lines (%d units) added to inventory", orderID, len(result.Merged), units)

	result.Delivery, err = r.deliveries.GetByID(ctx, delivery.DeliveryID)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to read delivery")
	}

	if err := r.indexer.IndexDelivery(ctx, result.Delivery); err != nil {
		log.Warn().Err(err).Str("order_id", orderID).Msg("Failed to index delivery")
	}
	err = r.notifier.Notify(ctx, messaging.Notification{
		Type:       messaging.TypeDeliveryFinished,
		OrderID:    orderID,
		DeliveryID: delivery.DeliveryID.String(),
		Message:    "Order " + orderID + " completed",
		Time:       now,
	})
	if err != nil {
		log.Warn().Err(err).Str("order_id", orderID).Msg("Failed to send completion notification")
	}

	return result, nil
}

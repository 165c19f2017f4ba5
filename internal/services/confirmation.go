package services

import (
	"context"

	"example.com/backstage/services/fridge/internal/apperrors"
	"example.com/backstage/services/fridge/internal/metrics"
	"example.com/backstage/services/fridge/internal/models"
	"example.com/backstage/services/fridge/internal/repositories"
	"example.com/backstage/services/fridge/internal/search"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var errStateChanged = errors.New("delivery status changed concurrently")

// ConfirmRequest is a driver's confirmation of what was handed over.
// Delivered must be present, even if empty.
type ConfirmRequest struct {
	DeliveryID  uuid.UUID
	Delivered   []int
	Undelivered []int
	Notes       *string
}

// ConfirmationEngine drives a delivery from Processed to Delivered
type ConfirmationEngine struct {
	db         *gorm.DB
	deliveries *repositories.DeliveryRepository
	lines      *repositories.OrderLineRepository
	codes      *repositories.AccessCodeRepository
	activity   *ActivityLog
	indexer    search.Indexer
	metrics    *metrics.Metrics
}

// NewConfirmationEngine creates a new confirmation engine
func NewConfirmationEngine(
	db *gorm.DB,
	deliveries *repositories.DeliveryRepository,
	lines *repositories.OrderLineRepository,
	codes *repositories.AccessCodeRepository,
	activity *ActivityLog,
	indexer search.Indexer,
	m *metrics.Metrics,
) *ConfirmationEngine {
	if indexer == nil {
		indexer = search.NopIndexer{}
	}
	return &ConfirmationEngine{
		db:         db,
		deliveries: deliveries,
		lines:      lines,
		codes:      codes,
		activity:   activity,
		indexer:    indexer,
		metrics:    m,
	}
}

// RecordDriverLogin authenticates a driver by access code and marks the
// delivery as in process. Logging in again before confirming is allowed.
func (e *ConfirmationEngine) RecordDriverLogin(ctx context.Context, code int) (*models.Delivery, error) {
	delivery, err := e.deliveries.GetByAccessCode(ctx, code)
	if err == repositories.ErrNotFound {
		return nil, apperrors.Unauthorized("invalid access code")
	}
	if err != nil {
		return nil, apperrors.Storage(err, "failed to verify access code")
	}

	switch delivery.Status {
	case models.DeliveryInProcess:
		return delivery, nil
	case models.DeliveryProcessed:
	default:
		return nil, apperrors.Unauthorized("access code is no longer valid")
	}

	ok, err := e.deliveries.Transition(ctx, delivery.DeliveryID, models.DeliveryProcessed, models.DeliveryInProcess)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to start delivery")
	}
	if !ok {
		// another login won the transition
		return e.reload(ctx, delivery.DeliveryID)
	}
	delivery.Status = models.DeliveryInProcess

	log.Info().Str("order_id", delivery.OrderID).Str("delivery_id", delivery.DeliveryID.String()).Msg("Driver logged in")
	e.activity.Appendf(ctx, "Order %s status changed to %s", delivery.OrderID, delivery.Status)
	e.project(ctx, delivery)

	return delivery, nil
}

// ConfirmDelivery applies a driver confirmation. Line statuses, the delivery
// row and the access code release commit together or not at all.
func (e *ConfirmationEngine) ConfirmDelivery(ctx context.Context, req ConfirmRequest) (*models.Delivery, error) {
	if req.Delivered == nil {
		return nil, apperrors.InvalidArgument("delivered items are required")
	}

	delivery, err := e.deliveries.GetByID(ctx, req.DeliveryID)
	if err == repositories.ErrNotFound {
		return nil, apperrors.NotFound("delivery %s does not exist", req.DeliveryID)
	}
	if err != nil {
		return nil, apperrors.Storage(err, "failed to read delivery")
	}
	if delivery.Status != models.DeliveryInProcess {
		return nil, apperrors.InvalidArgument("delivery for order %s is %s, not in process", delivery.OrderID, delivery.Status)
	}

	if err := e.checkItems(ctx, delivery.OrderID, req); err != nil {
		return nil, err
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lines := e.lines.WithTx(tx)
		if _, err := lines.SetStatus(ctx, delivery.OrderID, req.Delivered, models.LineDelivered); err != nil {
			return err
		}
		if _, err := lines.SetStatus(ctx, delivery.OrderID, req.Undelivered, models.LineUndelivered); err != nil {
			return err
		}

		ok, err := e.deliveries.WithTx(tx).MarkDelivered(ctx, delivery.DeliveryID, len(req.Undelivered), req.Notes)
		if err != nil {
			return err
		}
		if !ok {
			return errStateChanged
		}

		if delivery.AccessCode != nil {
			return e.codes.WithTx(tx).Release(ctx, *delivery.AccessCode)
		}
		return nil
	})
	if err != nil {
		e.metrics.IncrementCounter(metrics.ConfirmFailures)
		log.Error().Err(err).Str("order_id", delivery.OrderID).Str("delivery_id", delivery.DeliveryID.String()).Msg("Delivery confirmation rolled back")
		e.activity.Appendf(ctx, "Failed to confirm delivery for order %s", delivery.OrderID)
		if err == errStateChanged {
			return nil, apperrors.Conflict("delivery for order %s was already confirmed", delivery.OrderID)
		}
		return nil, apperrors.Storage(err, "failed to confirm delivery")
	}

	e.metrics.IncrementCounter(metrics.DeliveriesConfirmed)
	log.Info().
		Str("order_id", delivery.OrderID).
		Int("delivered", len(req.Delivered)).
		Int("undelivered", len(req.Undelivered)).
		Msg("Delivery confirmed")
	e.activity.Appendf(ctx, "Order %s delivered: %d lines delivered, %d undelivered", delivery.OrderID, len(req.Delivered), len(req.Undelivered))

	confirmed, err := e.reload(ctx, delivery.DeliveryID)
	if err != nil {
		return nil, err
	}
	e.project(ctx, confirmed)
	return confirmed, nil
}

// checkItems requires every product to be a line of the order and to appear
// in at most one of the two lists
func (e *ConfirmationEngine) checkItems(ctx context.Context, orderID string, req ConfirmRequest) error {
	ids := append(append([]int{}, req.Delivered...), req.Undelivered...)
	existing, err := e.lines.ExistingProducts(ctx, orderID, ids)
	if err != nil {
		return apperrors.Storage(err, "failed to read order")
	}

	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return apperrors.InvalidArgument("product %d is listed more than once", id)
		}
		seen[id] = true
		if !existing[id] {
			return apperrors.InvalidArgument("product %d is not in order %s", id, orderID)
		}
	}
	return nil
}

func (e *ConfirmationEngine) reload(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	delivery, err := e.deliveries.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to read delivery")
	}
	return delivery, nil
}

func (e *ConfirmationEngine) project(ctx context.Context, delivery *models.Delivery) {
	if err := e.indexer.IndexDelivery(ctx, delivery); err != nil {
		log.Warn().Err(err).Str("delivery_id", delivery.DeliveryID.String()).Msg("Failed to index delivery")
	}
}

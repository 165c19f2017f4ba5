package services

import (
	"context"
	"fmt"
	"time"

	"example.com/backstage/services/fridge/internal/apperrors"
	"example.com/backstage/services/fridge/internal/messaging"
	"example.com/backstage/services/fridge/internal/metrics"
	"example.com/backstage/services/fridge/internal/models"
	"example.com/backstage/services/fridge/internal/orderid"
	"example.com/backstage/services/fridge/internal/repositories"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ExpiryReport summarizes one expiry scan
type ExpiryReport struct {
	ExpiringSoon []models.InventoryItem `json:"expiringSoon"`
	Removed      []int                  `json:"removed"`
	Failed       []int                  `json:"failed"`
}

// ExpiryScanner flags stock close to expiry and removes expired stock
type ExpiryScanner struct {
	db        *gorm.DB
	inventory *repositories.InventoryRepository
	ledger    *OrderLedger
	activity  *ActivityLog
	notifier  messaging.Notifier
	metrics   *metrics.Metrics
	lookahead time.Duration
	now       Clock
}

// NewExpiryScanner creates a scanner warning about items expiring within
// lookahead
func NewExpiryScanner(
	db *gorm.DB,
	inventory *repositories.InventoryRepository,
	ledger *OrderLedger,
	activity *ActivityLog,
	notifier messaging.Notifier,
	m *metrics.Metrics,
	lookahead time.Duration,
	now Clock,
) *ExpiryScanner {
	if notifier == nil {
		notifier = messaging.NopNotifier{}
	}
	if now == nil {
		now = SystemClock
	}
	return &ExpiryScanner{
		db:        db,
		inventory: inventory,
		ledger:    ledger,
		activity:  activity,
		notifier:  notifier,
		metrics:   m,
		lookahead: lookahead,
		now:       now,
	}
}

// Scan runs both passes. A failing pass is logged and does not stop the
// other; the first failure is returned.
func (s *ExpiryScanner) Scan(ctx context.Context) (*ExpiryReport, error) {
	start := time.Now()
	defer s.metrics.Since(metrics.TaskDuration+".expiry_scan", start)
	s.metrics.IncrementCounter(metrics.ExpiryScanRuns)

	report := &ExpiryReport{}
	var firstErr error

	soon, err := s.ReportExpiringSoon(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Expiring soon pass failed")
		firstErr = err
	}
	report.ExpiringSoon = soon

	removed, failed, err := s.RemoveExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Expired stock pass failed")
		if firstErr == nil {
			firstErr = err
		}
	}
	report.Removed = removed
	report.Failed = failed

	return report, firstErr
}

// ReportExpiringSoon returns items expiring within the lookahead window that
// are not in the current order. Inventory is left untouched.
func (s *ExpiryScanner) ReportExpiringSoon(ctx context.Context) ([]models.InventoryItem, error) {
	now := s.now().UTC()
	orderID := orderid.Current(now)

	items, err := s.inventory.ListExpiringBetween(ctx, now, now.Add(s.lookahead))
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list expiring stock")
	}

	var out []models.InventoryItem
	for _, item := range items {
		has, err := s.ledger.HasLine(ctx, orderID, item.ItemID)
		if err != nil {
			log.Error().Err(err).Int("item_id", item.ItemID).Msg("Failed to check order for expiring item")
			continue
		}
		if has {
			continue
		}

		out = append(out, item)
		log.Warn().
			Int("item_id", item.ItemID).
			Int("quantity", item.Quantity).
			Time("expiry_date", item.ExpiryDate).
			Str("order_id", orderID).
			Msg("Item expiring soon, review for reorder")

		err = s.notifier.Notify(ctx, messaging.Notification{
			Type:    messaging.TypeExpiringSoon,
			OrderID: orderID,
			ItemID:  item.ItemID,
			Message: fmt.Sprintf("Item %d expires on %s and is not in order %s", item.ItemID, item.ExpiryDate.Format("02-01-06"), orderID),
			Time:    now,
		})
		if err != nil {
			log.Warn().Err(err).Int("item_id", item.ItemID).Msg("Failed to send expiry notification")
		}
	}

	s.metrics.IncrementCounterBy(metrics.ExpiringSoonItems, int64(len(out)))
	return out, nil
}

// RemoveExpired deletes every item whose expiry is in the past. Each removal
// and its activity entry commit together.
func (s *ExpiryScanner) RemoveExpired(ctx context.Context) (removed, failed []int, err error) {
	now := s.now().UTC()

	items, err := s.inventory.ListExpiredBefore(ctx, now)
	if err != nil {
		return nil, nil, apperrors.Storage(err, "failed to list expired stock")
	}

	for _, item := range items {
		if err := s.remove(ctx, item); err != nil {
			log.Error().Err(err).Int("item_id", item.ItemID).Msg("Failed to remove expired item")
			s.metrics.IncrementCounter(metrics.ExpiryScanItemErrors)
			failed = append(failed, item.ItemID)
			continue
		}
		removed = append(removed, item.ItemID)

		err = s.notifier.Notify(ctx, messaging.Notification{
			Type:    messaging.TypeItemExpired,
			ItemID:  item.ItemID,
			Message: fmt.Sprintf("Removed %d units of expired item %d", item.Quantity, item.ItemID),
			Time:    now,
		})
		if err != nil {
			log.Warn().Err(err).Int("item_id", item.ItemID).Msg("Failed to send expiry notification")
		}
	}

	s.metrics.IncrementCounterBy(metrics.ExpiredItemsRemoved, int64(len(removed)))
	return removed, failed, nil
}

func (s *ExpiryScanner) remove(ctx context.Context, item models.InventoryItem) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		message := fmt.Sprintf("Removed expired item %d (%d units, expired %s)",
			item.ItemID, item.Quantity, item.ExpiryDate.Format("02-01-06"))
		if _, err := s.activity.WithTx(tx).Append(ctx, message); err != nil {
			return err
		}
		return s.inventory.WithTx(tx).Delete(ctx, item.ItemID)
	})
}

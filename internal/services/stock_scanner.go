package services

import (
	"context"
	"fmt"
	"time"

	"example.com/backstage/services/fridge/internal/apperrors"
	"example.com/backstage/services/fridge/internal/metrics"
	"example.com/backstage/services/fridge/internal/models"
	"example.com/backstage/services/fridge/internal/orderid"
	"example.com/backstage/services/fridge/internal/repositories"

	"github.com/rs/zerolog/log"
)

// ScanReport summarizes one low-stock scan
type ScanReport struct {
	OrderID string `json:"orderID"`
	Added   []int  `json:"added"`
	Skipped []int  `json:"skipped"`
	Failed  []int  `json:"failed"`
}

// StockScanner queues replenishment lines for items running low
type StockScanner struct {
	inventory *repositories.InventoryRepository
	products  *repositories.ProductRepository
	ledger    *OrderLedger
	activity  *ActivityLog
	metrics   *metrics.Metrics
	threshold int
	quantity  int
	now       Clock
}

// NewStockScanner creates a scanner adding quantity units of every item
// whose stock is below threshold
func NewStockScanner(
	inventory *repositories.InventoryRepository,
	products *repositories.ProductRepository,
	ledger *OrderLedger,
	activity *ActivityLog,
	m *metrics.Metrics,
	threshold, quantity int,
	now Clock,
) *StockScanner {
	if now == nil {
		now = SystemClock
	}
	return &StockScanner{
		inventory: inventory,
		products:  products,
		ledger:    ledger,
		activity:  activity,
		metrics:   m,
		threshold: threshold,
		quantity:  quantity,
		now:       now,
	}
}

// Scan checks stock against the current week's order
func (s *StockScanner) Scan(ctx context.Context) (*ScanReport, error) {
	return s.ScanOrder(ctx, orderid.Current(s.now()))
}

// ScanOrder adds a replenishment line to orderID for every low item that is
// not already in it. Running it twice adds nothing the second time.
func (s *StockScanner) ScanOrder(ctx context.Context, orderID string) (*ScanReport, error) {
	start := time.Now()
	defer s.metrics.Since(metrics.TaskDuration+".stock_scan", start)
	s.metrics.IncrementCounter(metrics.StockScanRuns)

	items, err := s.inventory.ListBelow(ctx, s.threshold)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list low stock")
	}

	report := &ScanReport{OrderID: orderID}
	for _, item := range items {
		added, err := s.replenish(ctx, orderID, item)
		switch {
		case err != nil:
			log.Error().Err(err).Str("order_id", orderID).Int("item_id", item.ItemID).Msg("Failed to replenish item")
			s.metrics.IncrementCounter(metrics.StockScanItemErrors)
			report.Failed = append(report.Failed, item.ItemID)
		case added:
			report.Added = append(report.Added, item.ItemID)
		default:
			report.Skipped = append(report.Skipped, item.ItemID)
		}
	}

	s.metrics.IncrementCounterBy(metrics.StockLinesAdded, int64(len(report.Added)))
	log.Info().
		Str("order_id", orderID).
		Int("low", len(items)).
		Int("added", len(report.Added)).
		Int("failed", len(report.Failed)).
		Msg("Stock scan finished")

	return report, nil
}

func (s *StockScanner) replenish(ctx context.Context, orderID string, item models.InventoryItem) (bool, error) {
	has, err := s.ledger.HasLine(ctx, orderID, item.ItemID)
	if err != nil {
		return false, err
	}
	if has {
		return false, nil
	}

	_, err = s.ledger.AddLine(ctx, orderID, item.ItemID, s.quantity, models.TriggerSystem)
	if apperrors.IsConflict(err) {
		// a user added it between the check and the insert
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.activity.Appendf(ctx, "Low stock: added %d x %s to order %s", s.quantity, s.productName(ctx, item.ItemID), orderID)
	return true, nil
}

func (s *StockScanner) productName(ctx context.Context, productID int) string {
	p, err := s.products.Get(ctx, productID)
	if err != nil {
		return fmt.Sprintf("item %d", productID)
	}
	return fmt.Sprintf("%s (item %d)", p.Name, productID)
}

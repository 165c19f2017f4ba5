package services

import (
	"context"
	"time"

	"example.com/backstage/services/fridge/internal/apperrors"
	"example.com/backstage/services/fridge/internal/messaging"
	"example.com/backstage/services/fridge/internal/metrics"
	"example.com/backstage/services/fridge/internal/models"
	"example.com/backstage/services/fridge/internal/orderid"
	"example.com/backstage/services/fridge/internal/repositories"
	"example.com/backstage/services/fridge/internal/search"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CycleReport summarizes one weekly delivery cycle
type CycleReport struct {
	OrderID  string           `json:"orderID"`
	Delivery *models.Delivery `json:"delivery,omitempty"`
	Seed     *ScanReport      `json:"seed,omitempty"`
}

// DeliveryProcessor turns last week's order into a delivery and seeds the
// new week's order
type DeliveryProcessor struct {
	db         *gorm.DB
	products   *repositories.ProductRepository
	lines      *repositories.OrderLineRepository
	deliveries *repositories.DeliveryRepository
	codes      *AccessCodeIssuer
	stock      *StockScanner
	activity   *ActivityLog
	notifier   messaging.Notifier
	indexer    search.Indexer
	metrics    *metrics.Metrics
	currency   string
	now        Clock
}

// DeliveryProcessorDeps holds the collaborators of a DeliveryProcessor
type DeliveryProcessorDeps struct {
	DB         *gorm.DB
	Products   *repositories.ProductRepository
	Lines      *repositories.OrderLineRepository
	Deliveries *repositories.DeliveryRepository
	Codes      *AccessCodeIssuer
	Stock      *StockScanner
	Activity   *ActivityLog
	Notifier   messaging.Notifier
	Indexer    search.Indexer
	Metrics    *metrics.Metrics
	Currency   string
	Now        Clock
}

// NewDeliveryProcessor creates a new delivery processor
func NewDeliveryProcessor(deps DeliveryProcessorDeps) *DeliveryProcessor {
	p := &DeliveryProcessor{
		db:         deps.DB,
		products:   deps.Products,
		lines:      deps.Lines,
		deliveries: deps.Deliveries,
		codes:      deps.Codes,
		stock:      deps.Stock,
		activity:   deps.Activity,
		notifier:   deps.Notifier,
		indexer:    deps.Indexer,
		metrics:    deps.Metrics,
		currency:   deps.Currency,
		now:        deps.Now,
	}
	if p.notifier == nil {
		p.notifier = messaging.NopNotifier{}
	}
	if p.indexer == nil {
		p.indexer = search.NopIndexer{}
	}
	if p.now == nil {
		p.now = SystemClock
	}
	return p
}

// RunWeeklyCycle creates the delivery for last week's order, then queues
// replenishment for the new week. The second step runs even when the first
// fails; the first error is returned after both.
func (p *DeliveryProcessor) RunWeeklyCycle(ctx context.Context) (*CycleReport, error) {
	start := time.Now()
	now := p.now().UTC()
	report := &CycleReport{OrderID: orderid.Previous(now)}

	delivery, err := p.FinalizeOrder(ctx, report.OrderID)
	switch {
	case apperrors.IsNotFound(err), apperrors.IsConflict(err):
		// empty week or delivery already made by an earlier run
		log.Info().Str("order_id", report.OrderID).Str("reason", apperrors.PublicMessage(err)).Msg("No delivery to create")
		err = nil
	case err != nil:
		log.Error().Err(err).Str("order_id", report.OrderID).Msg("Failed to process weekly delivery")
		p.activity.Appendf(ctx, "Failed to process delivery for order %s: %s", report.OrderID, apperrors.PublicMessage(err))
	}
	report.Delivery = delivery

	seed, serr := p.SeedOrder(ctx)
	if serr != nil {
		log.Error().Err(serr).Msg("Failed to seed new order")
		if err == nil {
			err = serr
		}
	}
	report.Seed = seed

	p.metrics.RecordOutcome(metrics.DeliveryCycle, err)
	p.metrics.Since(metrics.TaskDuration+".weekly_delivery", start)
	return report, err
}

// FinalizeOrder creates the delivery for orderID. Its lines move from
// Processing to Ordered in the same transaction.
func (p *DeliveryProcessor) FinalizeOrder(ctx context.Context, orderID string) (*models.Delivery, error) {
	if !orderid.Valid(orderID) {
		return nil, apperrors.InvalidArgument("invalid order id %q", orderID)
	}

	exists, err := p.deliveries.ExistsForOrder(ctx, orderID)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to check delivery")
	}
	if exists {
		return nil, apperrors.Conflict("order %s already has a delivery", orderID)
	}

	lines, err := p.lines.List(ctx, orderID)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to read order")
	}
	if len(lines) == 0 {
		return nil, apperrors.NotFound("order %s has no lines", orderID)
	}

	items, total, err := p.totals(ctx, lines)
	if err != nil {
		return nil, err
	}

	code, err := p.codes.Issue(ctx, models.AccessCodeDelivery)
	if err != nil {
		return nil, err
	}

	now := p.now().UTC()
	delivery := &models.Delivery{
		DeliveryID:     uuid.New(),
		OrderID:        orderID,
		DeliveryDate:   now,
		AccessCode:     &code,
		ItemsToDeliver: items,
		Status:         models.DeliveryProcessed,
		TotalCost:      FormatCost(p.currency, total),
	}

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := p.deliveries.WithTx(tx).Create(ctx, delivery); err != nil {
			return err
		}
		_, err := p.lines.WithTx(tx).SetStatusFrom(ctx, orderID, models.LineProcessing, models.LineOrdered)
		return err
	})
	if err != nil {
		if rerr := p.codes.Release(ctx, code); rerr != nil {
			log.Warn().Err(rerr).Int("access_code", code).Msg("Failed to release access code")
		}
		if err == repositories.ErrDuplicateKey {
			return nil, apperrors.Conflict("order %s already has a delivery", orderID)
		}
		return nil, apperrors.Storage(err, "failed to create delivery")
	}

	p.metrics.IncrementCounter(metrics.DeliveriesCreated)
	log.Info().
		Str("order_id", orderID).
		Str("delivery_id", delivery.DeliveryID.String()).
		Int("items", items).
		Str("total", delivery.TotalCost).
		Msg("Delivery created")
	p.activity.Appendf(ctx, "Delivery created for order %s: %d items, total %s", orderID, items, delivery.TotalCost)
	p.publish(ctx, delivery)

	return delivery, nil
}

// SeedOrder runs the low-stock scan against the current week's order
func (p *DeliveryProcessor) SeedOrder(ctx context.Context) (*ScanReport, error) {
	return p.stock.ScanOrder(ctx, orderid.Current(p.now()))
}

// totals sums quantities and quantity times catalog price. Lines whose
// product left the catalog count towards items but not cost.
func (p *DeliveryProcessor) totals(ctx context.Context, lines []models.OrderLine) (int, decimal.Decimal, error) {
	ids := make([]int, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := p.products.GetMany(ctx, ids)
	if err != nil {
		return 0, decimal.Zero, apperrors.Storage(err, "failed to look up prices")
	}

	items := 0
	total := decimal.Zero
	for _, l := range lines {
		items += l.Quantity
		product, ok := products[l.ProductID]
		if !ok {
			log.Warn().Str("order_id", l.OrderID).Int("product_id", l.ProductID).Msg("Ordered product missing from catalog")
			continue
		}
		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return items, total, nil
}

func (p *DeliveryProcessor) publish(ctx context.Context, delivery *models.Delivery) {
	if err := p.indexer.IndexDelivery(ctx, delivery); err != nil {
		log.Warn().Err(err).Str("delivery_id", delivery.DeliveryID.String()).Msg("Failed to index delivery")
	}
	err := p.notifier.Notify(ctx, messaging.Notification{
		Type:       messaging.TypeDeliveryCreated,
		OrderID:    delivery.OrderID,
		DeliveryID: delivery.DeliveryID.String(),
		Message:    "Delivery created for order " + delivery.OrderID,
		Time:       delivery.DeliveryDate,
	})
	if err != nil {
		log.Warn().Err(err).Str("delivery_id", delivery.DeliveryID.String()).Msg("Failed to send delivery notification")
	}
}

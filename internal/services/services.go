package services

import (
	"time"

	"example.com/backstage/services/fridge/config"
	"example.com/backstage/services/fridge/internal/cache"
	"example.com/backstage/services/fridge/internal/messaging"
	"example.com/backstage/services/fridge/internal/metrics"
	"example.com/backstage/services/fridge/internal/repositories"
	"example.com/backstage/services/fridge/internal/search"

	"gorm.io/gorm"
)

// Dependencies holds what the fridge services are built from. Only DB is
// required.
type Dependencies struct {
	DB         *gorm.DB
	ReadOnlyDB *gorm.DB
	Cache      *cache.RedisCache
	CacheTTL   time.Duration
	Notifier   messaging.Notifier
	Indexer    search.Indexer
	Metrics    *metrics.Metrics
	Policy     config.FridgeConfig
	Codes      CodeSource
	Clock      Clock
}

// Services is the set of fridge services sharing one store
type Services struct {
	Activity     *ActivityLog
	Codes        *AccessCodeIssuer
	Ledger       *OrderLedger
	Inventory    *InventoryService
	Stock        *StockScanner
	Expiry       *ExpiryScanner
	Deliveries   *DeliveryProcessor
	Confirmation *ConfirmationEngine
	Reconciler   *InventoryReconciler
}

// New builds the services
func New(deps Dependencies) *Services {
	if deps.Clock == nil {
		deps.Clock = SystemClock
	}
	if deps.Notifier == nil {
		deps.Notifier = messaging.NopNotifier{}
	}
	if deps.Indexer == nil {
		deps.Indexer = search.NopIndexer{}
	}
	policy := deps.Policy

	products := repositories.NewProductRepository(deps.DB, deps.ReadOnlyDB, deps.Cache, deps.CacheTTL)
	inventory := repositories.NewInventoryRepository(deps.DB)
	lines := repositories.NewOrderLineRepository(deps.DB)
	deliveries := repositories.NewDeliveryRepository(deps.DB)
	codes := repositories.NewAccessCodeRepository(deps.DB)

	activity := NewActivityLog(repositories.NewActivityRepository(deps.DB), deps.Indexer, deps.Clock)
	issuer := NewAccessCodeIssuer(codes, policy.AccessCodeMaxAttempts, deps.Codes, deps.Clock)
	ledger := NewOrderLedger(products, lines, deliveries, deps.Clock)
	stock := NewStockScanner(inventory, products, ledger, activity, deps.Metrics, policy.ReorderThreshold, policy.ReplenishQuantity, deps.Clock)

	return &Services{
		Activity:  activity,
		Codes:     issuer,
		Ledger:    ledger,
		Inventory: NewInventoryService(products, inventory, activity, deps.Clock),
		Stock:     stock,
		Expiry:    NewExpiryScanner(deps.DB, inventory, ledger, activity, deps.Notifier, deps.Metrics, policy.ExpiryLookahead, deps.Clock),
		Deliveries: NewDeliveryProcessor(DeliveryProcessorDeps{
			DB:         deps.DB,
			Products:   products,
			Lines:      lines,
			Deliveries: deliveries,
			Codes:      issuer,
			Stock:      stock,
			Activity:   activity,
			Notifier:   deps.Notifier,
			Indexer:    deps.Indexer,
			Metrics:    deps.Metrics,
			Currency:   policy.CurrencySymbol,
			Now:        deps.Clock,
		}),
		Confirmation: NewConfirmationEngine(deps.DB, deliveries, lines, codes, activity, deps.Indexer, deps.Metrics),
		Reconciler:   NewInventoryReconciler(deps.DB, deliveries, lines, inventory, activity, deps.Notifier, deps.Indexer, deps.Metrics, policy.DeliveredShelfLife, deps.Clock),
	}
}

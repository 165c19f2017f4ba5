package cmd

import (
	"context"

	"example.com/backstage/services/fridge/config"
	"example.com/backstage/services/fridge/internal/cache"
	"example.com/backstage/services/fridge/internal/database"
	"example.com/backstage/services/fridge/internal/messaging"
	"example.com/backstage/services/fridge/internal/metrics"
	"example.com/backstage/services/fridge/internal/scheduler"
	"example.com/backstage/services/fridge/internal/search"
	"example.com/backstage/services/fridge/internal/services"
	"example.com/backstage/services/fridge/internal/tracing"

	"github.com/rs/zerolog/log"
)

// app holds the infrastructure shared by the api, worker and task commands
type app struct {
	cfg      config.Config
	dbs      *database.Databases
	cache    *cache.RedisCache
	tracer   tracing.Tracer
	notifier messaging.Notifier
	metrics  *metrics.Metrics
	services *services.Services
}

// newApp connects to the database and the optional infrastructure. Only the
// database is required; the rest degrade to no-ops with a warning.
func newApp(cfg config.Config, source string) (*app, error) {
	dbs, err := database.Connect(cfg.DB)
	if err != nil {
		return nil, err
	}

	m := metrics.NewMetrics()
	m.SetHealth("database", true)

	if err := dbs.Migrate(); err != nil {
		_ = dbs.Close()
		return nil, err
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		redisCache = nil
	}

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer = tracing.NewNoopTracer()
	}

	indexer, err := search.NewIndexer(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
		indexer = search.NopIndexer{}
	}

	notifier, err := messaging.NewNotifier(cfg.Azure, source)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Azure Service Bus, continuing without notifications")
		notifier = messaging.NopNotifier{}
	}

	svc := services.New(services.Dependencies{
		DB:         dbs.Writer,
		ReadOnlyDB: dbs.Reader,
		Cache:      redisCache,
		CacheTTL:   cfg.Redis.TTL,
		Notifier:   notifier,
		Indexer:    indexer,
		Metrics:    m,
		Policy:     cfg.Fridge,
	})

	return &app{
		cfg:      cfg,
		dbs:      dbs,
		cache:    redisCache,
		tracer:   tracer,
		notifier: notifier,
		metrics:  m,
		services: svc,
	}, nil
}

// tasks returns the periodic tasks run by the scheduler
func (a *app) tasks() scheduler.Tasks {
	return scheduler.Tasks{
		StockScan: func(ctx context.Context) error {
			_, err := a.services.Stock.Scan(ctx)
			return err
		},
		ExpiryScan: func(ctx context.Context) error {
			_, err := a.services.Expiry.Scan(ctx)
			return err
		},
		WeeklyDelivery: func(ctx context.Context) error {
			_, err := a.services.Deliveries.RunWeeklyCycle(ctx)
			return err
		},
	}
}

func (a *app) close() {
	if err := a.notifier.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close notifier")
	}
	if err := a.cache.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close Redis cache")
	}
	a.tracer.Close()
	if err := a.dbs.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close database")
	}
}

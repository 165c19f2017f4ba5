package api

import (
	"context"
	"net/http"
	"time"

	"example.com/backstage/services/fridge/config"
	"example.com/backstage/services/fridge/internal/api/handlers"
	"example.com/backstage/services/fridge/internal/api/middleware"
	"example.com/backstage/services/fridge/internal/metrics"
	"example.com/backstage/services/fridge/internal/services"
	"example.com/backstage/services/fridge/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Server represents the HTTP server
type Server struct {
	config     config.ServerConfig
	router     *gin.Engine
	httpServer *http.Server
	services   *services.Services
	metrics    *metrics.Metrics
	tracer     tracing.Tracer
}

// NewServer creates a new HTTP server
func NewServer(cfg config.ServerConfig, svc *services.Services, m *metrics.Metrics, tracer tracing.Tracer) *Server {
	if tracer == nil {
		tracer = tracing.NewNoopTracer()
	}
	if m == nil {
		m = metrics.NewMetrics()
	}

	server := &Server{
		config:   cfg,
		services: svc,
		metrics:  m,
		tracer:   tracer,
	}

	server.router = server.setupRouter()
	server.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      server.router,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	}

	return server
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	if s.config.Mode != "" {
		gin.SetMode(s.config.Mode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	if app := s.tracer.Application(); app != nil {
		router.Use(middleware.NewRelicMiddleware(app))
	}

	handlers.NewMetricsHandler(s.metrics, s.tracer, s.config.MetricsEnabled).RegisterRoutes(router)

	v1 := router.Group("/api/v1")
	handlers.NewInventoryHandler(s.services.Inventory, s.tracer).RegisterRoutes(v1)
	handlers.NewOrderHandler(s.services.Ledger, s.services.Reconciler, s.tracer).RegisterRoutes(v1)
	handlers.NewDeliveryHandler(s.services.Confirmation, s.tracer).RegisterRoutes(v1)
	handlers.NewActivityHandler(s.services.Activity).RegisterRoutes(v1)

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.Address).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}

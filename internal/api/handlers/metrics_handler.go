package handlers

import (
	"net/http"
	"runtime"

	"example.com/backstage/services/fridge/internal/metrics"
	"example.com/backstage/services/fridge/internal/tracing"

	"github.com/gin-gonic/gin"
)

// MetricsHandler handles metrics-related HTTP requests
type MetricsHandler struct {
	metrics *metrics.Metrics
	tracer  tracing.Tracer
	enabled bool
}

// NewMetricsHandler creates a new metrics handler. With enabled unset only
// the health check is served.
func NewMetricsHandler(m *metrics.Metrics, tracer tracing.Tracer, enabled bool) *MetricsHandler {
	return &MetricsHandler{
		metrics: m,
		tracer:  tracer,
		enabled: enabled,
	}
}

// HandleGetMetrics returns all metrics
func (h *MetricsHandler) HandleGetMetrics(c *gin.Context) {
	txn := h.tracer.StartTransaction("get-metrics")
	defer h.tracer.EndTransaction(txn)

	h.metrics.SetGauge("goroutines", int64(runtime.NumGoroutine()))

	c.JSON(http.StatusOK, h.metrics.GetAllMetrics())
}

// HandleGetHealthCheck answers 503 when any component reports unhealthy
func (h *MetricsHandler) HandleGetHealthCheck(c *gin.Context) {
	checks := h.metrics.GetHealthChecks()

	healthy := true
	for _, ok := range checks {
		if !ok {
			healthy = false
			break
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":  healthy,
		"details": checks,
	})
}

// RegisterRoutes registers the handler's routes
func (h *MetricsHandler) RegisterRoutes(router gin.IRouter) {
	if h.enabled {
		router.GET("/metrics", h.HandleGetMetrics)
	}
	router.GET("/health", h.HandleGetHealthCheck)
}

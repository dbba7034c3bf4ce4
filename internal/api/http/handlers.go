package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/bundle"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/catalog"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/monitor"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/infrastructure/monitoring"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	catalog  *catalog.Catalog
	recorder *monitor.Recorder
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	started  time.Time

	root       string
	ignore     []string
	prefetcher Prefetcher
}

// NewHandlers creates a new handler set. recorder and metrics may be nil.
func NewHandlers(c *catalog.Catalog, recorder *monitor.Recorder, metrics *monitoring.Metrics, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		catalog:  c,
		recorder: recorder,
		metrics:  metrics,
		logger:   logger,
		started:  time.Now(),
	}
}

// Register mounts every route on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/health", h.Health)

	// Bundle lifecycle
	r.GET("/bundles", h.ListBundles)
	r.GET("/bundles/:name", h.GetBundle)
	r.DELETE("/bundles/:name", h.UnloadBundle)
	r.POST("/bundles/sweep", h.Sweep)

	// Assets
	r.GET("/assets", h.ListAssets)
	r.POST("/assets/load", h.LoadAsset)
	r.POST("/assets/release", h.ReleaseAsset)
	r.GET("/assets/content/*address", h.AssetContent)

	// Bundle files on disk
	r.GET("/store", h.Inventory)
	r.POST("/store/prune", h.Prune)
	r.POST("/store/prefetch", h.Prefetch)

	// Monitor session
	r.GET("/monitor/records", h.Records)
	r.GET("/monitor/summary", h.Summary)
	r.POST("/monitor/start", h.StartRecording)
	r.POST("/monitor/stop", h.StopRecording)

	r.GET("/metrics/json", h.MetricsJSON)
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	resident := 0
	for _, cache := range h.catalog.Caches() {
		resident += cache.Len()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"manifests":        len(h.catalog.Caches()),
		"resident_bundles": resident,
		"uptime_seconds":   time.Since(h.started).Seconds(),
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, bundle.ErrNotFound), errors.Is(err, bundle.ErrAssetNotFound):
		return http.StatusNotFound
	case errors.Is(err, bundle.ErrLoadFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

// track times one catalog operation when metrics are enabled.
func (h *Handlers) track(operation string) func(err error) {
	if h.metrics == nil {
		return func(error) {}
	}
	return monitoring.NewTimer(h.metrics, "catalog", operation).StopErr
}

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/repository"
	xhttp "MarketPulse/pkg/http"
	xlogger "MarketPulse/pkg/logger"
)

// ModelHealthReader reports the served model of a product.
type ModelHealthReader interface {
	Health(ctx context.Context, productID string) (models.ModelHealth, bool)
}

// Pinger is a dependency checked by /healthz.
type Pinger interface {
	Health(ctx context.Context) error
}

type RegistryStats interface {
	Stats() repository.RegistryStats
}

// BreakerReporter exposes the state of a circuit breaker.
type BreakerReporter interface {
	BreakerState() string
}

// OpsHandler serves the operational endpoints.
type OpsHandler struct {
	logger   *xlogger.Logger
	models   ModelHealthReader
	registry RegistryStats
	deps     map[string]Pinger
	timeout  time.Duration
}

func NewOpsHandler(logger *xlogger.Logger, mh ModelHealthReader, registry RegistryStats, deps map[string]Pinger) *OpsHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &OpsHandler{logger: logger, models: mh, registry: registry, deps: deps, timeout: 2 * time.Second}
}

func (h *OpsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	g := e.Group("/api")
	g.GET("/models/:productId", h.Model)
}

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Breaker string `json:"breaker,omitempty"`
}

type healthReport struct {
	Healthy      bool                        `json:"healthy"`
	Dependencies map[string]dependencyStatus `json:"dependencies,omitempty"`
	Registry     *repository.RegistryStats   `json:"registry,omitempty"`
}

// Healthz pings every dependency; any failure turns the answer into a 503.
func (h *OpsHandler) Healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	report := healthReport{Healthy: true, Dependencies: make(map[string]dependencyStatus, len(h.deps))}
	for name, dep := range h.deps {
		st := dependencyStatus{OK: true}
		if err := dep.Health(ctx); err != nil {
			st = dependencyStatus{Error: err.Error()}
			report.Healthy = false
			h.logger.Warn("dependency unhealthy", xlogger.String("dependency", name), xlogger.Error(err))
		}
		if b, ok := dep.(BreakerReporter); ok {
			st.Breaker = b.BreakerState()
		}
		report.Dependencies[name] = st
	}
	if h.registry != nil {
		stats := h.registry.Stats()
		report.Registry = &stats
	}

	if !report.Healthy {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, report)
	}
	return xhttp.SuccessResponse(c, report)
}

// Model returns the health of one product's served model.
func (h *OpsHandler) Model(c echo.Context) error {
	pid := c.Param("productId")
	if pid == "" {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("product id is required"))
	}
	health, ok := h.models.Health(c.Request().Context(), pid)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no model for product %s", pid))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, health)
}

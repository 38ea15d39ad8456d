package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/internal/service"
	"github.com/noah-isme/syllabus-portal/pkg/response"
)

type healthReporter interface {
	Report(ctx context.Context) models.HealthReport
}

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	health  healthReporter
}

// NewMetricsHandler constructs a metrics handler.
func NewMetricsHandler(metrics *service.MetricsService, health healthReporter) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, health: health}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness checks.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports 503 until every backend answers its health probe.
func (h *MetricsHandler) Ready(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}
	report := h.health.Report(c.Request.Context())
	if !report.Healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "services": report.Services})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// ServiceHealth godoc
// @Summary Backend service health dashboard
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/health [get]
func (h *MetricsHandler) ServiceHealth(c *gin.Context) {
	if h.health == nil {
		response.JSON(c, http.StatusOK, models.HealthReport{Healthy: true, Metrics: h.metrics.Snapshot()}, nil)
		return
	}
	response.JSON(c, http.StatusOK, h.health.Report(c.Request.Context()), nil)
}

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scraperfleet/browserfarm/internal/farm"
)

type HealthHandler struct {
	manager *farm.Manager
}

func NewHealthHandler(manager *farm.Manager) *HealthHandler {
	return &HealthHandler{manager: manager}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

func (h *HealthHandler) Health(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	snapshot := h.manager.Snapshot()
	if snapshot.Metrics.TotalInstances == 0 {
		checks["fleet"] = "unhealthy: no instances"
		status = "unhealthy"
	} else {
		checks["fleet"] = "healthy"
	}

	if snapshot.Cost.UtilizationPercent >= 100 {
		checks["budget"] = "exhausted"
	} else {
		checks["budget"] = "healthy"
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	if h.manager.Snapshot().Metrics.TotalInstances == 0 {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status:    "not ready",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ready",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

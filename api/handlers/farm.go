package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scraperfleet/browserfarm/internal/farm"
)

type FarmHandler struct {
	manager *farm.Manager
}

func NewFarmHandler(manager *farm.Manager) *FarmHandler {
	return &FarmHandler{manager: manager}
}

func (h *FarmHandler) Snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Snapshot())
}

func (h *FarmHandler) Instances(c *gin.Context) {
	instances := h.manager.Instances()
	c.JSON(http.StatusOK, gin.H{
		"count":     len(instances),
		"instances": instances,
	})
}

func (h *FarmHandler) Decisions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"decisions": h.manager.DecisionHistory(),
	})
}

package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scraperfleet/browserfarm/internal/farm"
	"github.com/scraperfleet/browserfarm/internal/pool"
	"github.com/scraperfleet/browserfarm/internal/resilience"
	"github.com/scraperfleet/browserfarm/pkg/models"
)

type SessionHandler struct {
	manager *farm.Manager
}

func NewSessionHandler(manager *farm.Manager) *SessionHandler {
	return &SessionHandler{manager: manager}
}

type AcquireSessionRequest struct {
	Region  string `json:"region" binding:"omitempty,max=64"`
	GeoHint string `json:"geo_hint" binding:"omitempty,max=64"`
}

func (h *SessionHandler) Acquire(c *gin.Context) {
	// Empty body means default requirements.
	var req AcquireSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.manager.AcquireSession(c.Request.Context(), models.SessionRequirements{
		Region:  req.Region,
		GeoHint: req.GeoHint,
	})
	if err != nil {
		if errors.Is(err, pool.ErrPoolExhausted) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, session)
}

func (h *SessionHandler) Release(c *gin.Context) {
	id := c.Param("id")

	if err := h.manager.ReleaseSession(id); err != nil {
		if errors.Is(err, pool.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

type FetchRequest struct {
	URL     string            `json:"url" binding:"required,url"`
	Method  string            `json:"method" binding:"omitempty,oneof=GET POST PUT DELETE HEAD"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

func (h *SessionHandler) Fetch(c *gin.Context) {
	id := c.Param("id")

	var req FetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	resp, err := h.manager.Execute(c.Request.Context(), id, &resilience.Request{
		Method:  req.Method,
		URL:     req.URL,
		Headers: req.Headers,
		Body:    []byte(req.Body),
	})
	if err != nil {
		switch {
		case errors.Is(err, pool.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, resilience.ErrCircuitOpen):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status_code": resp.StatusCode,
		"headers":     resp.Headers,
		"body":        string(resp.Body),
	})
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"dex-backend/internal/metrics"
	"dex-backend/internal/repository"
	"dex-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// PingHandler GET /ping
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// HealthHandler reports storage and websocket state
type HealthHandler struct {
	store repository.Store
	hub   *services.WebSocketHub
}

// NewHealthHandler creates a HealthHandler
func NewHealthHandler(store repository.Store, hub *services.WebSocketHub) *HealthHandler {
	return &HealthHandler{store: store, hub: hub}
}

// Health GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	database := "healthy"
	if err := h.store.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		database = "unhealthy"
		metrics.DBConnectionStatus.Set(0)
	} else {
		metrics.DBConnectionStatus.Set(1)
	}

	c.JSON(status, gin.H{
		"status":            map[bool]string{true: "ok", false: "degraded"}[status == http.StatusOK],
		"service":           "dex-backend",
		"database":          database,
		"websocket_clients": h.hub.ActiveConnections(),
		"timestamp":         time.Now().Unix(),
	})
}

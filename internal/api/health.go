package api

import (
	"net/http"
	"time"

	"github.com/thomasnguyen/corgi-quest/internal/api/respond"
)

// HealthStatus is satisfied by health.ServiceHealthChecker.
type HealthStatus interface {
	IsHealthy() bool
	Components() map[string]bool
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	status HealthStatus
}

func NewHealthHandler(status HealthStatus) *HealthHandler { return &HealthHandler{status: status} }

// CheckHealth handles GET /api/health
// Always returns 200; body reports healthy/unhealthy. 500 indicates handler failure only.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status := "unhealthy"
	var components map[string]bool
	if h.status != nil {
		if h.status.IsHealthy() {
			status = "healthy"
		}
		components = h.status.Components()
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

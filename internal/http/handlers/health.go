package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports the status of one dependency
type HealthCheck func(ctx context.Context) map[string]interface{}

// HealthHandler reports service and dependency health
type HealthHandler struct {
	checks map[string]HealthCheck
}

// NewHealthHandler creates the handler; checks may be empty
func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// HealthCheck handles GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := "ok"
	deps := make(map[string]interface{}, len(h.checks))
	for name, check := range h.checks {
		result := check(ctx)
		if result["status"] != "up" {
			status = "degraded"
		}
		deps[name] = result
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "dependencies": deps})
}

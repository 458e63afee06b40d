package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether a backing store is reachable
type Pinger func(ctx context.Context) error

// SystemHandler serves liveness and readiness probes
type SystemHandler struct {
	checks map[string]Pinger
}

// NewSystemHandler creates a SystemHandler with named readiness checks
func NewSystemHandler(checks map[string]Pinger) *SystemHandler {
	return &SystemHandler{checks: checks}
}

// Live always reports the process as alive
func (h *SystemHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports 503 when any backing store is unreachable
func (h *SystemHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
		} else {
			results[name] = "ok"
		}
	}
	c.JSON(status, gin.H{"checks": results})
}

// RegisterRoutes mounts the probe endpoints on the root engine
func (h *SystemHandler) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/health", h.Live)
	engine.GET("/ready", h.Ready)
}

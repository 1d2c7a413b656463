package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is used for readiness (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Check is a named readiness check, e.g. the hashing pool.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

const readyTimeout = 2 * time.Second

// Handler serves liveness and readiness for Kubernetes, load balancers, and CI.
type Handler struct {
	pinger Pinger
	checks []Check
}

// NewHandler returns a health Handler. pinger may be nil (memory store); then readiness skips the DB ping.
func NewHandler(pinger Pinger, checks ...Check) *Handler {
	return &Handler{pinger: pinger, checks: checks}
}

// RegisterRoutes mounts /healthz and /readyz.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/healthz", h.Live)
	r.GET("/readyz", h.Ready)
}

// Live always reports ok while the process serves HTTP.
func (h *Handler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready pings the database and runs every check. Any failure yields 503 with the failing component.
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()
	if h.pinger != nil {
		if err := h.pinger.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "component": "database", "error": err.Error()})
			return
		}
	}
	for _, chk := range h.checks {
		if err := chk.Fn(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "component": chk.Name, "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

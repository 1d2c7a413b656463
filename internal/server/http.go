package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dsqrwym/Maian-sub000/internal/audit"
	healthhandler "github.com/dsqrwym/Maian-sub000/internal/health/handler"
	identityhandler "github.com/dsqrwym/Maian-sub000/internal/identity/handler"
	identityservice "github.com/dsqrwym/Maian-sub000/internal/identity/service"
	"github.com/dsqrwym/Maian-sub000/internal/server/middleware"
	"github.com/dsqrwym/Maian-sub000/internal/telemetry"
)

// Deps holds the dependencies of the HTTP router.
type Deps struct {
	// Auth is the auth service behind /auth. Required.
	Auth   *identityservice.AuthService
	Cookie identityhandler.CookieConfig
	// Emitter receives one http_request event per request. If nil, no request telemetry is emitted.
	Emitter telemetry.EventEmitter
	// Audit records authenticated requests not already audited by the auth service. May be nil.
	Audit audit.AuditLogger
	// Health serves /healthz and /readyz. If nil, a handler without readiness checks is used.
	Health *healthhandler.Handler
	// Metrics serves /metrics. If nil, the route is not registered.
	Metrics http.Handler
}

// healthRoutes are excluded from request telemetry.
var healthRoutes = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// serviceAuditedRoutes already produce an audit record from the auth service.
var serviceAuditedRoutes = map[string]bool{
	"POST /auth/register":          true,
	"POST /auth/login":             true,
	"POST /auth/login-web":         true,
	"GET /auth/refresh-token":      true,
	"POST /auth/refresh-token-web": true,
	"DELETE /auth/logout":          true,
	"DELETE /auth/sessions/device": true,
}

// NewRouter builds the gin engine with recovery, client IP capture, telemetry,
// audit and the auth, health and metrics routes.
//
// Route → handler mapping:
//   - /auth/*            → internal/identity/handler
//   - /healthz, /readyz  → internal/health/handler
//   - /metrics           → internal/telemetry/metrics
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.StoreClientIP())
	r.Use(middleware.Telemetry(deps.Emitter, healthRoutes))
	r.Use(middleware.Audit(deps.Audit, serviceAuditedRoutes))

	health := deps.Health
	if health == nil {
		health = healthhandler.NewHandler(nil)
	}
	health.RegisterRoutes(r)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	auth := identityhandler.NewAuthHandler(deps.Auth, deps.Cookie)
	auth.RegisterRoutes(r, middleware.RequireAuth(deps.Auth, identityhandler.WriteError))
	return r
}

// NewHTTPServer wraps h with the server timeouts used in production.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

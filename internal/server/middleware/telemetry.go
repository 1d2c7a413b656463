package middleware

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dsqrwym/Maian-sub000/internal/telemetry"
)

// httpRequestMetadata is the JSON shape stored in Event.Metadata for http_request events.
type httpRequestMetadata struct {
	Method     string `json:"method"`
	Route      string `json:"route"`
	StatusCode int    `json:"status_code"`
	DurationMs int64  `json:"duration_ms"`
}

// StoreClientIP puts gin's resolved client IP into the request context so code
// below the HTTP layer (audit) can read it with ClientIP.
func StoreClientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(WithClientIP(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}

// Telemetry returns a middleware that emits an http_request event after each request.
// Best-effort: failures are logged and do not fail the request. If emitter is nil, the middleware no-ops.
// skipRoutes is the set of route patterns to not emit (e.g. /healthz).
func Telemetry(emitter telemetry.EventEmitter, skipRoutes map[string]bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if emitter == nil || skipRoutes[route] {
			return
		}
		if route == "" {
			route = "unmatched"
		}
		meta, err := json.Marshal(httpRequestMetadata{
			Method:     c.Request.Method,
			Route:      route,
			StatusCode: c.Writer.Status(),
			DurationMs: time.Since(start).Milliseconds(),
		})
		if err != nil {
			log.Printf("telemetry: encode request metadata: %v", err)
			return
		}
		ctx := c.Request.Context()
		p, _ := GetPayload(ctx)
		telemetry.EmitAsync(ctx, emitter, &telemetry.Event{
			Type:              telemetry.EventHTTPRequest,
			Source:            "http_middleware",
			UserID:            p.UserID,
			SessionID:         p.SessionID,
			DeviceFingerprint: p.DeviceFingerprint,
			ClientIP:          c.ClientIP(),
			Metadata:          meta,
		})
	}
}

package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/dsqrwym/Maian-sub000/internal/audit"
)

// Audit returns a middleware that records an audit event after each authenticated request.
// skipRoutes is the set of "METHOD /route" keys to not audit (e.g. routes whose
// service call already writes its own audit record). Requests without a verified
// payload are not audited here.
func Audit(logger audit.AuditLogger, skipRoutes map[string]bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if logger == nil {
			return
		}
		route := c.FullPath()
		if route == "" || skipRoutes[c.Request.Method+" "+route] {
			return
		}
		ctx := c.Request.Context()
		p, ok := GetPayload(ctx)
		if !ok {
			return
		}
		outcome := audit.OutcomeSuccess
		if c.Writer.Status() >= 400 {
			outcome = audit.OutcomeFailure
		}
		logger.LogEvent(ctx, p.UserID, p.SessionID, audit.ParseRoute(c.Request.Method, route), outcome, fmt.Sprintf("status=%d", c.Writer.Status()))
	}
}

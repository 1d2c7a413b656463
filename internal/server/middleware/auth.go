package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dsqrwym/Maian-sub000/internal/security"
)

const bearerPrefix = "bearer "

// Verifier authorizes an access token against the session store.
type Verifier interface {
	VerifyRequest(ctx context.Context, accessToken string) (security.Payload, error)
}

// ErrorWriter renders an auth failure on c.
type ErrorWriter func(c *gin.Context, err error)

// RequireAuth returns a middleware that verifies the Bearer (access) token and
// stores its payload in the request context. Failures are rendered by onError
// and abort the chain.
func RequireAuth(v Verifier, onError ErrorWriter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		token := BearerToken(c.Request)
		if token == "" {
			onError(c, security.ErrTokenInvalid)
			c.Abort()
			return
		}
		payload, err := v.VerifyRequest(c.Request.Context(), token)
		if err != nil {
			onError(c, err)
			c.Abort()
			return
		}
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), payload))
		c.Next()
	}
}

// BearerToken returns the Bearer token from the Authorization header, or "" if missing or malformed.
func BearerToken(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

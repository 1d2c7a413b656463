package middleware

import (
	"context"

	"github.com/dsqrwym/Maian-sub000/internal/security"
)

type contextKey struct{ name string }

var (
	payloadKey  = contextKey{"payload"}
	clientIPKey = contextKey{"client_ip"}
)

// WithIdentity returns a context carrying the verified token payload.
// Handlers and the audit logger read it via GetUserID, GetSessionID and GetPayload.
func WithIdentity(ctx context.Context, p security.Payload) context.Context {
	return context.WithValue(ctx, payloadKey, p)
}

// GetPayload returns the verified payload and true if set; otherwise zero, false.
func GetPayload(ctx context.Context) (security.Payload, bool) {
	p, ok := ctx.Value(payloadKey).(security.Payload)
	return p, ok
}

// GetUserID returns the user_id from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	p, ok := GetPayload(ctx)
	return p.UserID, ok
}

// GetSessionID returns the session_id from context and true if set; otherwise "", false.
func GetSessionID(ctx context.Context) (string, bool) {
	p, ok := GetPayload(ctx)
	return p.SessionID, ok
}

// WithClientIP returns a context carrying the caller's IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the client IP stored by the ClientIP middleware, or "unknown".
// It has the audit.IPExtractor signature.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey).(string); ok && ip != "" {
		return ip
	}
	return "unknown"
}

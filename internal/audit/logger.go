package audit

import (
	"context"
	"encoding/json"
	"log"

	"github.com/dsqrwym/Maian-sub000/internal/telemetry"
)

// Source is the Event.Source for audit records.
const Source = "auth_audit"

// Outcomes recorded on audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event with explicit action/resource. Used by auth and session code paths.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, sessionID string, ar ActionResource, outcome, detail string)
}

type auditMetadata struct {
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Outcome  string `json:"outcome"`
	Detail   string `json:"detail,omitempty"`
}

// Logger implements AuditLogger on top of a telemetry.EventEmitter.
type Logger struct {
	emitter     telemetry.EventEmitter
	ipExtractor IPExtractor
}

// NewLogger returns an AuditLogger that emits to emitter and uses ipExtractor for client IP.
// ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(emitter telemetry.EventEmitter, ipExtractor IPExtractor) *Logger {
	return &Logger{emitter: emitter, ipExtractor: ipExtractor}
}

// LogEvent emits one audit record asynchronously. A nil emitter falls back to the process log.
func (l *Logger) LogEvent(ctx context.Context, userID, sessionID string, ar ActionResource, outcome, detail string) {
	ip := "unknown"
	if l.ipExtractor != nil {
		if v := l.ipExtractor(ctx); v != "" {
			ip = v
		}
	}
	if l.emitter == nil {
		log.Printf("audit: %s/%s %s user=%s session=%s ip=%s %s", ar.Action, ar.Resource, outcome, userID, sessionID, ip, detail)
		return
	}
	meta, err := json.Marshal(auditMetadata{Action: ar.Action, Resource: ar.Resource, Outcome: outcome, Detail: detail})
	if err != nil {
		log.Printf("audit: failed to encode event %s/%s: %v", ar.Action, ar.Resource, err)
		return
	}
	telemetry.EmitAsync(ctx, l.emitter, &telemetry.Event{
		Type:      telemetry.EventAudit,
		Source:    Source,
		UserID:    userID,
		SessionID: sessionID,
		ClientIP:  ip,
		Metadata:  meta,
	})
}

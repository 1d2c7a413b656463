// Package telemetry defines the auth event stream emitted by the HTTP layer
// and the auth service. Sinks live in subpackages (otel).
package telemetry

import (
	"context"
	"time"
)

// Event types.
const (
	EventHTTPRequest = "http_request"
	EventAudit       = "audit"
)

// Event is one telemetry record. Metadata is an opaque JSON document.
type Event struct {
	Type              string
	Source            string
	UserID            string
	SessionID         string
	DeviceFingerprint string
	ClientIP          string
	Metadata          []byte
	CreatedAt         time.Time
}

// EventEmitter emits telemetry events (e.g. to OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}

package authclient

import (
	"errors"
	"fmt"

	"github.com/dsqrwym/Maian-sub000/internal/client/authstate"
)

// ServerError is a non-2xx response from the auth server.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("authclient: server returned %d %s", e.Status, e.Message)
}

// TransportError wraps failures that never produced a server verdict:
// network errors, timeouts and unreadable bodies. Callers may retry them.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return "authclient: " + e.Op + ": " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// ErrNotLoggedIn is returned by operations that need stored tokens.
var ErrNotLoggedIn = errors.New("authclient: not logged in")

// errSessionEnded is returned to requests that lost a refresh race against a failed refresh.
var errSessionEnded = errors.New("authclient: session ended")

// EventFor maps a refresh failure to the event reported to the state machine.
func EventFor(err error) authstate.Event {
	if errors.Is(err, ErrNotLoggedIn) {
		return authstate.SessionExpired
	}
	var se *ServerError
	if !errors.As(err, &se) {
		return authstate.Unknown
	}
	switch se.Message {
	case "CSRF_INVALID":
		return authstate.CsrfInvalid
	case "SESSION_NOT_FOUND":
		return authstate.SessionNotFound
	case "SESSION_REVOKED":
		return authstate.SessionRevoked
	}
	return authstate.SessionExpired
}

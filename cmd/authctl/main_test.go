package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/dsqrwym/Maian-sub000/internal/client/authclient"
)

func TestExplain(t *testing.T) {
	if err := explain(nil, "http://srv", "/tmp/tokens"); err != nil {
		t.Errorf("nil err = %v", err)
	}

	verdict := authclient.ErrNotLoggedIn
	if err := explain(verdict, "http://srv", "/tmp/tokens"); err != verdict {
		t.Errorf("non-transport err rewritten to %v", err)
	}

	transport := &authclient.TransportError{Op: "GET /auth/me", Err: errors.New("connection refused")}
	err := explain(transport, "http://srv", "/tmp/tokens")
	if !errors.Is(err, transport) {
		t.Errorf("hint must wrap the transport error, got %v", err)
	}
	if msg := err.Error(); !strings.Contains(msg, "http://srv") || !strings.Contains(msg, "/tmp/tokens") {
		t.Errorf("hint = %q, want server and store path", msg)
	}
}

package authclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dsqrwym/Maian-sub000/internal/client/authstate"
	"github.com/dsqrwym/Maian-sub000/internal/client/tokenstore"
	identityhandler "github.com/dsqrwym/Maian-sub000/internal/identity/handler"
	identityrepo "github.com/dsqrwym/Maian-sub000/internal/identity/repository"
	identityservice "github.com/dsqrwym/Maian-sub000/internal/identity/service"
	"github.com/dsqrwym/Maian-sub000/internal/security"
	"github.com/dsqrwym/Maian-sub000/internal/server"
	sessionrepo "github.com/dsqrwym/Maian-sub000/internal/session/repository"
	userrepo "github.com/dsqrwym/Maian-sub000/internal/user/repository"
)

const testPassword = "Passw0rdOK"

func newAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := identityservice.NewAuthService(
		userrepo.NewMemoryRepository(),
		identityrepo.NewMemoryRepository(),
		sessionrepo.NewMemoryRepository(),
		security.NewTestHasher(),
		security.NewTestTokenProvider(),
	)
	r := server.NewRouter(server.Deps{
		Auth: svc,
		Cookie: identityhandler.CookieConfig{
			Name:     "refresh_token",
			Path:     "/auth",
			Secure:   true,
			SameSite: http.SameSiteNoneMode,
			MaxAge:   time.Hour,
		},
	})
	srv := httptest.NewTLSServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newServerClient(t *testing.T, srv *httptest.Server, web bool, store tokenstore.Storage, sink authstate.Sink) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:    srv.URL,
		Web:        web,
		DeviceName: "laptop",
		UserAgent:  "authclient-test",
		HTTPClient: srv.Client(),
	}, store, sink)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestClient_BearerFlow(t *testing.T) {
	srv := newAuthServer(t)
	ctx := context.Background()
	store := tokenstore.NewMemoryStorage()
	m := authstate.FromStorage(store)
	c := newServerClient(t, srv, false, store, m)

	userID, err := c.Register(ctx, Credentials{Email: "ann@example.com", Username: "ann", Password: testPassword}, "Ann")
	if err != nil || userID == "" {
		t.Fatalf("Register = %q, %v", userID, err)
	}
	if err := c.Login(ctx, Credentials{Username: "ann", Password: testPassword}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if m.State() != authstate.Authenticated {
		t.Errorf("state after login = %v", m.State())
	}
	me, err := c.Me(ctx)
	if err != nil || me.UserID != userID {
		t.Fatalf("Me = %+v, %v", me, err)
	}

	// a bad access token is refreshed transparently and the refresh token rotates
	oldRefresh, _ := store.GetRefresh()
	_ = store.SaveAccess("garbage")
	me, err = c.Me(ctx)
	if err != nil || me.UserID != userID {
		t.Fatalf("Me after refresh = %+v, %v", me, err)
	}
	if r, _ := store.GetRefresh(); r == "" || r == oldRefresh {
		t.Error("refresh token was not rotated")
	}

	sessions, err := c.Sessions(ctx)
	if err != nil || len(sessions) != 1 || !sessions[0].Current {
		t.Fatalf("Sessions = %+v, %v", sessions, err)
	}

	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if m.State() != authstate.Unauthenticated {
		t.Errorf("state after logout = %v", m.State())
	}
	if a, _ := store.GetAccess(); a != "" {
		t.Error("tokens kept after logout")
	}
	if err := c.Logout(ctx); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("second logout: %v", err)
	}
}

func TestClient_LoginInvalidCredentials(t *testing.T) {
	srv := newAuthServer(t)
	c := newServerClient(t, srv, false, tokenstore.NewMemoryStorage(), nil)
	err := c.Login(context.Background(), Credentials{Email: "nobody@example.com", Password: testPassword})
	var se *ServerError
	if !errors.As(err, &se) || se.Status != http.StatusBadRequest || se.Message != "INVALID_CREDENTIALS" {
		t.Fatalf("got %v", err)
	}
}

func TestClient_WebFlow(t *testing.T) {
	srv := newAuthServer(t)
	ctx := context.Background()
	store := tokenstore.NewMemoryStorage()
	c := newServerClient(t, srv, true, store, nil)

	if _, err := c.Register(ctx, Credentials{Email: "web@example.com", Password: testPassword}, ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := c.Login(ctx, Credentials{Email: "web@example.com", Password: testPassword}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if r, _ := store.GetRefresh(); r != "" {
		t.Error("web login must not store a refresh token")
	}
	if csrf, _ := store.GetCsrf(); csrf == "" {
		t.Fatal("web login did not store the csrf value")
	}

	_ = store.SaveAccess("garbage")
	if _, err := c.Me(ctx); err != nil {
		t.Fatalf("Me after cookie refresh: %v", err)
	}
	if a, _ := store.GetAccess(); a == "garbage" {
		t.Error("access token not replaced")
	}
}

func TestClient_ReplacedSessionForcesLogout(t *testing.T) {
	srv := newAuthServer(t)
	ctx := context.Background()
	store := tokenstore.NewMemoryStorage()
	m := authstate.New(authstate.Unauthenticated)
	c := newServerClient(t, srv, false, store, m)
	creds := Credentials{Email: "sam@example.com", Password: testPassword}
	if _, err := c.Register(ctx, creds, ""); err != nil {
		t.Fatal(err)
	}
	if err := c.Login(ctx, creds); err != nil {
		t.Fatal(err)
	}

	// the same device logging in again replaces the session id
	other := newServerClient(t, srv, false, tokenstore.NewMemoryStorage(), nil)
	if err := other.Login(ctx, creds); err != nil {
		t.Fatal(err)
	}

	_ = store.SaveAccess("garbage")
	_, err := c.Me(ctx)
	var se *ServerError
	if !errors.As(err, &se) || se.Status != http.StatusUnauthorized {
		t.Fatalf("Me = %v, want 401", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if ev, err := m.Next(waitCtx); err != nil || ev != authstate.SessionNotFound {
		t.Errorf("event = %v, %v", ev, err)
	}
	if r, _ := store.GetRefresh(); r != "" {
		t.Error("tokens kept after forced logout")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{BaseURL: "not a url", DeviceName: "d"}, tokenstore.NewMemoryStorage(), nil); err == nil {
		t.Error("bad base URL accepted")
	}
	if _, err := New(Config{BaseURL: "http://localhost:8080"}, tokenstore.NewMemoryStorage(), nil); err == nil {
		t.Error("missing device name accepted")
	}
}

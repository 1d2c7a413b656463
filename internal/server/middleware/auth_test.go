package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/dsqrwym/Maian-sub000/internal/security"
)

type stubVerifier struct {
	payload security.Payload
	err     error
	got     string
}

func (s *stubVerifier) VerifyRequest(ctx context.Context, token string) (security.Payload, error) {
	s.got = token
	return s.payload, s.err
}

func writeErr(c *gin.Context, err error) {
	c.JSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
}

func newAuthRouter(v Verifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", RequireAuth(v, writeErr), func(c *gin.Context) {
		uid, _ := GetUserID(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"userId": uid})
	})
	return r
}

func TestRequireAuth_NoToken(t *testing.T) {
	v := &stubVerifier{}
	r := newAuthRouter(v)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if v.got != "" {
		t.Error("verifier must not be called without a token")
	}
}

func TestRequireAuth_ValidToken(t *testing.T) {
	v := &stubVerifier{payload: security.Payload{UserID: "user-1", SessionID: "s1"}}
	r := newAuthRouter(v)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "bearer  tok-123 ")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if v.got != "tok-123" {
		t.Errorf("token = %q, want %q", v.got, "tok-123")
	}
	if body := w.Body.String(); body != `{"userId":"user-1"}` {
		t.Errorf("body = %s", body)
	}
}

func TestRequireAuth_VerifierError(t *testing.T) {
	v := &stubVerifier{err: errors.New("session revoked")}
	r := newAuthRouter(v)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"BEARER abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"Bearer ", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		if got := BearerToken(req); got != tt.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

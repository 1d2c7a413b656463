// Package authclient is the Go client for the auth server. It keeps tokens in
// a tokenstore.Storage, refreshes them transparently and reports forced
// logouts to an authstate.Sink.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/dsqrwym/Maian-sub000/internal/client/authstate"
	"github.com/dsqrwym/Maian-sub000/internal/client/tokenstore"
)

const defaultUserAgent = "maian-authclient/1"

// Config configures a Client.
type Config struct {
	BaseURL string
	// Web selects the cookie + CSRF flow.
	Web        bool
	DeviceName string
	UserAgent  string
	// HTTPClient supplies the base transport and timeout. Its Jar is replaced.
	HTTPClient     *http.Client
	RefreshTimeout time.Duration
}

// Credentials identify the user by exactly one of Email or Username.
type Credentials struct {
	Email    string
	Username string
	Password string
}

// Identity is the body of GET /auth/me.
type Identity struct {
	UserID    string `json:"userId"`
	UserRole  string `json:"userRole"`
	SessionID string `json:"sessionId"`
}

// Session is one entry of GET /auth/sessions.
type Session struct {
	ID         string    `json:"id"`
	DeviceName string    `json:"deviceName"`
	UserAgent  string    `json:"userAgent"`
	LastIP     string    `json:"lastIp"`
	LastActive time.Time `json:"lastActive"`
	Revoked    bool      `json:"revoked"`
	Current    bool      `json:"current"`
}

type tokenBody struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Client talks to the /auth endpoints.
type Client struct {
	base  *url.URL
	cfg   Config
	store tokenstore.Storage
	sink  authstate.Sink
	// raw skips the interceptor; used for the auth endpoints themselves.
	raw *http.Client
	api *http.Client
}

// New builds a Client. sink may be nil.
func New(cfg Config, store tokenstore.Storage, sink authstate.Sink) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("authclient: invalid base URL %q", cfg.BaseURL)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.DeviceName == "" {
		return nil, errors.New("authclient: device name is required")
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	var transport http.RoundTripper
	var timeout time.Duration
	if cfg.HTTPClient != nil {
		transport = cfg.HTTPClient.Transport
		timeout = cfg.HTTPClient.Timeout
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	c := &Client{
		base:  base,
		cfg:   cfg,
		store: store,
		sink:  sink,
		raw:   &http.Client{Transport: transport, Jar: jar, Timeout: timeout},
	}
	it := NewInterceptor(transport, store, c.Refresh, sink)
	if cfg.RefreshTimeout > 0 {
		it.timeout = cfg.RefreshTimeout
	}
	c.api = &http.Client{Transport: it, Jar: jar, Timeout: timeout}
	return c, nil
}

// HTTPClient returns a client that authenticates and refreshes transparently.
func (c *Client) HTTPClient() *http.Client { return c.api }

// URL resolves path against the base URL.
func (c *Client) URL(path string) string { return c.base.String() + path }

// Register creates an account and returns its user id.
func (c *Client) Register(ctx context.Context, creds Credentials, name string) (string, error) {
	var out struct {
		UserID string `json:"userId"`
	}
	body := map[string]string{
		"email":    creds.Email,
		"username": creds.Username,
		"password": creds.Password,
		"name":     name,
	}
	if err := c.do(ctx, c.raw, http.MethodPost, "/auth/register", nil, body, "", &out); err != nil {
		return "", err
	}
	return out.UserID, nil
}

// Login authenticates and stores the issued tokens.
func (c *Client) Login(ctx context.Context, creds Credentials) error {
	body := map[string]string{
		"password":   creds.Password,
		"deviceName": c.cfg.DeviceName,
		"userAgent":  c.cfg.UserAgent,
	}
	if creds.Email != "" {
		body["email"] = creds.Email
	}
	if creds.Username != "" {
		body["username"] = creds.Username
	}
	var out tokenBody
	if err := c.do(ctx, c.raw, http.MethodPost, "/auth/login", nil, body, "", &out); err != nil {
		return err
	}
	var err error
	if c.cfg.Web {
		err = c.saveWeb(out.AccessToken, out.RefreshToken)
	} else {
		err = c.store.Save(out.AccessToken, out.RefreshToken)
	}
	if err != nil {
		return fmt.Errorf("authclient: store tokens: %w", err)
	}
	if c.sink != nil {
		c.sink.LoginSucceeded()
	}
	return nil
}

func (c *Client) saveWeb(access, csrf string) error {
	if err := c.store.ClearRefresh(); err != nil {
		return err
	}
	if err := c.store.SaveCsrf(csrf); err != nil {
		return err
	}
	return c.store.SaveAccess(access)
}

// Refresh exchanges the stored refresh credential for a new access token.
// The interceptor calls it on 401; failures leave storage untouched here.
func (c *Client) Refresh(ctx context.Context) error {
	if c.cfg.Web {
		csrf, err := c.store.GetCsrf()
		if err != nil {
			return err
		}
		if csrf == "" {
			return ErrNotLoggedIn
		}
		var out tokenBody
		if err := c.do(ctx, c.raw, http.MethodPost, "/auth/refresh-token-web", nil, map[string]string{"refreshToken": csrf}, "", &out); err != nil {
			return err
		}
		if out.RefreshToken != "" {
			if err := c.store.SaveCsrf(out.RefreshToken); err != nil {
				return err
			}
		}
		return c.store.SaveAccess(out.AccessToken)
	}

	refresh, err := c.store.GetRefresh()
	if err != nil {
		return err
	}
	if refresh == "" {
		return ErrNotLoggedIn
	}
	var out tokenBody
	q := url.Values{"refreshToken": {refresh}}
	if err := c.do(ctx, c.raw, http.MethodGet, "/auth/refresh-token", q, nil, "", &out); err != nil {
		return err
	}
	return c.store.Save(out.AccessToken, out.RefreshToken)
}

// Logout revokes the current device session. Local tokens are cleared even
// when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	access, err := c.store.GetAccess()
	if err != nil {
		return err
	}
	if access == "" {
		return ErrNotLoggedIn
	}
	callErr := c.do(ctx, c.raw, http.MethodDelete, "/auth/logout", nil, nil, access, nil)
	if err := c.store.Clear(); err != nil {
		return fmt.Errorf("authclient: clear tokens: %w", err)
	}
	if c.sink != nil {
		c.sink.LoggedOut()
	}
	return callErr
}

// Me returns the identity behind the stored access token.
func (c *Client) Me(ctx context.Context) (*Identity, error) {
	var out Identity
	if err := c.do(ctx, c.api, http.MethodGet, "/auth/me", nil, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Sessions lists the caller's device sessions.
func (c *Client) Sessions(ctx context.Context) ([]Session, error) {
	var out struct {
		Sessions []Session `json:"sessions"`
	}
	if err := c.do(ctx, c.api, http.MethodGet, "/auth/sessions", nil, nil, "", &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// Get performs an authenticated GET against path and returns the raw body.
func (c *Client) Get(ctx context.Context, path string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(path), nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	resp, err := c.api.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Op: "GET " + path, Err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &TransportError{Op: "read body", Err: err}
	}
	return resp.StatusCode, data, nil
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, query url.Values, body any, bearer string, out any) error {
	target := c.URL(path)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if c.cfg.Web {
		req.Header.Set("X-Client-Platform", "web")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: "read " + path, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var msg struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &msg)
		return &ServerError{Status: resp.StatusCode, Message: msg.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Op: "decode " + path, Err: err}
	}
	return nil
}

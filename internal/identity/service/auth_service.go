package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dsqrwym/Maian-sub000/internal/audit"
	identitydomain "github.com/dsqrwym/Maian-sub000/internal/identity/domain"
	"github.com/dsqrwym/Maian-sub000/internal/security"
	sessiondomain "github.com/dsqrwym/Maian-sub000/internal/session/domain"
	userdomain "github.com/dsqrwym/Maian-sub000/internal/user/domain"
	userrepo "github.com/dsqrwym/Maian-sub000/internal/user/repository"
)

// Sentinel errors for auth service; handler maps them to HTTP status and message.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrUsernameTaken          = errors.New("username already taken")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidRefreshToken    = errors.New("invalid refresh token")
	ErrCsrfInvalid            = errors.New("csrf token invalid")
	ErrSessionNotFound        = errors.New("session not found")
	ErrSessionRevoked         = errors.New("session revoked")
	// ErrTokenSuperseded is returned by VerifyRequest for a well-formed access
	// token that is no longer the one stored for its session.
	ErrTokenSuperseded = fmt.Errorf("%w: superseded by a newer token", security.ErrTokenInvalid)
)

const csrfBytes = 32

// AuthResult holds the outcome of Register (user_id only), Login, or Refresh.
type AuthResult struct {
	AccessToken string
	// RefreshToken is the refresh token for bearer clients and the CSRF value
	// for web clients. Empty when a web refresh did not rotate.
	RefreshToken string
	// CookieToken is the refresh token to set in the web cookie; empty for
	// bearer clients and for web refreshes that did not rotate.
	CookieToken string
	ExpiresAt   time.Time
	UserID      string
	UserRole    string
	SessionID   string
}

// LoginInput is the request for Login and LoginWeb. Exactly one of Email and Username is set.
type LoginInput struct {
	Email      string
	Username   string
	Password   string
	DeviceName string
	UserAgent  string
	IP         string
}

// RegisterInput is the request for Register. Username is optional.
type RegisterInput struct {
	Email    string
	Username string
	Password string
	Name     string
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	GetByUsername(ctx context.Context, username string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
}

// IdentityRepo is the minimal identity repository needed by the auth service.
type IdentityRepo interface {
	GetByUserAndProvider(ctx context.Context, userID string, provider identitydomain.IdentityProvider) (*identitydomain.Identity, error)
	Create(ctx context.Context, i *identitydomain.Identity) error
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	Upsert(ctx context.Context, s *sessiondomain.Session) (*sessiondomain.Session, error)
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	ListByUser(ctx context.Context, userID string) ([]*sessiondomain.Session, error)
	Revoke(ctx context.Context, id string) (bool, error)
	RevokeByDevice(ctx context.Context, userID, fingerprint string) (bool, error)
	DeleteByDevice(ctx context.Context, userID, fingerprint string) (int64, error)
	UpdateTokens(ctx context.Context, id, hashedAccess, hashedRefresh string) (bool, error)
}

// OperationObserver counts auth outcomes (e.g. Prometheus).
type OperationObserver interface {
	ObserveAuth(op, result string)
}

// Option configures an AuthService.
type Option func(*AuthService)

// WithAuditLogger records security events through l.
func WithAuditLogger(l audit.AuditLogger) Option {
	return func(s *AuthService) { s.audit = l }
}

// WithObserver reports per-operation outcomes to o.
func WithObserver(o OperationObserver) Option {
	return func(s *AuthService) { s.observer = o }
}

// WithTracer overrides the global OTel tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *AuthService) { s.tracer = t }
}

// WithWebRefreshRotation makes RefreshWeb issue a new cookie refresh token and CSRF value.
func WithWebRefreshRotation(enabled bool) Option {
	return func(s *AuthService) { s.rotateWeb = enabled }
}

// AuthService implements register, login, refresh, logout and request verification.
type AuthService struct {
	userRepo     UserRepo
	identityRepo IdentityRepo
	sessionRepo  SessionRepo
	hasher       security.CredentialHasher
	tokens       *security.TokenProvider

	audit     audit.AuditLogger
	observer  OperationObserver
	tracer    trace.Tracer
	rotateWeb bool

	dummyOnce   sync.Once
	dummyDigest string
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(
	userRepo UserRepo,
	identityRepo IdentityRepo,
	sessionRepo SessionRepo,
	hasher security.CredentialHasher,
	tokens *security.TokenProvider,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		userRepo:     userRepo,
		identityRepo: identityRepo,
		sessionRepo:  sessionRepo,
		hasher:       hasher,
		tokens:       tokens,
		tracer:       otel.Tracer("github.com/dsqrwym/Maian-sub000/internal/identity/service"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register creates a user and local identity. Returns AuthResult with UserID only;
// the caller must Login to get tokens.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (res *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Register")
	defer func() {
		uid := ""
		if res != nil {
			uid = res.UserID
		}
		s.finish(ctx, span, audit.Register, uid, "", err)
	}()

	email, err := identitydomain.CanonicalEmail(in.Email)
	if err != nil {
		return nil, err
	}
	username := ""
	if strings.TrimSpace(in.Username) != "" {
		if username, err = identitydomain.CanonicalUsername(in.Username); err != nil {
			return nil, err
		}
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	if username != "" {
		taken, err := s.userRepo.GetByUsername(ctx, username)
		if err != nil {
			return nil, err
		}
		if taken != nil {
			return nil, ErrUsernameTaken
		}
	}
	hashed, err := s.hasher.Hash(ctx, in.Password, security.AlgorithmAdaptive)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user := &userdomain.User{
		ID:        uuid.New().String(),
		Email:     email,
		Username:  username,
		Name:      strings.TrimSpace(in.Name),
		Role:      userdomain.RoleUser,
		Status:    userdomain.UserStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, userrepo.ErrDuplicate) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, err
	}
	identity := &identitydomain.Identity{
		ID:           uuid.New().String(),
		UserID:       user.ID,
		Provider:     identitydomain.IdentityProviderLocal,
		ProviderID:   email,
		PasswordHash: hashed,
		CreatedAt:    now,
	}
	if err := s.identityRepo.Create(ctx, identity); err != nil {
		return nil, err
	}
	return &AuthResult{UserID: user.ID, UserRole: string(user.Role)}, nil
}

// Login authenticates a bearer client and upserts the session for its device.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	return s.login(ctx, in, false)
}

// LoginWeb authenticates a browser client. The returned RefreshToken is a CSRF
// value and CookieToken is the refresh token for the HttpOnly cookie.
func (s *AuthService) LoginWeb(ctx context.Context, in LoginInput) (*AuthResult, error) {
	return s.login(ctx, in, true)
}

func (s *AuthService) login(ctx context.Context, in LoginInput, web bool) (res *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Login", trace.WithAttributes(attribute.Bool("auth.web", web)))
	defer func() {
		var uid, sid string
		if res != nil {
			uid, sid = res.UserID, res.SessionID
		}
		s.finish(ctx, span, audit.Login, uid, sid, err)
	}()

	user, err := s.authenticate(ctx, in)
	if err != nil {
		return nil, err
	}
	fp, err := s.hasher.Hash(ctx, security.FingerprintInput(in.DeviceName, in.UserAgent), security.AlgorithmFast)
	if err != nil {
		return nil, err
	}
	payload := security.Payload{
		UserID:            user.ID,
		UserRole:          string(user.Role),
		DeviceFingerprint: fp,
		SessionID:         ulid.Make().String(),
	}
	access, refresh, err := s.issuePair(payload)
	if err != nil {
		return nil, err
	}
	res = &AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    time.Now().UTC().Add(s.tokens.AccessTTL()),
		UserID:       user.ID,
		UserRole:     payload.UserRole,
		SessionID:    payload.SessionID,
	}
	// the stored refresh hash binds whatever the client must present on refresh
	presented := refresh
	if web {
		csrf, err := security.RandomToken(csrfBytes)
		if err != nil {
			return nil, err
		}
		res.RefreshToken, res.CookieToken = csrf, refresh
		presented = csrf
	}
	hashedAccess, hashedRefresh, err := s.hashPair(ctx, access, presented)
	if err != nil {
		return nil, err
	}
	_, err = s.sessionRepo.Upsert(ctx, &sessiondomain.Session{
		ID:                 payload.SessionID,
		UserID:             user.ID,
		DeviceFingerprint:  fp,
		DeviceName:         in.DeviceName,
		UserAgent:          in.UserAgent,
		LastIP:             in.IP,
		HashedAccessToken:  hashedAccess,
		HashedRefreshToken: hashedRefresh,
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// authenticate resolves the identifier and checks the password. Unknown users
// still pay for one adaptive verify so response time does not reveal existence.
func (s *AuthService) authenticate(ctx context.Context, in LoginInput) (*userdomain.User, error) {
	id, err := identitydomain.ParseLoginIdentifier(in.Email, in.Username)
	if err != nil {
		if errors.Is(err, identitydomain.ErrIdentifierMissing) || errors.Is(err, identitydomain.ErrIdentifierAmbiguous) {
			return nil, err
		}
		return nil, ErrInvalidCredentials
	}
	if in.Password == "" {
		return nil, ErrInvalidCredentials
	}
	var user *userdomain.User
	switch id.Kind() {
	case identitydomain.IdentifierEmail:
		user, err = s.userRepo.GetByEmail(ctx, id.Value())
	case identitydomain.IdentifierUsername:
		user, err = s.userRepo.GetByUsername(ctx, id.Value())
	}
	if err != nil {
		return nil, err
	}
	var ident *identitydomain.Identity
	if user != nil && user.Status == userdomain.UserStatusActive {
		if ident, err = s.identityRepo.GetByUserAndProvider(ctx, user.ID, identitydomain.IdentityProviderLocal); err != nil {
			return nil, err
		}
	}
	if ident == nil || ident.PasswordHash == "" {
		if d := s.dummy(ctx); d != "" {
			if _, err := s.hasher.Verify(ctx, in.Password, d, security.AlgorithmAdaptive); errors.Is(err, security.ErrServiceUnavailable) {
				return nil, err
			}
		}
		return nil, ErrInvalidCredentials
	}
	ok, err := s.hasher.Verify(ctx, in.Password, ident.PasswordHash, security.AlgorithmAdaptive)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) dummy(ctx context.Context) string {
	s.dummyOnce.Do(func() {
		secret, err := security.RandomToken(16)
		if err != nil {
			return
		}
		s.dummyDigest, _ = s.hasher.Hash(context.WithoutCancel(ctx), secret, security.AlgorithmAdaptive)
	})
	return s.dummyDigest
}

// Refresh exchanges a bearer refresh token for a new access token and a rotated refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (res *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Refresh")
	var payload security.Payload
	defer func() { s.finish(ctx, span, audit.Refresh, payload.UserID, payload.SessionID, err) }()

	payload, sess, err := s.loadRefreshSession(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	ok, err := s.hasher.Verify(ctx, refreshToken, sess.HashedRefreshToken, security.AlgorithmFast)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidRefreshToken
	}
	access, refresh, err := s.issuePair(payload)
	if err != nil {
		return nil, err
	}
	hashedAccess, hashedRefresh, err := s.hashPair(ctx, access, refresh)
	if err != nil {
		return nil, err
	}
	if err := s.rotate(ctx, sess.ID, hashedAccess, hashedRefresh); err != nil {
		return nil, err
	}
	return s.result(payload, access, refresh, ""), nil
}

// RefreshWeb exchanges the cookie refresh token plus its CSRF companion for a
// new access token. With rotation enabled the cookie token and CSRF value are
// replaced too; otherwise the stored CSRF hash is kept.
func (s *AuthService) RefreshWeb(ctx context.Context, cookieToken, csrf string) (res *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.RefreshWeb", trace.WithAttributes(attribute.Bool("auth.rotate", s.rotateWeb)))
	var payload security.Payload
	defer func() { s.finish(ctx, span, audit.Refresh, payload.UserID, payload.SessionID, err) }()

	payload, sess, err := s.loadRefreshSession(ctx, cookieToken)
	if err != nil {
		return nil, err
	}
	if csrf == "" {
		return nil, ErrCsrfInvalid
	}
	ok, err := s.hasher.Verify(ctx, csrf, sess.HashedRefreshToken, security.AlgorithmFast)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCsrfInvalid
	}
	access, err := s.tokens.IssueAccess(payload)
	if err != nil {
		return nil, err
	}
	if !s.rotateWeb {
		hashedAccess, err := s.hasher.Hash(ctx, access, security.AlgorithmFast)
		if err != nil {
			return nil, err
		}
		if err := s.rotate(ctx, sess.ID, hashedAccess, ""); err != nil {
			return nil, err
		}
		return s.result(payload, access, "", ""), nil
	}
	refresh, err := s.tokens.IssueRefresh(payload)
	if err != nil {
		return nil, err
	}
	newCsrf, err := security.RandomToken(csrfBytes)
	if err != nil {
		return nil, err
	}
	hashedAccess, hashedCsrf, err := s.hashPair(ctx, access, newCsrf)
	if err != nil {
		return nil, err
	}
	if err := s.rotate(ctx, sess.ID, hashedAccess, hashedCsrf); err != nil {
		return nil, err
	}
	return s.result(payload, access, newCsrf, refresh), nil
}

// loadRefreshSession verifies a refresh token and loads its live session.
func (s *AuthService) loadRefreshSession(ctx context.Context, token string) (security.Payload, *sessiondomain.Session, error) {
	payload, err := s.tokens.ValidateRefresh(token)
	if err != nil {
		return security.Payload{}, nil, err
	}
	sess, err := s.liveSession(ctx, payload)
	if err != nil {
		return payload, nil, err
	}
	return payload, sess, nil
}

func (s *AuthService) liveSession(ctx context.Context, payload security.Payload) (*sessiondomain.Session, error) {
	sess, err := s.sessionRepo.GetByID(ctx, payload.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.UserID != payload.UserID {
		return nil, ErrSessionNotFound
	}
	if sess.Revoked {
		return nil, ErrSessionRevoked
	}
	return sess, nil
}

// rotate persists new token hashes. A row that vanished or was revoked
// between load and write reports the matching session error.
func (s *AuthService) rotate(ctx context.Context, sessionID, hashedAccess, hashedRefresh string) error {
	ok, err := s.sessionRepo.UpdateTokens(ctx, sessionID, hashedAccess, hashedRefresh)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound
	}
	return ErrSessionRevoked
}

// Logout revokes the live session of the device the access token was issued to.
// A second logout on the same device reports ErrSessionNotFound.
func (s *AuthService) Logout(ctx context.Context, accessToken string) (err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Logout")
	var payload security.Payload
	defer func() { s.finish(ctx, span, audit.Logout, payload.UserID, payload.SessionID, err) }()

	payload, err = s.tokens.ValidateAccess(accessToken)
	if err != nil {
		return err
	}
	revoked, err := s.sessionRepo.RevokeByDevice(ctx, payload.UserID, payload.DeviceFingerprint)
	if err != nil {
		return err
	}
	if !revoked {
		return ErrSessionNotFound
	}
	return nil
}

// VerifyRequest authorizes one API call: the access token must verify, its
// session must exist and be live, and the token must be the latest one issued
// for that session.
func (s *AuthService) VerifyRequest(ctx context.Context, accessToken string) (payload security.Payload, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.VerifyRequest")
	defer func() {
		s.observe("verify", err)
		endSpan(span, err)
	}()

	payload, err = s.tokens.ValidateAccess(accessToken)
	if err != nil {
		return security.Payload{}, err
	}
	sess, err := s.liveSession(ctx, payload)
	if err != nil {
		return security.Payload{}, err
	}
	ok, err := s.hasher.Verify(ctx, accessToken, sess.HashedAccessToken, security.AlgorithmFast)
	if err != nil {
		return security.Payload{}, err
	}
	if !ok {
		return security.Payload{}, ErrTokenSuperseded
	}
	return payload, nil
}

// ListSessions returns every session row of the user, revoked ones included.
func (s *AuthService) ListSessions(ctx context.Context, userID string) ([]*sessiondomain.Session, error) {
	return s.sessionRepo.ListByUser(ctx, userID)
}

// DeleteSession hard-deletes the user's session for the given device and
// returns the number of rows removed.
func (s *AuthService) DeleteSession(ctx context.Context, userID, deviceName, userAgent string) (n int64, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.DeleteSession")
	defer func() { s.finish(ctx, span, audit.DeleteSession, userID, "", err) }()

	fp, err := s.hasher.Hash(ctx, security.FingerprintInput(deviceName, userAgent), security.AlgorithmFast)
	if err != nil {
		return 0, err
	}
	return s.sessionRepo.DeleteByDevice(ctx, userID, fp)
}

// RevokeSession revokes the user's session with the given id. Sessions of
// other users report ErrSessionNotFound; a repeated revoke reports
// ErrSessionRevoked.
func (s *AuthService) RevokeSession(ctx context.Context, userID, sessionID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.RevokeSession")
	defer func() { s.finish(ctx, span, audit.RevokeSession, userID, sessionID, err) }()

	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil || sess.UserID != userID {
		return ErrSessionNotFound
	}
	revoked, err := s.sessionRepo.Revoke(ctx, sessionID)
	if err != nil {
		return err
	}
	if !revoked {
		return ErrSessionRevoked
	}
	return nil
}

func (s *AuthService) issuePair(p security.Payload) (access, refresh string, err error) {
	if access, err = s.tokens.IssueAccess(p); err != nil {
		return "", "", err
	}
	if refresh, err = s.tokens.IssueRefresh(p); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (s *AuthService) hashPair(ctx context.Context, a, b string) (string, string, error) {
	ha, err := s.hasher.Hash(ctx, a, security.AlgorithmFast)
	if err != nil {
		return "", "", err
	}
	hb, err := s.hasher.Hash(ctx, b, security.AlgorithmFast)
	if err != nil {
		return "", "", err
	}
	return ha, hb, nil
}

func (s *AuthService) result(p security.Payload, access, refresh, cookie string) *AuthResult {
	return &AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		CookieToken:  cookie,
		ExpiresAt:    time.Now().UTC().Add(s.tokens.AccessTTL()),
		UserID:       p.UserID,
		UserRole:     p.UserRole,
		SessionID:    p.SessionID,
	}
}

func (s *AuthService) finish(ctx context.Context, span trace.Span, ar audit.ActionResource, userID, sessionID string, err error) {
	s.observe(ar.Action, err)
	if s.audit != nil {
		outcome, detail := audit.OutcomeSuccess, ""
		if err != nil {
			outcome, detail = audit.OutcomeFailure, err.Error()
		}
		s.audit.LogEvent(ctx, userID, sessionID, ar, outcome, detail)
	}
	endSpan(span, err)
}

func (s *AuthService) observe(op string, err error) {
	if s.observer == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.observer.ObserveAuth(op, result)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

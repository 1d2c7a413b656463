package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid is returned when a token is malformed, has a bad signature
	// or is missing required claims.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired is returned when a well-signed token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenNotYetValid is returned when a well-signed token is used before its nbf/iat.
	ErrTokenNotYetValid = errors.New("token not yet valid")
)

// Payload is the identity carried by access and refresh tokens.
type Payload struct {
	UserID            string
	UserRole          string
	DeviceFingerprint string
	SessionID         string
	IssuedAt          time.Time
	ExpiresAt         time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
	UserID       string `json:"userId"`
	UserRole     string `json:"userRole"`
	DeviceFinger string `json:"deviceFinger"`
	SessionID    string `json:"sessionId"`
}

// TokenCodec signs and verifies HS256 JWTs carrying a Payload.
type TokenCodec struct {
	leeway time.Duration
	now    func() time.Time
}

// NewTokenCodec returns a codec that tolerates leeway of clock skew on exp/nbf.
func NewTokenCodec(leeway time.Duration) *TokenCodec {
	return &TokenCodec{leeway: leeway, now: time.Now}
}

// Sign returns a compact JWT for p that expires ttl from now. IssuedAt and
// ExpiresAt on p are ignored and derived from the codec clock.
func (c *TokenCodec) Sign(p Payload, secret []byte, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("token: empty signing secret")
	}
	jti, err := generateJTI()
	if err != nil {
		return "", err
	}
	now := c.now().UTC()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:       p.UserID,
		UserRole:     p.UserRole,
		DeviceFinger: p.DeviceFingerprint,
		SessionID:    p.SessionID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Verify checks the signature and time claims of token against secret and
// returns its payload. Errors are ErrTokenExpired, ErrTokenNotYetValid or
// ErrTokenInvalid.
func (c *TokenCodec) Verify(token string, secret []byte) (Payload, error) {
	if token == "" || len(secret) == 0 {
		return Payload{}, ErrTokenInvalid
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(c.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	var claims tokenClaims
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Payload{}, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
			return Payload{}, ErrTokenNotYetValid
		default:
			return Payload{}, ErrTokenInvalid
		}
	}
	if claims.UserID == "" || claims.SessionID == "" {
		return Payload{}, ErrTokenInvalid
	}
	p := Payload{
		UserID:            claims.UserID,
		UserRole:          claims.UserRole,
		DeviceFingerprint: claims.DeviceFinger,
		SessionID:         claims.SessionID,
	}
	if claims.IssuedAt != nil {
		p.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

// TokenProvider issues and validates access and refresh tokens, each signed
// with its own secret so one can never be accepted as the other.
type TokenProvider struct {
	codec         *TokenCodec
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenProvider returns a TokenProvider. accessSecret and refreshSecret must differ.
func NewTokenProvider(codec *TokenCodec, accessSecret, refreshSecret []byte, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		codec:         codec,
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// AccessTTL returns the configured access token lifetime.
func (p *TokenProvider) AccessTTL() time.Duration { return p.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (p *TokenProvider) RefreshTTL() time.Duration { return p.refreshTTL }

// IssueAccess signs a short-lived access token.
func (p *TokenProvider) IssueAccess(payload Payload) (string, error) {
	return p.codec.Sign(payload, p.accessSecret, p.accessTTL)
}

// IssueRefresh signs a long-lived refresh token.
func (p *TokenProvider) IssueRefresh(payload Payload) (string, error) {
	return p.codec.Sign(payload, p.refreshSecret, p.refreshTTL)
}

// ValidateAccess verifies an access token.
func (p *TokenProvider) ValidateAccess(token string) (Payload, error) {
	return p.codec.Verify(token, p.accessSecret)
}

// ValidateRefresh verifies a refresh token.
func (p *TokenProvider) ValidateRefresh(token string) (Payload, error) {
	return p.codec.Verify(token, p.refreshSecret)
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// RandomToken returns n random bytes hex-encoded; used for CSRF values.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

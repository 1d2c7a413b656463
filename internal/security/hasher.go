package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Algorithm selects the digest family for a CredentialHasher call.
type Algorithm int

const (
	// AlgorithmAdaptive is a deliberately slow, salted digest for low-entropy
	// secrets such as passwords (bcrypt or argon2id).
	AlgorithmAdaptive Algorithm = iota
	// AlgorithmFast is an unsalted SHA-256 digest for high-entropy secrets
	// such as tokens and CSRF values.
	AlgorithmFast
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmAdaptive:
		return "adaptive"
	case AlgorithmFast:
		return "fast"
	default:
		return fmt.Sprintf("algorithm(%d)", int(a))
	}
}

// ErrUnknownAlgorithm is returned for an Algorithm value outside the defined set.
var ErrUnknownAlgorithm = errors.New("unknown hash algorithm")

// CredentialHasher computes and checks digests of secrets. Implementations
// may run the work off the calling goroutine; callers only see latency.
type CredentialHasher interface {
	Hash(ctx context.Context, secret string, alg Algorithm) (string, error)
	Verify(ctx context.Context, secret, digest string, alg Algorithm) (bool, error)
}

// HashObserver receives timing for each completed hasher call.
type HashObserver interface {
	ObserveHash(alg Algorithm, op string, d time.Duration)
}

func digest(h *Hasher, secret string, alg Algorithm) (string, error) {
	switch alg {
	case AlgorithmAdaptive:
		return h.Hash([]byte(secret))
	case AlgorithmFast:
		return HashToken(secret), nil
	default:
		return "", ErrUnknownAlgorithm
	}
}

func verify(h *Hasher, secret, stored string, alg Algorithm) (bool, error) {
	switch alg {
	case AlgorithmAdaptive:
		err := h.Compare(stored, []byte(secret))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	case AlgorithmFast:
		return TokenHashEqual(secret, stored), nil
	default:
		return false, ErrUnknownAlgorithm
	}
}

// PoolHasher runs every hash and verify on a Pool so request goroutines never
// execute the adaptive algorithm themselves.
type PoolHasher struct {
	hasher   *Hasher
	pool     *Pool
	observer HashObserver
}

// NewPoolHasher returns a CredentialHasher backed by pool. observer may be nil.
func NewPoolHasher(h *Hasher, pool *Pool, observer HashObserver) *PoolHasher {
	return &PoolHasher{hasher: h, pool: pool, observer: observer}
}

// Hash computes the digest of secret on the pool.
func (p *PoolHasher) Hash(ctx context.Context, secret string, alg Algorithm) (string, error) {
	var (
		out string
		err error
	)
	start := time.Now()
	if perr := p.pool.Do(ctx, func() { out, err = digest(p.hasher, secret, alg) }); perr != nil {
		return "", perr
	}
	p.observe(alg, "hash", start)
	return out, err
}

// Verify checks secret against stored on the pool.
func (p *PoolHasher) Verify(ctx context.Context, secret, stored string, alg Algorithm) (bool, error) {
	var (
		ok  bool
		err error
	)
	start := time.Now()
	if perr := p.pool.Do(ctx, func() { ok, err = verify(p.hasher, secret, stored, alg) }); perr != nil {
		return false, perr
	}
	p.observe(alg, "verify", start)
	return ok, err
}

func (p *PoolHasher) observe(alg Algorithm, op string, start time.Time) {
	if p.observer != nil {
		p.observer.ObserveHash(alg, op, time.Since(start))
	}
}

// SyncHasher runs inline on the caller's goroutine. Intended for tests and tools.
type SyncHasher struct {
	hasher *Hasher
}

// NewSyncHasher returns a CredentialHasher that hashes synchronously.
func NewSyncHasher(h *Hasher) *SyncHasher {
	return &SyncHasher{hasher: h}
}

// Hash computes the digest of secret.
func (s *SyncHasher) Hash(ctx context.Context, secret string, alg Algorithm) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return digest(s.hasher, secret, alg)
}

// Verify checks secret against stored.
func (s *SyncHasher) Verify(ctx context.Context, secret, stored string, alg Algorithm) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return verify(s.hasher, secret, stored, alg)
}

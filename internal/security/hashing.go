package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Scheme selects the adaptive algorithm used for new password digests.
// Verification always dispatches on the digest prefix, so existing bcrypt
// digests keep working after switching to argon2id and vice versa.
type Scheme string

const (
	SchemeBcrypt   Scheme = "bcrypt"
	SchemeArgon2id Scheme = "argon2id"
)

const argon2idPrefix = "$argon2id$"

// ErrMalformedDigest is returned when a stored digest cannot be parsed.
var ErrMalformedDigest = errors.New("malformed password digest")

// Argon2Params are the argon2id cost parameters.
type Argon2Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params follows the RFC 9106 second recommended option.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		MemoryKiB:   64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher hashes and verifies passwords using bcrypt or argon2id. Callers must
// not log or persist plaintext passwords. Hasher is CPU bound and synchronous;
// request paths reach it through a CredentialHasher.
type Hasher struct {
	Cost   int
	Scheme Scheme
	Argon2 Argon2Params
}

// NewHasher returns a bcrypt Hasher with the given cost (4–31). Cost 12 is a
// reasonable default for interactive login.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost, Scheme: SchemeBcrypt, Argon2: DefaultArgon2Params()}
}

// WithScheme returns a copy of h that produces digests with scheme.
func (h *Hasher) WithScheme(scheme Scheme) *Hasher {
	cp := *h
	if scheme == "" {
		scheme = SchemeBcrypt
	}
	cp.Scheme = scheme
	return &cp
}

// Hash produces a digest of password suitable for storage.
func (h *Hasher) Hash(password []byte) (string, error) {
	if h.Scheme == SchemeArgon2id {
		return h.hashArgon2id(password)
	}
	b, err := bcrypt.GenerateFromPassword(password, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare verifies password against the stored digest in constant time.
// Returns nil if they match and bcrypt.ErrMismatchedHashAndPassword if they do
// not. Any other error means the digest itself is unusable.
func (h *Hasher) Compare(digest string, password []byte) error {
	if strings.HasPrefix(digest, argon2idPrefix) {
		return h.compareArgon2id(digest, password)
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), password)
}

func (h *Hasher) hashArgon2id(password []byte) (string, error) {
	p := h.Argon2
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}
	key := argon2.IDKey(password, salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)
	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.MemoryKiB, p.Iterations, p.Parallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

func (h *Hasher) compareArgon2id(digest string, password []byte) error {
	p, salt, want, err := decodeArgon2id(digest)
	if err != nil {
		return err
	}
	// refuse digests far above the configured cost
	if p.MemoryKiB > h.Argon2.MemoryKiB*4 || p.Iterations > h.Argon2.Iterations*4 {
		return ErrMalformedDigest
	}
	got := argon2.IDKey(password, salt, p.Iterations, p.MemoryKiB, p.Parallelism, uint32(len(want)))
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return bcrypt.ErrMismatchedHashAndPassword
	}
	return nil
}

func decodeArgon2id(digest string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params
	parts := strings.Split(digest, "$")
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, ErrMalformedDigest
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, ErrMalformedDigest
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Iterations, &p.Parallelism); err != nil {
		return p, nil, nil, ErrMalformedDigest
	}
	if p.Iterations == 0 || p.Parallelism == 0 || p.MemoryKiB == 0 {
		return p, nil, nil, ErrMalformedDigest
	}
	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, ErrMalformedDigest
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) < 16 || len(key) > 128 {
		return p, nil, nil, ErrMalformedDigest
	}
	return p, salt, key, nil
}

package security

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(4)
	hash, err := h.Hash([]byte("Aa123456"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("bcrypt digest prefix: got %q", hash[:4])
	}
	if err := h.Compare(hash, []byte("Aa123456")); err != nil {
		t.Errorf("Compare: %v", err)
	}
}

func TestHasher_CompareWrongPassword(t *testing.T) {
	h := NewHasher(4)
	hash, _ := h.Hash([]byte("Aa123456"))
	err := h.Compare(hash, []byte("Aa1234567"))
	if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		t.Errorf("Compare wrong password: want ErrMismatchedHashAndPassword, got %v", err)
	}
}

func TestHasher_Cost(t *testing.T) {
	for _, tc := range []struct {
		in, want int
	}{
		{0, bcrypt.DefaultCost},
		{2, bcrypt.MinCost},
		{40, bcrypt.MaxCost},
		{12, 12},
	} {
		if got := NewHasher(tc.in).Cost; got != tc.want {
			t.Errorf("NewHasher(%d).Cost = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func testArgon2Hasher() *Hasher {
	h := NewHasher(4).WithScheme(SchemeArgon2id)
	h.Argon2 = Argon2Params{MemoryKiB: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	return h
}

func TestHasher_Argon2id(t *testing.T) {
	h := testArgon2Hasher()
	hash, err := h.Hash([]byte("Aa123456"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Errorf("argon2id digest: got %q", hash)
	}
	if err := h.Compare(hash, []byte("Aa123456")); err != nil {
		t.Errorf("Compare: %v", err)
	}
	if err := h.Compare(hash, []byte("wrong")); !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		t.Errorf("Compare wrong password: got %v", err)
	}
}

func TestHasher_CompareDispatchesOnPrefix(t *testing.T) {
	bc := NewHasher(4)
	bcryptHash, _ := bc.Hash([]byte("secret-pw"))
	ar := testArgon2Hasher()
	argonHash, _ := ar.Hash([]byte("secret-pw"))

	// a hasher configured for argon2id still verifies legacy bcrypt digests and the reverse
	if err := ar.Compare(bcryptHash, []byte("secret-pw")); err != nil {
		t.Errorf("argon2id hasher on bcrypt digest: %v", err)
	}
	bc.Argon2 = ar.Argon2
	if err := bc.Compare(argonHash, []byte("secret-pw")); err != nil {
		t.Errorf("bcrypt hasher on argon2id digest: %v", err)
	}
}

func TestHasher_MalformedArgon2id(t *testing.T) {
	h := testArgon2Hasher()
	for _, d := range []string{
		"$argon2id$",
		"$argon2id$v=19$m=8192,t=1,p=1$$",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=99999999,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5a2V5",
	} {
		if err := h.Compare(d, []byte("x")); !errors.Is(err, ErrMalformedDigest) {
			t.Errorf("Compare(%q): want ErrMalformedDigest, got %v", d, err)
		}
	}
}

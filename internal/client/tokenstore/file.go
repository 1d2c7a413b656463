package tokenstore

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrWrongPassphrase is returned when the file cannot be decrypted with the given passphrase.
	ErrWrongPassphrase = errors.New("tokenstore: wrong passphrase or tampered file")
	// ErrCorrupt is returned when the file is not a token store.
	ErrCorrupt = errors.New("tokenstore: corrupt file")
)

// File layout: magic | salt | nonce | sealed JSON(Tokens).
var fileMagic = []byte("MTS1")

const saltLen = 16

// KDF parameters for the file key. Variables so tests can lower the cost.
var (
	kdfTime    uint32 = 1
	kdfMemory  uint32 = 64 * 1024
	kdfThreads uint8  = 4
)

// FileStorage keeps tokens in a single file sealed with XChaCha20-Poly1305.
// The key is derived from a passphrase with Argon2id and a per-file salt.
// Every write replaces the file atomically.
type FileStorage struct {
	path       string
	passphrase []byte

	mu   sync.Mutex
	salt []byte
	key  []byte
	t    Tokens
}

// OpenFile opens or prepares the store at path. An existing file is decrypted
// up front so a wrong passphrase is reported here.
func OpenFile(path, passphrase string) (*FileStorage, error) {
	if passphrase == "" {
		return nil, errors.New("tokenstore: passphrase is required")
	}
	s := &FileStorage{path: path, passphrase: []byte(passphrase)}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tokenstore: read %s: %w", path, err)
	}
	if err := s.load(raw); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file path.
func (s *FileStorage) Path() string { return s.path }

func (s *FileStorage) load(raw []byte) error {
	head := len(fileMagic) + saltLen + chacha20poly1305.NonceSizeX
	if len(raw) < head+chacha20poly1305.Overhead || !bytes.Equal(raw[:len(fileMagic)], fileMagic) {
		return ErrCorrupt
	}
	salt := raw[len(fileMagic) : len(fileMagic)+saltLen]
	nonce := raw[len(fileMagic)+saltLen : head]
	key := s.deriveKey(salt)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return err
	}
	plain, err := aead.Open(nil, nonce, raw[head:], fileMagic)
	if err != nil {
		return ErrWrongPassphrase
	}
	var t Tokens
	if err := json.Unmarshal(plain, &t); err != nil {
		return ErrCorrupt
	}
	s.salt = append([]byte(nil), salt...)
	s.key = key
	s.t = t
	return nil
}

func (s *FileStorage) deriveKey(salt []byte) []byte {
	return argon2.IDKey(s.passphrase, salt, kdfTime, kdfMemory, kdfThreads, chacha20poly1305.KeySize)
}

// update applies f and persists the result; the in-memory copy only changes
// when the write succeeds.
func (s *FileStorage) update(f func(*Tokens)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.t
	f(&next)
	if err := s.write(next); err != nil {
		return err
	}
	s.t = next
	return nil
}

func (s *FileStorage) write(t Tokens) error {
	if s.key == nil {
		salt := make([]byte, saltLen)
		if _, err := rand.Read(salt); err != nil {
			return fmt.Errorf("tokenstore: salt: %w", err)
		}
		s.salt = salt
		s.key = s.deriveKey(salt)
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return err
	}
	plain, err := json.Marshal(t)
	if err != nil {
		return err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("tokenstore: nonce: %w", err)
	}
	out := make([]byte, 0, len(fileMagic)+saltLen+len(nonce)+len(plain)+chacha20poly1305.Overhead)
	out = append(out, fileMagic...)
	out = append(out, s.salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plain, fileMagic)

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("tokenstore: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tokens-*")
	if err != nil {
		return fmt.Errorf("tokenstore: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenstore: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenstore: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenstore: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("tokenstore: rename: %w", err)
	}
	return nil
}

func (s *FileStorage) read() Tokens {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t
}

func (s *FileStorage) SaveAccess(token string) error {
	return s.update(func(t *Tokens) { t.Access = token })
}

func (s *FileStorage) GetAccess() (string, error) { return s.read().Access, nil }

func (s *FileStorage) ClearAccess() error { return s.SaveAccess("") }

func (s *FileStorage) SaveRefresh(token string) error {
	return s.update(func(t *Tokens) { t.Refresh = token })
}

func (s *FileStorage) GetRefresh() (string, error) { return s.read().Refresh, nil }

func (s *FileStorage) ClearRefresh() error { return s.SaveRefresh("") }

func (s *FileStorage) SaveCsrf(token string) error {
	return s.update(func(t *Tokens) { t.Csrf = token })
}

func (s *FileStorage) GetCsrf() (string, error) { return s.read().Csrf, nil }

func (s *FileStorage) ClearCsrf() error { return s.SaveCsrf("") }

func (s *FileStorage) Save(access, refresh string) error {
	return s.update(func(t *Tokens) { t.Access, t.Refresh = access, refresh })
}

func (s *FileStorage) Clear() error { return s.update(func(t *Tokens) { *t = Tokens{} }) }

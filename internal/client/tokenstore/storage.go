// Package tokenstore persists the client's access, refresh and CSRF tokens.
package tokenstore

import "sync"

// Storage holds the client token triplet. A missing token reads as "" with a nil error.
type Storage interface {
	SaveAccess(token string) error
	GetAccess() (string, error)
	ClearAccess() error
	SaveRefresh(token string) error
	GetRefresh() (string, error)
	ClearRefresh() error
	// SaveCsrf and GetCsrf are used by web clients only.
	SaveCsrf(token string) error
	GetCsrf() (string, error)
	ClearCsrf() error
	// Save stores access and refresh together.
	Save(access, refresh string) error
	// Clear removes every token.
	Clear() error
}

// Tokens is the stored triplet.
type Tokens struct {
	Access  string `json:"access,omitempty"`
	Refresh string `json:"refresh,omitempty"`
	Csrf    string `json:"csrf,omitempty"`
}

// MemoryStorage keeps tokens in process memory.
type MemoryStorage struct {
	mu sync.RWMutex
	t  Tokens
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage { return &MemoryStorage{} }

func (m *MemoryStorage) set(f func(*Tokens)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f(&m.t)
	return nil
}

func (m *MemoryStorage) get() Tokens {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.t
}

func (m *MemoryStorage) SaveAccess(token string) error {
	return m.set(func(t *Tokens) { t.Access = token })
}

func (m *MemoryStorage) GetAccess() (string, error) { return m.get().Access, nil }

func (m *MemoryStorage) ClearAccess() error { return m.SaveAccess("") }

func (m *MemoryStorage) SaveRefresh(token string) error {
	return m.set(func(t *Tokens) { t.Refresh = token })
}

func (m *MemoryStorage) GetRefresh() (string, error) { return m.get().Refresh, nil }

func (m *MemoryStorage) ClearRefresh() error { return m.SaveRefresh("") }

func (m *MemoryStorage) SaveCsrf(token string) error {
	return m.set(func(t *Tokens) { t.Csrf = token })
}

func (m *MemoryStorage) GetCsrf() (string, error) { return m.get().Csrf, nil }

func (m *MemoryStorage) ClearCsrf() error { return m.SaveCsrf("") }

func (m *MemoryStorage) Save(access, refresh string) error {
	return m.set(func(t *Tokens) { t.Access, t.Refresh = access, refresh })
}

func (m *MemoryStorage) Clear() error { return m.set(func(t *Tokens) { *t = Tokens{} }) }

package repository

import (
	"context"
	"sync"

	"github.com/dsqrwym/Maian-sub000/internal/user/domain"
)

// MemoryRepository keeps users in process memory. Used by STORE_DRIVER=memory and tests.
type MemoryRepository struct {
	mu   sync.Mutex
	byID map[string]*domain.User
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*domain.User)}
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clone(r.byID[id]), nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r *MemoryRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if username == "" {
		return nil, nil
	}
	return r.find(func(u *domain.User) bool { return u.Username == username })
}

func (r *MemoryRepository) Create(ctx context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.ID == u.ID || existing.Email == u.Email || (u.Username != "" && existing.Username == u.Username) {
			return ErrDuplicate
		}
	}
	r.byID[u.ID] = clone(u)
	return nil
}

func (r *MemoryRepository) find(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if match(u) {
			return clone(u), nil
		}
	}
	return nil, nil
}

func clone(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

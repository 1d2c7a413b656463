package repository

import (
	"context"
	"errors"
	"sync"

	"github.com/dsqrwym/Maian-sub000/internal/identity/domain"
)

// MemoryRepository keeps identities in process memory.
type MemoryRepository struct {
	mu sync.Mutex
	m  map[string]*domain.Identity
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{m: make(map[string]*domain.Identity)}
}

func (r *MemoryRepository) GetByUserAndProvider(ctx context.Context, userID string, provider domain.IdentityProvider) (*domain.Identity, error) {
	return r.find(func(i *domain.Identity) bool { return i.UserID == userID && i.Provider == provider })
}

func (r *MemoryRepository) GetByProvider(ctx context.Context, provider domain.IdentityProvider, providerID string) (*domain.Identity, error) {
	return r.find(func(i *domain.Identity) bool { return i.Provider == provider && i.ProviderID == providerID })
}

func (r *MemoryRepository) Create(ctx context.Context, i *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.m {
		if existing.Provider == i.Provider && existing.ProviderID == i.ProviderID {
			return errors.New("identity already linked")
		}
	}
	cp := *i
	r.m[i.ID] = &cp
	return nil
}

func (r *MemoryRepository) UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.m[id]; ok {
		i.PasswordHash = passwordHash
	}
	return nil
}

func (r *MemoryRepository) find(match func(*domain.Identity) bool) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, i := range r.m {
		if match(i) {
			cp := *i
			return &cp, nil
		}
	}
	return nil, nil
}

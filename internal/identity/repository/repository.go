package repository

import (
	"context"

	"github.com/dsqrwym/Maian-sub000/internal/identity/domain"
)

// Repository defines persistence for identities. Lookups return (nil, nil) when no row matches.
type Repository interface {
	GetByUserAndProvider(ctx context.Context, userID string, provider domain.IdentityProvider) (*domain.Identity, error)
	// GetByProvider resolves an external subject to its identity; used by social sign-in.
	GetByProvider(ctx context.Context, provider domain.IdentityProvider, providerID string) (*domain.Identity, error)
	Create(ctx context.Context, i *domain.Identity) error
	UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error
}

package repository

import (
	"context"
	"errors"

	"github.com/dsqrwym/Maian-sub000/internal/user/domain"
)

// ErrDuplicate is returned by Create when the email or username is taken.
var ErrDuplicate = errors.New("user already exists")

// Repository defines persistence for users. Lookups return (nil, nil) when no row matches.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}

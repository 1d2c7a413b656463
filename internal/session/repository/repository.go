package repository

import (
	"context"

	"github.com/dsqrwym/Maian-sub000/internal/session/domain"
)

// Repository defines persistence for sessions. Every mutation is a single
// atomic statement; concurrent writers to one row are last-writer-wins.
type Repository interface {
	// Upsert inserts s, or on a (UserID, DeviceFingerprint) conflict overwrites
	// the existing row's id, tokens, device metadata and revoked flag. Returns the stored row.
	Upsert(ctx context.Context, s *domain.Session) (*domain.Session, error)
	// GetByID returns the session or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	// Revoke marks the session revoked. Reports false when it was absent or already revoked.
	Revoke(ctx context.Context, id string) (bool, error)
	// RevokeByDevice revokes the live session of one device. Reports false when none matched.
	RevokeByDevice(ctx context.Context, userID, fingerprint string) (bool, error)
	DeleteByDevice(ctx context.Context, userID, fingerprint string) (int64, error)
	// UpdateTokens rotates the stored token hashes of a non-revoked session and
	// bumps LastActive. An empty hashedRefresh keeps the stored one.
	UpdateTokens(ctx context.Context, id, hashedAccess, hashedRefresh string) (bool, error)
}

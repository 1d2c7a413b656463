package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dsqrwym/Maian-sub000/internal/db"
	"github.com/dsqrwym/Maian-sub000/internal/identity/domain"
)

const identityColumns = `id, user_id, provider, provider_id, password_hash, created_at`

// SQLRepository stores identities in Postgres or SQLite.
type SQLRepository struct {
	conn    *sql.DB
	dialect db.Dialect
}

// NewPostgresRepository returns an identity repository that uses the given Postgres db.
func NewPostgresRepository(conn *sql.DB) *SQLRepository {
	return &SQLRepository{conn: conn, dialect: db.Postgres}
}

// NewSQLiteRepository returns an identity repository that uses the given SQLite db.
func NewSQLiteRepository(conn *sql.DB) *SQLRepository {
	return &SQLRepository{conn: conn, dialect: db.SQLite}
}

// GetByUserAndProvider returns the identity for the given user and provider, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *SQLRepository) GetByUserAndProvider(ctx context.Context, userID string, provider domain.IdentityProvider) (*domain.Identity, error) {
	return r.getOne(ctx, `SELECT `+identityColumns+` FROM identities WHERE user_id = $1 AND provider = $2`, userID, string(provider))
}

// GetByProvider returns the identity for the provider subject, or nil if not found.
func (r *SQLRepository) GetByProvider(ctx context.Context, provider domain.IdentityProvider, providerID string) (*domain.Identity, error) {
	return r.getOne(ctx, `SELECT `+identityColumns+` FROM identities WHERE provider = $1 AND provider_id = $2`, string(provider), providerID)
}

// Create persists the identity. The identity must have ID set.
func (r *SQLRepository) Create(ctx context.Context, i *domain.Identity) error {
	ph := sql.NullString{String: i.PasswordHash, Valid: i.PasswordHash != ""}
	_, err := r.conn.ExecContext(ctx, r.dialect.Rebind(
		`INSERT INTO identities (`+identityColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`),
		i.ID, i.UserID, string(i.Provider), i.ProviderID, ph, db.ToMillis(i.CreatedAt))
	return err
}

// UpdatePasswordHash replaces the password digest of identity id.
func (r *SQLRepository) UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error {
	ph := sql.NullString{String: passwordHash, Valid: passwordHash != ""}
	_, err := r.conn.ExecContext(ctx, r.dialect.Rebind(`UPDATE identities SET password_hash = $2 WHERE id = $1`), id, ph)
	return err
}

func (r *SQLRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Identity, error) {
	var (
		i        domain.Identity
		provider string
		ph       sql.NullString
		created  int64
	)
	err := r.conn.QueryRowContext(ctx, r.dialect.Rebind(query), args...).Scan(
		&i.ID, &i.UserID, &provider, &i.ProviderID, &ph, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	i.Provider = domain.IdentityProvider(provider)
	i.PasswordHash = ph.String
	i.CreatedAt = db.FromMillis(created)
	return &i, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dsqrwym/Maian-sub000/internal/db"
	"github.com/dsqrwym/Maian-sub000/internal/user/domain"
)

const userColumns = `id, email, username, name, role, status, created_at, updated_at`

// SQLRepository stores users in Postgres or SQLite.
type SQLRepository struct {
	conn    *sql.DB
	dialect db.Dialect
}

// NewPostgresRepository returns a user repository that uses the given Postgres db.
func NewPostgresRepository(conn *sql.DB) *SQLRepository {
	return &SQLRepository{conn: conn, dialect: db.Postgres}
}

// NewSQLiteRepository returns a user repository that uses the given SQLite db.
func NewSQLiteRepository(conn *sql.DB) *SQLRepository {
	return &SQLRepository{conn: conn, dialect: db.SQLite}
}

// GetByID returns the user for id, or nil if not found.
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail returns the user with the canonical email, or nil if not found.
func (r *SQLRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// GetByUsername returns the user with the canonical username, or nil if not found.
func (r *SQLRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// Create inserts u. Returns ErrDuplicate when the email or username is taken.
func (r *SQLRepository) Create(ctx context.Context, u *domain.User) error {
	var username sql.NullString
	if u.Username != "" {
		username = sql.NullString{String: u.Username, Valid: true}
	}
	_, err := r.conn.ExecContext(ctx, r.dialect.Rebind(
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`),
		u.ID, u.Email, username, u.Name, string(u.Role), string(u.Status),
		db.ToMillis(u.CreatedAt), db.ToMillis(u.UpdatedAt))
	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *SQLRepository) getOne(ctx context.Context, query string, arg string) (*domain.User, error) {
	var (
		u                domain.User
		username         sql.NullString
		role, status     string
		created, updated int64
	)
	err := r.conn.QueryRowContext(ctx, r.dialect.Rebind(query), arg).Scan(
		&u.ID, &u.Email, &username, &u.Name, &role, &status, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Username = username.String
	u.Role = domain.Role(role)
	u.Status = domain.UserStatus(status)
	u.CreatedAt = db.FromMillis(created)
	u.UpdatedAt = db.FromMillis(updated)
	return &u, nil
}

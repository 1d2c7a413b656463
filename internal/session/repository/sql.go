package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dsqrwym/Maian-sub000/internal/db"
	"github.com/dsqrwym/Maian-sub000/internal/session/domain"
)

const sessionColumns = `id, user_id, device_fingerprint, device_name, user_agent, last_ip,
	hashed_access_token, hashed_refresh_token, revoked, last_active, created_at`

const upsertSessionSQL = `
INSERT INTO sessions (` + sessionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9, $9)
ON CONFLICT (user_id, device_fingerprint) DO UPDATE SET
	id = excluded.id,
	device_name = excluded.device_name,
	user_agent = excluded.user_agent,
	last_ip = excluded.last_ip,
	hashed_access_token = excluded.hashed_access_token,
	hashed_refresh_token = excluded.hashed_refresh_token,
	revoked = FALSE,
	last_active = excluded.last_active
RETURNING ` + sessionColumns

// SQLRepository stores sessions in Postgres or SQLite.
type SQLRepository struct {
	conn    *sql.DB
	dialect db.Dialect
	now     func() time.Time
}

// NewPostgresRepository returns a session repository that uses the given Postgres db.
func NewPostgresRepository(conn *sql.DB) *SQLRepository {
	return &SQLRepository{conn: conn, dialect: db.Postgres, now: time.Now}
}

// NewSQLiteRepository returns a session repository that uses the given SQLite db.
func NewSQLiteRepository(conn *sql.DB) *SQLRepository {
	return &SQLRepository{conn: conn, dialect: db.SQLite, now: time.Now}
}

// Upsert is one INSERT ... ON CONFLICT statement, so two logins racing on the
// same device never leave a row mixing fields from both.
func (r *SQLRepository) Upsert(ctx context.Context, s *domain.Session) (*domain.Session, error) {
	now := r.now()
	row := r.conn.QueryRowContext(ctx, r.dialect.Rebind(upsertSessionSQL),
		s.ID, s.UserID, s.DeviceFingerprint, s.DeviceName, s.UserAgent, s.LastIP,
		s.HashedAccessToken, s.HashedRefreshToken, db.ToMillis(now))
	return scanSession(row)
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.conn.QueryRowContext(ctx, r.dialect.Rebind(`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`), id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// ListByUser returns every session of the user, most recently active first.
func (r *SQLRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.conn.QueryContext(ctx, r.dialect.Rebind(
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 ORDER BY last_active DESC`), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLRepository) Revoke(ctx context.Context, id string) (bool, error) {
	return r.execAffected(ctx,
		`UPDATE sessions SET revoked = TRUE, last_active = $2 WHERE id = $1 AND revoked = FALSE`,
		id, db.ToMillis(r.now()))
}

func (r *SQLRepository) RevokeByDevice(ctx context.Context, userID, fingerprint string) (bool, error) {
	return r.execAffected(ctx,
		`UPDATE sessions SET revoked = TRUE, last_active = $3
		 WHERE user_id = $1 AND device_fingerprint = $2 AND revoked = FALSE`,
		userID, fingerprint, db.ToMillis(r.now()))
}

func (r *SQLRepository) DeleteByDevice(ctx context.Context, userID, fingerprint string) (int64, error) {
	res, err := r.conn.ExecContext(ctx, r.dialect.Rebind(
		`DELETE FROM sessions WHERE user_id = $1 AND device_fingerprint = $2`), userID, fingerprint)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLRepository) UpdateTokens(ctx context.Context, id, hashedAccess, hashedRefresh string) (bool, error) {
	return r.execAffected(ctx,
		`UPDATE sessions SET
			hashed_access_token = $2,
			hashed_refresh_token = COALESCE(NULLIF(CAST($3 AS TEXT), ''), hashed_refresh_token),
			last_active = $4
		 WHERE id = $1 AND revoked = FALSE`,
		id, hashedAccess, hashedRefresh, db.ToMillis(r.now()))
}

func (r *SQLRepository) execAffected(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.conn.ExecContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		s                   domain.Session
		lastActive, created int64
	)
	err := row.Scan(&s.ID, &s.UserID, &s.DeviceFingerprint, &s.DeviceName, &s.UserAgent, &s.LastIP,
		&s.HashedAccessToken, &s.HashedRefreshToken, &s.Revoked, &lastActive, &created)
	if err != nil {
		return nil, err
	}
	s.LastActive = db.FromMillis(lastActive)
	s.CreatedAt = db.FromMillis(created)
	return &s, nil
}

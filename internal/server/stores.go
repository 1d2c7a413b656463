package server

import (
	"database/sql"
	"log"

	"github.com/dsqrwym/Maian-sub000/internal/config"
	"github.com/dsqrwym/Maian-sub000/internal/db"
	"github.com/dsqrwym/Maian-sub000/internal/db/migrate"
	identityrepo "github.com/dsqrwym/Maian-sub000/internal/identity/repository"
	identityservice "github.com/dsqrwym/Maian-sub000/internal/identity/service"
	sessionrepo "github.com/dsqrwym/Maian-sub000/internal/session/repository"
	userrepo "github.com/dsqrwym/Maian-sub000/internal/user/repository"
)

// Stores are the repositories selected by STORE_DRIVER. Conn is nil for the memory store.
type Stores struct {
	Conn     *sql.DB
	Users    identityservice.UserRepo
	Identity identityservice.IdentityRepo
	Sessions identityservice.SessionRepo
}

// Close closes the database connection, if any.
func (s *Stores) Close() error {
	if s.Conn == nil {
		return nil
	}
	return s.Conn.Close()
}

// OpenStores opens the configured backend, applying migrations first when
// MIGRATE_ON_START is set.
func OpenStores(cfg *config.Config) (*Stores, error) {
	switch cfg.StoreDriver {
	case "memory":
		log.Println("store: in-memory (data is lost on restart)")
		return &Stores{
			Users:    userrepo.NewMemoryRepository(),
			Identity: identityrepo.NewMemoryRepository(),
			Sessions: sessionrepo.NewMemoryRepository(),
		}, nil
	case db.DriverSQLite:
		if cfg.MigrateOnStart {
			if err := migrate.Run(db.DriverSQLite, cfg.SQLitePath, "up"); err != nil {
				return nil, err
			}
		}
		conn, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Conn:     conn,
			Users:    userrepo.NewSQLiteRepository(conn),
			Identity: identityrepo.NewSQLiteRepository(conn),
			Sessions: sessionrepo.NewSQLiteRepository(conn),
		}, nil
	default:
		if cfg.MigrateOnStart {
			if err := migrate.Run(db.DriverPostgres, cfg.DatabaseURL, "up"); err != nil {
				return nil, err
			}
		}
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Conn:     conn,
			Users:    userrepo.NewPostgresRepository(conn),
			Identity: identityrepo.NewPostgresRepository(conn),
			Sessions: sessionrepo.NewPostgresRepository(conn),
		}, nil
	}
}

// migrate runs DB migrations from embedded SQL; use with go run ./cmd/migrate.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/dsqrwym/Maian-sub000/internal/config"
	"github.com/dsqrwym/Maian-sub000/internal/db"
	"github.com/dsqrwym/Maian-sub000/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	var dsn string
	switch cfg.StoreDriver {
	case db.DriverPostgres:
		dsn = cfg.DatabaseURL
	case db.DriverSQLite:
		dsn = cfg.SQLitePath
	default:
		fmt.Fprintf(os.Stderr, "STORE_DRIVER=%s has no migrations\n", cfg.StoreDriver)
		os.Exit(1)
	}

	if err := migrate.Run(cfg.StoreDriver, dsn, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return
		}
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

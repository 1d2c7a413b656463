package migrate

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/dsqrwym/Maian-sub000/internal/db"
)

func TestRun_EmptyDSN(t *testing.T) {
	err := Run(db.DriverPostgres, "", "up")
	if err == nil {
		t.Fatal("Run with empty DSN should return error")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("error message = %q, should mention DATABASE_URL", err.Error())
	}
}

func TestRun_InvalidDirection(t *testing.T) {
	for _, direction := range []string{"", "invalid", "UP", "Up", "both"} {
		t.Run(direction, func(t *testing.T) {
			err := Run(db.DriverPostgres, "postgres://localhost/test", direction)
			if err == nil {
				t.Fatalf("Run with direction %q should return error", direction)
			}
			if !strings.Contains(err.Error(), "direction") {
				t.Errorf("error = %q, should mention direction", err.Error())
			}
		})
	}
}

func TestRun_UnsupportedDriver(t *testing.T) {
	if err := Run("mysql", "x", "up"); err == nil {
		t.Fatal("Run with unsupported driver should return error")
	}
}

func TestRun_SQLiteUpDown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.db")
	if err := Run(db.DriverSQLite, path, "up"); err != nil {
		t.Fatalf("Run up: %v", err)
	}
	if err := Run(db.DriverSQLite, path, "up"); err != nil {
		t.Fatalf("Run up twice should be a no-op: %v", err)
	}

	conn, err := db.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('users', 'identities', 'sessions')`).Scan(&n); err != nil {
		t.Fatalf("query tables: %v", err)
	}
	conn.Close()
	if n != 3 {
		t.Errorf("tables after up = %d, want 3", n)
	}

	if err := Run(db.DriverSQLite, path, "down"); err != nil {
		t.Fatalf("Run down: %v", err)
	}
}

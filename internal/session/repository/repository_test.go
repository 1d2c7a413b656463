package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dsqrwym/Maian-sub000/internal/db"
	"github.com/dsqrwym/Maian-sub000/internal/db/migrate"
	"github.com/dsqrwym/Maian-sub000/internal/session/domain"
)

func newSQLiteRepo(t *testing.T, users ...string) *SQLRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.db")
	if err := migrate.Run(db.DriverSQLite, path, "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	conn, err := db.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	for _, u := range users {
		if _, err := conn.Exec(`INSERT INTO users (id, email, created_at, updated_at) VALUES (?1, ?2, 0, 0)`, u, u+"@example.com"); err != nil {
			t.Fatalf("seed user %s: %v", u, err)
		}
	}
	return NewSQLiteRepository(conn)
}

// forEachRepo runs the same contract against every implementation.
func forEachRepo(t *testing.T, fn func(t *testing.T, r Repository)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryRepository()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLiteRepo(t, "u1", "u2")) })
}

func newSession(id, user, fp string) *domain.Session {
	return &domain.Session{
		ID:                 id,
		UserID:             user,
		DeviceFingerprint:  fp,
		DeviceName:         "Pixel",
		UserAgent:          "UA1",
		LastIP:             "10.0.0.1",
		HashedAccessToken:  "ha-" + id,
		HashedRefreshToken: "hr-" + id,
	}
}

func TestRepository_UpsertKeepsOneRowPerDevice(t *testing.T) {
	forEachRepo(t, func(t *testing.T, r Repository) {
		ctx := context.Background()
		first, err := r.Upsert(ctx, newSession("s1", "u1", "fp1"))
		if err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		if first.ID != "s1" || first.Revoked {
			t.Fatalf("first upsert = %+v", first)
		}
		if ok, _ := r.Revoke(ctx, "s1"); !ok {
			t.Fatal("Revoke s1: want true")
		}

		second, err := r.Upsert(ctx, newSession("s2", "u1", "fp1"))
		if err != nil {
			t.Fatalf("Upsert again: %v", err)
		}
		if second.ID != "s2" || second.Revoked || second.HashedAccessToken != "ha-s2" {
			t.Errorf("second upsert = %+v", second)
		}
		if !second.CreatedAt.Equal(first.CreatedAt) {
			t.Errorf("CreatedAt changed on conflict: %v -> %v", first.CreatedAt, second.CreatedAt)
		}
		if old, _ := r.GetByID(ctx, "s1"); old != nil {
			t.Errorf("old session id still present: %+v", old)
		}
		list, err := r.ListByUser(ctx, "u1")
		if err != nil {
			t.Fatalf("ListByUser: %v", err)
		}
		if len(list) != 1 {
			t.Errorf("sessions for (u1, fp1) = %d, want 1", len(list))
		}

		if _, err := r.Upsert(ctx, newSession("s3", "u1", "fp2")); err != nil {
			t.Fatalf("Upsert other device: %v", err)
		}
		if list, _ := r.ListByUser(ctx, "u1"); len(list) != 2 {
			t.Errorf("sessions for u1 = %d, want 2", len(list))
		}
	})
}

func TestRepository_ConcurrentUpsertSameDevice(t *testing.T) {
	forEachRepo(t, func(t *testing.T, r Repository) {
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, err := r.Upsert(ctx, newSession(fmt.Sprintf("c%d", i), "u1", "fp1")); err != nil {
					t.Errorf("Upsert %d: %v", i, err)
				}
			}(i)
		}
		wg.Wait()
		list, err := r.ListByUser(ctx, "u1")
		if err != nil {
			t.Fatalf("ListByUser: %v", err)
		}
		if len(list) != 1 {
			t.Fatalf("rows = %d, want 1", len(list))
		}
		s := list[0]
		// the winning row carries one writer's values throughout
		if s.HashedAccessToken != "ha-"+s.ID || s.HashedRefreshToken != "hr-"+s.ID {
			t.Errorf("mixed fields in winning row: %+v", s)
		}
	})
}

func TestRepository_GetByIDMissing(t *testing.T) {
	forEachRepo(t, func(t *testing.T, r Repository) {
		s, err := r.GetByID(context.Background(), "nope")
		if err != nil || s != nil {
			t.Errorf("GetByID missing = %v, %v; want nil, nil", s, err)
		}
	})
}

func TestRepository_Revoke(t *testing.T) {
	forEachRepo(t, func(t *testing.T, r Repository) {
		ctx := context.Background()
		_, _ = r.Upsert(ctx, newSession("s1", "u1", "fp1"))
		if ok, err := r.Revoke(ctx, "s1"); err != nil || !ok {
			t.Fatalf("Revoke = %v, %v", ok, err)
		}
		if ok, _ := r.Revoke(ctx, "s1"); ok {
			t.Error("second Revoke should report false")
		}
		if ok, _ := r.Revoke(ctx, "missing"); ok {
			t.Error("Revoke of missing session should report false")
		}
		s, _ := r.GetByID(ctx, "s1")
		if s == nil || !s.Revoked {
			t.Errorf("session after revoke = %+v", s)
		}
	})
}

func TestRepository_RevokeByDevice(t *testing.T) {
	forEachRepo(t, func(t *testing.T, r Repository) {
		ctx := context.Background()
		_, _ = r.Upsert(ctx, newSession("s1", "u1", "fp1"))
		_, _ = r.Upsert(ctx, newSession("s2", "u2", "fp1"))
		if ok, _ := r.RevokeByDevice(ctx, "u1", "fp-other"); ok {
			t.Error("RevokeByDevice with wrong fingerprint should report false")
		}
		if ok, err := r.RevokeByDevice(ctx, "u1", "fp1"); err != nil || !ok {
			t.Fatalf("RevokeByDevice = %v, %v", ok, err)
		}
		if ok, _ := r.RevokeByDevice(ctx, "u1", "fp1"); ok {
			t.Error("second RevokeByDevice should report false")
		}
		if s, _ := r.GetByID(ctx, "s2"); s == nil || s.Revoked {
			t.Errorf("other user's session affected: %+v", s)
		}
	})
}

func TestRepository_DeleteByDevice(t *testing.T) {
	forEachRepo(t, func(t *testing.T, r Repository) {
		ctx := context.Background()
		_, _ = r.Upsert(ctx, newSession("s1", "u1", "fp1"))
		n, err := r.DeleteByDevice(ctx, "u1", "fp1")
		if err != nil || n != 1 {
			t.Fatalf("DeleteByDevice = %d, %v; want 1", n, err)
		}
		if n, _ := r.DeleteByDevice(ctx, "u1", "fp1"); n != 0 {
			t.Errorf("second DeleteByDevice = %d, want 0", n)
		}
	})
}

func TestRepository_UpdateTokens(t *testing.T) {
	forEachRepo(t, func(t *testing.T, r Repository) {
		ctx := context.Background()
		_, _ = r.Upsert(ctx, newSession("s1", "u1", "fp1"))

		if ok, err := r.UpdateTokens(ctx, "s1", "ha-new", ""); err != nil || !ok {
			t.Fatalf("UpdateTokens access only = %v, %v", ok, err)
		}
		s, _ := r.GetByID(ctx, "s1")
		if s.HashedAccessToken != "ha-new" || s.HashedRefreshToken != "hr-s1" {
			t.Errorf("after access-only rotation: %+v", s)
		}

		if ok, _ := r.UpdateTokens(ctx, "s1", "ha-2", "hr-2"); !ok {
			t.Fatal("UpdateTokens both: want true")
		}
		s, _ = r.GetByID(ctx, "s1")
		if s.HashedAccessToken != "ha-2" || s.HashedRefreshToken != "hr-2" {
			t.Errorf("after full rotation: %+v", s)
		}

		_, _ = r.Revoke(ctx, "s1")
		if ok, _ := r.UpdateTokens(ctx, "s1", "ha-3", "hr-3"); ok {
			t.Error("UpdateTokens on revoked session should report false")
		}
		if ok, _ := r.UpdateTokens(ctx, "missing", "a", "b"); ok {
			t.Error("UpdateTokens on missing session should report false")
		}
	})
}

package tokenstore

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestMain(m *testing.M) {
	kdfMemory = 8 * 1024
	kdfThreads = 1
	os.Exit(m.Run())
}

func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()
	if got, err := s.GetAccess(); err != nil || got != "" {
		t.Fatalf("GetAccess on empty store = %q, %v", got, err)
	}
	if err := s.Save("a1", "r1"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.SaveCsrf("c1"); err != nil {
		t.Fatalf("SaveCsrf: %v", err)
	}
	if a, _ := s.GetAccess(); a != "a1" {
		t.Errorf("access = %q", a)
	}
	if r, _ := s.GetRefresh(); r != "r1" {
		t.Errorf("refresh = %q", r)
	}
	if c, _ := s.GetCsrf(); c != "c1" {
		t.Errorf("csrf = %q", c)
	}
	if err := s.ClearAccess(); err != nil {
		t.Fatalf("ClearAccess: %v", err)
	}
	if a, _ := s.GetAccess(); a != "" {
		t.Errorf("access after ClearAccess = %q", a)
	}
	if r, _ := s.GetRefresh(); r != "r1" {
		t.Errorf("ClearAccess touched refresh: %q", r)
	}
	if err := s.SaveAccess("a2"); err != nil {
		t.Fatalf("SaveAccess: %v", err)
	}
	if err := s.ClearRefresh(); err != nil {
		t.Fatalf("ClearRefresh: %v", err)
	}
	if err := s.ClearCsrf(); err != nil {
		t.Fatalf("ClearCsrf: %v", err)
	}
	if r, _ := s.GetRefresh(); r != "" {
		t.Errorf("refresh after clear = %q", r)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if a, _ := s.GetAccess(); a != "" {
		t.Errorf("access after Clear = %q", a)
	}
}

func TestMemoryStorage(t *testing.T) {
	exerciseStorage(t, NewMemoryStorage())
}

func TestMemoryStorage_Concurrent(t *testing.T) {
	s := NewMemoryStorage()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Save("a", "r")
			_, _ = s.GetAccess()
			_ = s.Clear()
		}()
	}
	wg.Wait()
}

func TestFileStorage(t *testing.T) {
	s, err := OpenFile(filepath.Join(t.TempDir(), "tokens"), "hunter2")
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	exerciseStorage(t, s)
}

func TestFileStorage_ReopenAndEncryption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tokens")
	s, err := OpenFile(path, "hunter2")
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := s.Save("access-token-value", "refresh-token-value"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if bytes.Contains(raw, []byte("refresh-token-value")) {
		t.Error("token stored in plaintext")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		t.Errorf("file mode = %v, want owner-only", perm)
	}

	again, err := OpenFile(path, "hunter2")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if r, _ := again.GetRefresh(); r != "refresh-token-value" {
		t.Errorf("refresh after reopen = %q", r)
	}

	if _, err := OpenFile(path, "wrong"); !errors.Is(err, ErrWrongPassphrase) {
		t.Errorf("wrong passphrase: got %v", err)
	}
}

func TestFileStorage_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens")
	if err := os.WriteFile(path, []byte("not a token file"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFile(path, "x"); !errors.Is(err, ErrCorrupt) {
		t.Errorf("got %v, want ErrCorrupt", err)
	}
	if _, err := OpenFile(path, ""); err == nil {
		t.Error("empty passphrase accepted")
	}
}

func TestFileStorage_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenFile(filepath.Join(dir, "tokens"), "pw")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := s.SaveAccess("a"); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want 1", len(entries))
	}
}

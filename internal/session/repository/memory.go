package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dsqrwym/Maian-sub000/internal/session/domain"
)

// MemoryRepository keeps sessions in process memory. A single mutex makes
// each method atomic, matching the single-statement SQL implementation.
type MemoryRepository struct {
	mu  sync.Mutex
	m   map[string]*domain.Session
	now func() time.Time
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{m: make(map[string]*domain.Session), now: time.Now}
}

func (r *MemoryRepository) Upsert(ctx context.Context, s *domain.Session) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now().UTC()
	created := now
	for id, existing := range r.m {
		if existing.UserID == s.UserID && existing.DeviceFingerprint == s.DeviceFingerprint {
			created = existing.CreatedAt
			delete(r.m, id)
			break
		}
	}
	stored := *s
	stored.Revoked = false
	stored.LastActive = now
	stored.CreatedAt = created
	r.m[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *MemoryRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Session
	for _, s := range r.m {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActive.After(out[j].LastActive) })
	return out, nil
}

func (r *MemoryRepository) Revoke(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[id]
	if !ok || s.Revoked {
		return false, nil
	}
	s.Revoked = true
	s.LastActive = r.now().UTC()
	return true, nil
}

func (r *MemoryRepository) RevokeByDevice(ctx context.Context, userID, fingerprint string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.m {
		if s.UserID == userID && s.DeviceFingerprint == fingerprint && !s.Revoked {
			s.Revoked = true
			s.LastActive = r.now().UTC()
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) DeleteByDevice(ctx context.Context, userID, fingerprint string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.m {
		if s.UserID == userID && s.DeviceFingerprint == fingerprint {
			delete(r.m, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) UpdateTokens(ctx context.Context, id, hashedAccess, hashedRefresh string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[id]
	if !ok || s.Revoked {
		return false, nil
	}
	s.HashedAccessToken = hashedAccess
	if hashedRefresh != "" {
		s.HashedRefreshToken = hashedRefresh
	}
	s.LastActive = r.now().UTC()
	return true, nil
}

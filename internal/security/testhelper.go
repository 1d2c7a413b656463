package security

import "time"

// Test secrets for unit tests only. Do not use in production.
const (
	testAccessSecret  = "test-access-secret-0123456789abcdef"
	testRefreshSecret = "test-refresh-secret-fedcba9876543210"
)

// NewTestTokenProvider returns a TokenProvider using fixed test secrets with a
// 1h access and 7d refresh lifetime. For unit tests only.
func NewTestTokenProvider() *TokenProvider {
	return NewTokenProvider(NewTokenCodec(0), []byte(testAccessSecret), []byte(testRefreshSecret), time.Hour, 7*24*time.Hour)
}

// NewTestHasher returns a SyncHasher using the minimum bcrypt cost so tests stay fast.
func NewTestHasher() *SyncHasher {
	return NewSyncHasher(NewHasher(4))
}

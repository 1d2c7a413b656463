package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashToken returns the hex-encoded SHA-256 of a high-entropy secret (tokens,
// CSRF values). Used for storing and comparing tokens without storing the raw value.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// TokenHashEqual performs constant-time comparison of the provided token's hash
// with the stored hash. Returns true only if they match.
func TokenHashEqual(providedToken, storedHash string) bool {
	if storedHash == "" {
		return false
	}
	providedHash := HashToken(providedToken)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}

// FingerprintInput is the secret a device fingerprint is hashed from with
// AlgorithmFast: the client's self-reported name followed by its user agent.
func FingerprintInput(deviceName, userAgent string) string {
	return deviceName + userAgent
}

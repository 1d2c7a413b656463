package domain

import "time"

// Identity is a credential linked to a user. Local identities carry a password
// digest; external providers carry only the provider's subject id.
type Identity struct {
	ID           string
	UserID       string
	Provider     IdentityProvider
	ProviderID   string
	PasswordHash string // empty if not local
	CreatedAt    time.Time
}

type IdentityProvider string

const (
	IdentityProviderLocal  IdentityProvider = "local"
	IdentityProviderGoogle IdentityProvider = "google"
	IdentityProviderApple  IdentityProvider = "apple"
)

// Valid reports whether p is a known provider.
func (p IdentityProvider) Valid() bool {
	switch p {
	case IdentityProviderLocal, IdentityProviderGoogle, IdentityProviderApple:
		return true
	}
	return false
}

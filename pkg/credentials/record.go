package credentials

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Record pairs a tenant name with its secret. The secret is either a bcrypt
// hash or, for stores migrated as-is, the plaintext password.
type Record struct {
	Tenant string
	Secret string
}

// Hashed reports whether the stored secret is a bcrypt hash.
func (r Record) Hashed() bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(r.Secret, prefix) {
			return true
		}
	}
	return false
}

// Match reports whether secret matches the stored one. Empty secrets never
// match, even a record stored without one.
func (r Record) Match(secret string) bool {
	if secret == "" || r.Secret == "" {
		return false
	}
	if r.Hashed() {
		return bcrypt.CompareHashAndPassword([]byte(r.Secret), []byte(secret)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(r.Secret), []byte(secret)) == 1
}

// HashSecret returns a bcrypt hash of secret suitable for a credential store.
func HashSecret(secret string, cost int) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

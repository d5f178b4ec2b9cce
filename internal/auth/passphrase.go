package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Passphrase holds the bcrypt hash of the shared admin passphrase. The
// plaintext is hashed once at startup and never kept.
type Passphrase struct {
	hash []byte
}

func NewPassphrase(plain string, cost int) (*Passphrase, error) {
	if plain == "" {
		return nil, fmt.Errorf("admin passphrase is empty")
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash passphrase: %v", err)
	}
	return &Passphrase{hash: hash}, nil
}

func (p *Passphrase) Matches(candidate string) bool {
	return bcrypt.CompareHashAndPassword(p.hash, []byte(candidate)) == nil
}

package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher is the adaptive one-way hashing contract. Hashing is
// CPU-intensive on purpose; callers must treat both methods as blocking.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

var _ PasswordHasher = (*BcryptHasher)(nil)

// BcryptHasher hashes with bcrypt at a configured cost factor.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher clamps the cost to at least bcrypt.DefaultCost so a
// misconfigured low cost cannot weaken stored hashes.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.DefaultCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns the bcrypt hash of plaintext. The output string encodes
// algorithm, cost and salt.
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}

// Verify reports whether plaintext matches hash. Malformed hashes and
// mismatches both return false; bcrypt's comparison is constant-time.
func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

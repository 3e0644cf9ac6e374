package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/sirpyerre/account-api/internal/core/domain"
)

// BcryptHasher hashes passwords with bcrypt. Every digest embeds its own
// random salt and cost, so hashing the same password twice yields different
// digests.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher using cost, or bcrypt.DefaultCost when cost
// is outside the range bcrypt accepts.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password longer than 72 bytes", domain.ErrInvalidInput)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// Compare checks password against digest in constant time.
func (h *BcryptHasher) Compare(password, digest string) error {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return domain.ErrInvalidCredentials
	default:
		return fmt.Errorf("%w: %v", domain.ErrInvalidDigest, err)
	}
}

// Verify reports whether password matches digest. A malformed digest counts
// as a mismatch.
func (h *BcryptHasher) Verify(password, digest string) bool {
	return h.Compare(password, digest) == nil
}

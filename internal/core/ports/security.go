package ports

import (
	"context"

	"github.com/sirpyerre/account-api/internal/core/domain"
)

// PasswordHasher hashes credentials at rest.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare returns nil on a match, domain.ErrInvalidCredentials on a
	// mismatch and domain.ErrInvalidDigest when digest is malformed.
	Compare(password, digest string) error
}

// TokenIssuer mints and checks signed access tokens.
type TokenIssuer interface {
	Issue(subject string) (string, domain.TokenClaims, error)
	Verify(token string) (domain.TokenClaims, error)
}

// LoginThrottle limits repeated failed logins per username.
type LoginThrottle interface {
	Allowed(ctx context.Context, username string) (bool, error)
	RecordFailure(ctx context.Context, username string) error
	Reset(ctx context.Context, username string) error
}

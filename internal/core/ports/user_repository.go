package ports

import (
	"context"

	"github.com/sirpyerre/account-api/internal/core/domain"
)

// UserRepository is the credential store. Create must fail with
// domain.ErrUserExists when the username is taken, atomically with the insert.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
}

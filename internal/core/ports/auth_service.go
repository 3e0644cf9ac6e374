package ports

import (
	"context"
	"time"

	"github.com/sirpyerre/account-api/internal/core/domain"
)

// LoginResult is returned by a successful login.
type LoginResult struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
	User        *domain.User
}

type AuthService interface {
	Register(ctx context.Context, username, password string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Authenticate(ctx context.Context, token string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
}

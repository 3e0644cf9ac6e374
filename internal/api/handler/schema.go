package handler

import (
	"time"

	"github.com/sirpyerre/account-api/internal/core/domain"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

type credentialsRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64,excludesall= \t\n"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// userResponse is the public view of an account; it never carries the hash.
type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type auditEventResponse struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

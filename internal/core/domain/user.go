package domain

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is a registered account. PasswordHash never leaves the process.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// TokenClaims is what a signed access token asserts.
type TokenClaims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

package domain

// Guard decides whether an authenticated user may proceed.
type Guard func(u *User) error

// RequireRole returns a Guard that only admits users holding exactly role.
func RequireRole(role string) Guard {
	return func(u *User) error {
		if u == nil {
			return ErrUnauthenticated
		}
		if u.Role != role {
			return ErrForbidden
		}
		return nil
	}
}

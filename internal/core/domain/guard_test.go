package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequireRole(t *testing.T) {
	adminOnly := RequireRole(RoleAdmin)

	require.NoError(t, adminOnly(&User{Username: "root", Role: RoleAdmin}))
	require.ErrorIs(t, adminOnly(&User{Username: "bob", Role: RoleUser}), ErrForbidden)
	require.ErrorIs(t, adminOnly(nil), ErrUnauthenticated)
}

func TestRequireRole_ExactMatch(t *testing.T) {
	userOnly := RequireRole(RoleUser)
	require.ErrorIs(t, userOnly(&User{Role: RoleAdmin}), ErrForbidden, "roles are not hierarchical")
}

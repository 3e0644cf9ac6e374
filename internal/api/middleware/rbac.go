package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sirpyerre/account-api/internal/core/domain"
)

// DenyHook is told about every request Authorize refuses.
type DenyHook func(c echo.Context, user *domain.User)

// Authorize admits only authenticated users holding role. It must run after
// Authenticate.
func Authorize(role string, hooks ...DenyHook) echo.MiddlewareFunc {
	return Guard(domain.RequireRole(role), hooks...)
}

// Guard runs an arbitrary domain guard against the authenticated user.
func Guard(guard domain.Guard, hooks ...DenyHook) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := CurrentUser(c)
			if err := guard(user); err != nil {
				if errors.Is(err, domain.ErrUnauthenticated) {
					return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
				}
				for _, h := range hooks {
					h(c, user)
				}
				return echo.NewHTTPError(http.StatusForbidden, "forbidden")
			}
			return next(c)
		}
	}
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sirpyerre/account-api/internal/core/domain"
)

// UserContextKey is where Authenticate stores the resolved *domain.User.
const UserContextKey = "user"

// Authenticator resolves the account behind a bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// Authenticate validates the bearer token, loads the account it names and
// injects it into the context. Every token failure is reported as the same
// 401 so clients cannot tell expired from forged tokens.
func Authenticate(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return unauthorized(c, err.Error())
			}

			user, err := auth.Authenticate(c.Request().Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, domain.ErrTokenExpired),
					errors.Is(err, domain.ErrTokenInvalid),
					errors.Is(err, domain.ErrUnauthenticated):
					return unauthorized(c, "invalid token")
				}
				return err
			}

			c.Set(UserContextKey, user)
			return next(c)
		}
	}
}

// CurrentUser returns the account injected by Authenticate, or nil.
func CurrentUser(c echo.Context) *domain.User {
	u, _ := c.Get(UserContextKey).(*domain.User)
	return u
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errors.New("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

func unauthorized(c echo.Context, msg string) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer realm="account-api"`)
	return echo.NewHTTPError(http.StatusUnauthorized, msg)
}

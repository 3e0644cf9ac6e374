package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/sirpyerre/account-api/internal/core/domain"
)

type stubAuthenticator struct {
	fn func(ctx context.Context, token string) (*domain.User, error)
}

func (s stubAuthenticator) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	return s.fn(ctx, token)
}

func acceptToken(valid string, user *domain.User) stubAuthenticator {
	return stubAuthenticator{fn: func(_ context.Context, token string) (*domain.User, error) {
		if token != valid {
			return nil, domain.ErrTokenInvalid
		}
		return user, nil
	}}
}

func runAuth(t *testing.T, auth Authenticator, header string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	handler := Authenticate(auth)(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, called
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	e := echo.New()
	alice := &domain.User{ID: "1", Username: "alice", Role: domain.RoleAdmin}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen *domain.User
	handler := Authenticate(acceptToken("good-token", alice))(func(c echo.Context) error {
		seen = CurrentUser(c)
		return c.NoContent(http.StatusOK)
	})

	require.NoError(t, handler(c))
	require.NotNil(t, seen, "next not called or user not set")
	require.Equal(t, "alice", seen.Username)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware_SchemeIsCaseInsensitive(t *testing.T) {
	rec, called := runAuth(t, acceptToken("tok", &domain.User{Username: "bob"}), "bearer tok")
	require.True(t, called)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	rec, called := runAuth(t, acceptToken("tok", nil), "")
	require.False(t, called)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotEmpty(t, rec.Header().Get(echo.HeaderWWWAuthenticate))
}

func TestAuthMiddleware_InvalidHeaderFormat(t *testing.T) {
	for _, header := range []string{"Token abc", "Bearer", "Bearer   ", "Basic dXNlcjpwYXNz"} {
		rec, called := runAuth(t, acceptToken("abc", nil), header)
		require.False(t, called, "%q: should not reach next", header)
		require.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
}

func TestAuthMiddleware_TokenErrorsCollapseTo401(t *testing.T) {
	for _, tokenErr := range []error{domain.ErrTokenExpired, domain.ErrTokenInvalid, domain.ErrUnauthenticated} {
		auth := stubAuthenticator{fn: func(context.Context, string) (*domain.User, error) { return nil, tokenErr }}
		rec, called := runAuth(t, auth, "Bearer whatever")
		require.False(t, called, "%v: should not reach next", tokenErr)
		require.Equal(t, http.StatusUnauthorized, rec.Code, tokenErr.Error())
		require.Contains(t, rec.Body.String(), "invalid token")
	}
}

func TestAuthMiddleware_StoreErrorPropagates(t *testing.T) {
	boom := errors.New("mongo unavailable")
	auth := stubAuthenticator{fn: func(context.Context, string) (*domain.User, error) { return nil, boom }}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer x")
	c := e.NewContext(req, httptest.NewRecorder())

	err := Authenticate(auth)(func(echo.Context) error { return nil })(c)
	require.ErrorIs(t, err, boom)
}

package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sirpyerre/account-api/internal/api/middleware"
	"github.com/sirpyerre/account-api/internal/core/domain"
)

// currentUser returns the account injected by the Authenticate middleware.
// A missing account means the route was registered without the middleware;
// it is reported as 401 rather than trusted.
func currentUser(c echo.Context) (*domain.User, error) {
	u := middleware.CurrentUser(c)
	if u == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication")
	}
	return u, nil
}

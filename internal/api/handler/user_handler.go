package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sirpyerre/account-api/internal/core/ports"
)

const (
	defaultEventsLimit = 50
	maxEventsLimit     = 500
)

// UserHandler serves the authenticated account views.
type UserHandler struct {
	authService ports.AuthService
	audit       ports.AuditReader
}

// NewUserHandler builds a UserHandler. audit may be nil, in which case
// Events responds 404.
func NewUserHandler(authService ports.AuthService, audit ports.AuditReader) *UserHandler {
	return &UserHandler{authService: authService, audit: audit}
}

// Me returns the caller's own account.
//
// @Summary      Current user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  userResponse
// @Failure      401  {object}  errorResponse
// @Router       /users/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// List returns every account. Admin only.
//
// @Summary      List all users
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   userResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /admin/users [get]
func (h *UserHandler) List(c echo.Context) error {
	users, err := h.authService.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return c.JSON(http.StatusOK, out)
}

// Events returns the most recent audit events for one account. Admin only.
//
// @Summary      Audit trail of a user
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        username  path      string  true   "Username"
// @Param        limit     query     int     false  "Max events (default 50, max 500)"
// @Success      200       {array}   auditEventResponse
// @Failure      401       {object}  errorResponse
// @Failure      403       {object}  errorResponse
// @Router       /admin/users/{username}/events [get]
func (h *UserHandler) Events(c echo.Context) error {
	if h.audit == nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "audit trail disabled"})
	}

	limit := int64(defaultEventsLimit)
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
		}
		limit = min(n, maxEventsLimit)
	}

	events, err := h.audit.ListByUsername(c.Request().Context(), c.Param("username"), limit)
	if err != nil {
		return err
	}

	out := make([]auditEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, auditEventResponse{
			ID:         e.ID,
			Type:       string(e.Type),
			Detail:     e.Detail,
			OccurredAt: e.OccurredAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}

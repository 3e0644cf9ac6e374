package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/sirpyerre/account-api/internal/api/middleware"
	"github.com/sirpyerre/account-api/internal/core/domain"
)

type stubAuditReader struct {
	gotUsername string
	gotLimit    int64
	events      []domain.AuditEvent
}

func (r *stubAuditReader) ListByUsername(_ context.Context, username string, limit int64) ([]domain.AuditEvent, error) {
	r.gotUsername = username
	r.gotLimit = limit
	return r.events, nil
}

func TestUserHandler_Me(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(middleware.UserContextKey, &domain.User{ID: "7", Username: "alice", PasswordHash: "secret-hash", Role: domain.RoleUser})

	h := NewUserHandler(&stubAuthService{}, nil)
	require.NoError(t, h.Me(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "secret-hash")

	var resp userResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, userResponse{ID: "7", Username: "alice", Role: domain.RoleUser}, resp)
}

func TestUserHandler_Me_WithoutMiddleware(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/users/me", nil), httptest.NewRecorder())

	h := NewUserHandler(&stubAuthService{}, nil)
	var he *echo.HTTPError
	require.ErrorAs(t, h.Me(c), &he)
	require.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestUserHandler_List(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/admin/users", nil), rec)

	stub := &stubAuthService{
		listFn: func(ctx context.Context) ([]*domain.User, error) {
			return []*domain.User{
				{ID: "1", Username: "root", Role: domain.RoleAdmin},
				{ID: "2", Username: "bob", Role: domain.RoleUser},
			}, nil
		},
	}
	h := NewUserHandler(stub, nil)
	require.NoError(t, h.List(c))

	var resp []userResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	require.Equal(t, "root", resp[0].Username)
	require.Equal(t, domain.RoleUser, resp[1].Role)
}

func TestUserHandler_Events(t *testing.T) {
	e := echo.New()
	reader := &stubAuditReader{events: []domain.AuditEvent{
		{ID: "01B", Type: domain.AuditLoginSucceeded, Username: "bob", OccurredAt: time.Now()},
		{ID: "01A", Type: domain.AuditUserRegistered, Username: "bob", OccurredAt: time.Now()},
	}}
	h := NewUserHandler(&stubAuthService{}, reader)

	req := httptest.NewRequest(http.MethodGet, "/admin/users/bob/events?limit=1000", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("username")
	c.SetParamValues("bob")

	require.NoError(t, h.Events(c))
	require.Equal(t, "bob", reader.gotUsername)
	require.EqualValues(t, maxEventsLimit, reader.gotLimit)

	var resp []auditEventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	require.Equal(t, string(domain.AuditLoginSucceeded), resp[0].Type)
}

func TestUserHandler_Events_BadLimitAndDisabled(t *testing.T) {
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/admin/users/bob/events?limit=-1", nil), rec)
	_ = NewUserHandler(&stubAuthService{}, &stubAuditReader{}).Events(c)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/admin/users/bob/events", nil), rec)
	_ = NewUserHandler(&stubAuthService{}, nil).Events(c)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler_Liveness(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

	require.NoError(t, NewHealthHandler().Liveness(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadinessHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	cases := []struct {
		name       string
		probes     map[string]Probe
		wantCode   int
		wantStatus string
		failing    string
	}{
		{"all healthy", map[string]Probe{"mongodb": ok, "redis": ok}, http.StatusOK, "ok", ""},
		{"redis down", map[string]Probe{"mongodb": ok, "redis": down}, http.StatusServiceUnavailable, "degraded", "redis"},
		{"no probes", nil, http.StatusOK, "ok", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health/ready", nil), rec)

			require.NoError(t, NewReadinessHandler(tc.probes).Readiness(c))
			require.Equal(t, tc.wantCode, rec.Code)

			var resp readinessResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Equal(t, tc.wantStatus, resp.Status)
			if tc.failing != "" {
				require.Equal(t, "unhealthy", resp.Dependencies[tc.failing].Status)
				require.NotEmpty(t, resp.Dependencies[tc.failing].Error)
			}
		})
	}
}

package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WorkniceHR/slack/pkg/health"
)

func get(t *testing.T, e *echo.Echo, path string) (int, health.Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var resp health.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestChecker(t *testing.T) {
	storeErr := errors.New("connection refused")
	var failing bool

	checker := health.NewChecker("test")
	checker.AddCheck("store", func(context.Context) error {
		if failing {
			return storeErr
		}
		return nil
	})
	e := echo.New()
	checker.RegisterRoutes(e)

	code, _ := get(t, e, "/api/v1/health/live")
	assert.Equal(t, http.StatusOK, code)

	code, resp := get(t, e, "/api/v1/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, health.StatusUnhealthy, resp.Checks["startup"].Status)

	checker.SetReady(true)
	code, resp = get(t, e, "/api/v1/health/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, health.StatusHealthy, resp.Checks["store"].Status)

	failing = true
	code, resp = get(t, e, "/api/v1/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, health.StatusUnhealthy, resp.Status)
	assert.Equal(t, "connection refused", resp.Checks["store"].Message)
}

package middleware_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/WorkniceHR/slack/pkg/errors"
	"github.com/WorkniceHR/slack/pkg/middleware"
	"github.com/WorkniceHR/slack/pkg/signature"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(testLogger())
	e.Use(middleware.Context())
	return e
}

func TestError_MapsKinds(t *testing.T) {
	tests := []struct {
		err     error
		code    int
		message string
	}{
		{apperrors.NewAuthenticationError("session expired"), http.StatusUnauthorized, "session expired"},
		{apperrors.NewNotFoundError("no integration"), http.StatusNotFound, "no integration"},
		{apperrors.NewArchivedIntegrationError("int_2"), http.StatusGone, "integration int_2 is archived"},
		{apperrors.NewUpstreamError("slack down", errors.New("dial tcp")), http.StatusBadGateway, "slack down"},
		{apperrors.NewValidationError("bad payload", nil), http.StatusBadRequest, "bad payload"},
		{apperrors.NewStoreUnavailableError(errors.New("refused")), http.StatusServiceUnavailable, "credential store unavailable"},
		{httperror.NewHTTPError(http.StatusTeapot, "short and stout"), http.StatusTeapot, "short and stout"},
		{errors.New("secret internals"), http.StatusInternalServerError, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			e := newEcho()
			e.GET("/", func(echo.Context) error { return tt.err })

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.code, rec.Code)
			var resp middleware.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.message, resp.Message)
			assert.NotEmpty(t, resp.RequestID)
		})
	}
}

func TestError_PlainTextForBrowserRoutes(t *testing.T) {
	e := newEcho()
	e.GET("/auth-request", func(echo.Context) error {
		return apperrors.NewAuthenticationError("authorization request not found or expired")
	}, middleware.PlainTextErrors())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth-request?code=x", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMETextPlain))
	assert.Equal(t, "authorization request not found or expired", rec.Body.String())
}

func TestSlackSignature(t *testing.T) {
	secret := "signing-secret"
	now := time.Unix(1_700_000_000, 0)
	verifier := signature.NewVerifier(secret, signature.WithClock(func() time.Time { return now }))

	e := newEcho()
	e.POST("/slash-commands", func(c echo.Context) error {
		// the body must still be readable after verification
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, string(body))
	}, middleware.SlackSignature(verifier, testLogger()))

	body := "command=%2Fwhosaway&team_id=T1"
	ts := strconv.FormatInt(now.Unix(), 10)

	send := func(ts, sig, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/slash-commands", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
		if ts != "" {
			req.Header.Set(signature.HeaderTimestamp, ts)
		}
		if sig != "" {
			req.Header.Set(signature.HeaderSignature, sig)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := send(ts, signature.Sign([]byte(secret), ts, []byte(body)), body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, rec.Body.String())

	rec = send(ts, signature.Sign([]byte(secret), ts, []byte(body)), body+"x")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = send("", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	stale := strconv.FormatInt(now.Add(-10*time.Minute).Unix(), 10)
	rec = send(stale, signature.Sign([]byte(secret), stale, []byte(body)), body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

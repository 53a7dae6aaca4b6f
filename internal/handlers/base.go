package handlers

import (
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/WorkniceHR/slack/pkg/validation"
)

// BindRequest binds the request body into T and validates it.
func BindRequest[T any](c echo.Context) (T, error) {
	var req T
	if err := c.Bind(&req); err != nil {
		return req, BadRequest("invalid request body")
	}
	return validation.Validate(req)
}

// SuccessResponse returns a 200 OK with data
func SuccessResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, data)
}

// BadRequest returns a 400 Bad Request error
func BadRequest(message string) error {
	return httperror.NewHTTPError(http.StatusBadRequest, message)
}

// Unauthorized returns a 401 Unauthorized error
func Unauthorized(message string) error {
	return httperror.NewHTTPError(http.StatusUnauthorized, message)
}

// CookieJar adapts an echo request/response pair to session.CookieJar.
type CookieJar struct {
	c      echo.Context
	secure bool
}

// NewCookieJar creates a jar. secure should be true when the service is
// served over https.
func NewCookieJar(c echo.Context, secure bool) *CookieJar {
	return &CookieJar{c: c, secure: secure}
}

func (j *CookieJar) Get(name string) (string, bool) {
	cookie, err := j.c.Cookie(name)
	if err != nil {
		return "", false
	}
	return cookie.Value, true
}

func (j *CookieJar) Set(name, value string, maxAge time.Duration) {
	j.c.SetCookie(j.cookie(name, value, int(maxAge.Seconds())))
}

func (j *CookieJar) Clear(name string) {
	j.c.SetCookie(j.cookie(name, "", -1))
}

func (j *CookieJar) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

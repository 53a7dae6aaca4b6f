package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/WorkniceHR/slack/pkg/middleware"
	"github.com/WorkniceHR/slack/pkg/session"
)

// Handshake is the browser-facing half of the session exchange.
type Handshake interface {
	BeginAuthorization(ctx context.Context, code string, jar session.CookieJar) (string, error)
	CompleteAuthorization(ctx context.Context, slackCode string, jar session.CookieJar) (string, error)
	BeginReconfiguration(ctx context.Context, code string, jar session.CookieJar) (string, error)
}

// AuthHandler serves the redirect endpoints a browser walks through.
// Failures are rendered as plain text.
type AuthHandler struct {
	handshake    Handshake
	secureCookie bool
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(handshake Handshake, secureCookie bool) *AuthHandler {
	return &AuthHandler{handshake: handshake, secureCookie: secureCookie}
}

// RegisterRoutes registers the browser redirect routes
func (h *AuthHandler) RegisterRoutes(e *echo.Echo) {
	browser := e.Group("", middleware.PlainTextErrors())
	browser.GET("/auth-request", h.AuthRequest)
	browser.GET("/auth-callback", h.AuthCallback)
	browser.GET("/reconfig-request", h.ReconfigRequest)
}

// AuthRequest handles GET /auth-request?code=
func (h *AuthHandler) AuthRequest(c echo.Context) error {
	redirect, err := h.handshake.BeginAuthorization(c.Request().Context(), c.QueryParam(session.CodeParam), NewCookieJar(c, h.secureCookie))
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, redirect)
}

// AuthCallback handles GET /auth-callback?code= from Slack
func (h *AuthHandler) AuthCallback(c echo.Context) error {
	if slackErr := c.QueryParam("error"); slackErr != "" {
		return BadRequest("Slack authorization was not completed: " + slackErr)
	}

	_, err := h.handshake.CompleteAuthorization(c.Request().Context(), c.QueryParam(session.CodeParam), NewCookieJar(c, h.secureCookie))
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, "/config")
}

// ReconfigRequest handles GET /reconfig-request?code=
func (h *AuthHandler) ReconfigRequest(c echo.Context) error {
	_, err := h.handshake.BeginReconfiguration(c.Request().Context(), c.QueryParam(session.CodeParam), NewCookieJar(c, h.secureCookie))
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, "/config")
}

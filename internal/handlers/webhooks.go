package handlers

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
)

// CodeMinter mints session-code URLs.
type CodeMinter interface {
	AuthorizationURL(ctx context.Context, integrationID string) (string, error)
	ReconfigurationURL(ctx context.Context, integrationID string) (string, error)
}

// APIKeyWriter stores a new integration's host API key.
type APIKeyWriter interface {
	SetWorkniceAPIKey(ctx context.Context, integrationID, apiKey string) error
}

// WebhookHandler serves the host platform's webhooks.
type WebhookHandler struct {
	minter CodeMinter
	keys   APIKeyWriter
	logger ectologger.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(minter CodeMinter, keys APIKeyWriter, logger ectologger.Logger) *WebhookHandler {
	return &WebhookHandler{minter: minter, keys: keys, logger: logger}
}

// CreateIntegrationRequest is sent when an integration is installed.
type CreateIntegrationRequest struct {
	IntegrationID string `json:"integrationId" validate:"required"`
	APIToken      string `json:"apiToken" validate:"required"`
}

// IntegrationRequest identifies an integration.
type IntegrationRequest struct {
	IntegrationID string `json:"integrationId" validate:"required"`
}

type AuthorizationURLResponse struct {
	AuthorizationURL string `json:"authorizationUrl"`
}

type ReconfigurationURLResponse struct {
	ReconfigurationURL string `json:"reconfigurationUrl"`
}

// RegisterRoutes registers webhook routes
func (h *WebhookHandler) RegisterRoutes(e *echo.Echo) {
	hooks := e.Group("/worknice-webhooks")
	hooks.POST("/create-integration", h.CreateIntegration)
	hooks.POST("/get-authorization-url", h.GetAuthorizationURL)
	hooks.POST("/get-reconfiguration-url", h.GetReconfigurationURL)
}

// CreateIntegration handles POST /worknice-webhooks/create-integration
func (h *WebhookHandler) CreateIntegration(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := BindRequest[CreateIntegrationRequest](c)
	if err != nil {
		return err
	}

	if err := h.keys.SetWorkniceAPIKey(ctx, req.IntegrationID, req.APIToken); err != nil {
		return err
	}

	h.logger.WithContext(ctx).Infof("Stored API key for new integration %s", req.IntegrationID)
	return SuccessResponse(c, map[string]string{"status": "ok"})
}

// GetAuthorizationURL handles POST /worknice-webhooks/get-authorization-url
func (h *WebhookHandler) GetAuthorizationURL(c echo.Context) error {
	req, err := BindRequest[IntegrationRequest](c)
	if err != nil {
		return err
	}

	url, err := h.minter.AuthorizationURL(c.Request().Context(), req.IntegrationID)
	if err != nil {
		return err
	}
	return SuccessResponse(c, AuthorizationURLResponse{AuthorizationURL: url})
}

// GetReconfigurationURL handles POST /worknice-webhooks/get-reconfiguration-url
func (h *WebhookHandler) GetReconfigurationURL(c echo.Context) error {
	req, err := BindRequest[IntegrationRequest](c)
	if err != nil {
		return err
	}

	url, err := h.minter.ReconfigurationURL(c.Request().Context(), req.IntegrationID)
	if err != nil {
		return err
	}
	return SuccessResponse(c, ReconfigurationURLResponse{ReconfigurationURL: url})
}

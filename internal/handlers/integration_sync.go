package handlers

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/WorkniceHR/slack/pkg/slack"
)

// UserLister lists the people in a Slack workspace.
type UserLister interface {
	ListUsers(ctx context.Context, accessToken string) ([]slack.User, error)
}

// TokenReader reads an integration's Slack bot token.
type TokenReader interface {
	GetSlackAccessToken(ctx context.Context, integrationID string) (string, error)
}

// IntegrationSyncHandler answers the host's people-sync webhook.
type IntegrationSyncHandler struct {
	lifecycle ActiveChecker
	tokens    TokenReader
	slack     UserLister
	logger    ectologger.Logger
}

// NewIntegrationSyncHandler creates a new integration sync handler
func NewIntegrationSyncHandler(lifecycle ActiveChecker, tokens TokenReader, slackClient UserLister, logger ectologger.Logger) *IntegrationSyncHandler {
	return &IntegrationSyncHandler{lifecycle: lifecycle, tokens: tokens, slack: slackClient, logger: logger}
}

// RemotePerson is a Slack member as the host sees it.
type RemotePerson struct {
	SourceID     string `json:"sourceId"`
	DisplayName  string `json:"displayName"`
	ProfileEmail string `json:"profileEmail,omitempty"`
}

// IntegrationSyncResponse lists the workspace's people for a connection-only sync.
type IntegrationSyncResponse struct {
	AppName      string         `json:"appName"`
	Mode         string         `json:"mode"`
	RemotePeople []RemotePerson `json:"remotePeople"`
}

// RegisterRoutes registers integration sync routes
func (h *IntegrationSyncHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/worknice-webhooks/trigger-integration-sync", h.TriggerIntegrationSync)
}

// TriggerIntegrationSync handles POST /worknice-webhooks/trigger-integration-sync
func (h *IntegrationSyncHandler) TriggerIntegrationSync(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := BindRequest[IntegrationRequest](c)
	if err != nil {
		return err
	}

	if _, err := h.lifecycle.EnsureActive(ctx, req.IntegrationID); err != nil {
		return err
	}

	token, err := h.tokens.GetSlackAccessToken(ctx, req.IntegrationID)
	if err != nil {
		return err
	}

	users, err := h.slack.ListUsers(ctx, token)
	if err != nil {
		return err
	}

	people := make([]RemotePerson, 0, len(users))
	for _, u := range users {
		people = append(people, RemotePerson{
			SourceID:     u.ID,
			DisplayName:  displayName(u),
			ProfileEmail: u.Profile.Email,
		})
	}

	h.logger.WithContext(ctx).Infof("Synced %d Slack people for integration %s", len(people), req.IntegrationID)
	return SuccessResponse(c, IntegrationSyncResponse{
		AppName:      "Slack",
		Mode:         "connection-only",
		RemotePeople: people,
	})
}

func displayName(u slack.User) string {
	switch {
	case u.Profile.DisplayName != "":
		return u.Profile.DisplayName
	case u.Profile.RealName != "":
		return u.Profile.RealName
	default:
		return u.Name
	}
}

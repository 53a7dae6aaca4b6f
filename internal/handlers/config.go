package handlers

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	appcontext "github.com/WorkniceHR/slack/pkg/context"
	"github.com/WorkniceHR/slack/pkg/credentials"
	"github.com/WorkniceHR/slack/pkg/session"
	"github.com/WorkniceHR/slack/pkg/slack"
)

// SessionResolver authenticates the configuration API.
type SessionResolver interface {
	ResolveSession(ctx context.Context, jar session.CookieJar) (string, error)
}

// ActiveChecker confirms an integration is still live before its
// credentials are used.
type ActiveChecker interface {
	EnsureActive(ctx context.Context, integrationID string) (string, error)
}

// ChannelLister lists Slack channels for a bot token.
type ChannelLister interface {
	ListChannels(ctx context.Context, accessToken string) ([]slack.Channel, error)
}

// ChannelStore reads and writes integration channel settings.
type ChannelStore interface {
	GetSlackAccessToken(ctx context.Context, integrationID string) (string, error)
	GetChannels(ctx context.Context, integrationID string) (credentials.ChannelSelection, error)
	SaveChannels(ctx context.Context, integrationID string, sel credentials.ChannelSelection) error
}

// ConfigHandler serves the session-authenticated configuration API.
type ConfigHandler struct {
	sessions     SessionResolver
	lifecycle    ActiveChecker
	channels     ChannelStore
	slack        ChannelLister
	secureCookie bool
	logger       ectologger.Logger
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(
	sessions SessionResolver,
	lifecycle ActiveChecker,
	channels ChannelStore,
	slackClient ChannelLister,
	secureCookie bool,
	logger ectologger.Logger,
) *ConfigHandler {
	return &ConfigHandler{
		sessions:     sessions,
		lifecycle:    lifecycle,
		channels:     channels,
		slack:        slackClient,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// ConfigResponse is the current configuration plus the channels to choose from.
type ConfigResponse struct {
	IntegrationID string                       `json:"integrationId"`
	Channels      credentials.ChannelSelection `json:"channels"`
	SlackChannels []slack.Channel              `json:"slackChannels"`
}

// SaveConfigRequest selects the channel for each alert. Empty disables it.
type SaveConfigRequest struct {
	CalendarUpdateChannel  string `json:"calendarUpdateChannel" form:"calendarUpdateChannel" validate:"max=64"`
	NewStarterChannel      string `json:"newStarterChannel" form:"newStarterChannel" validate:"max=64"`
	PersonActivatedChannel string `json:"personActivatedChannel" form:"personActivatedChannel" validate:"max=64"`
}

// RegisterRoutes registers configuration routes
func (h *ConfigHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/config", h.Get)
	e.POST("/config", h.Save)
}

// Get handles GET /config
func (h *ConfigHandler) Get(c echo.Context) error {
	ctx, integrationID, err := h.authenticate(c)
	if err != nil {
		return err
	}

	if _, err := h.lifecycle.EnsureActive(ctx, integrationID); err != nil {
		return err
	}

	token, err := h.channels.GetSlackAccessToken(ctx, integrationID)
	if err != nil {
		return err
	}

	slackChannels, err := h.slack.ListChannels(ctx, token)
	if err != nil {
		return err
	}

	saved, err := h.channels.GetChannels(ctx, integrationID)
	if err != nil {
		return err
	}

	if slackChannels == nil {
		slackChannels = []slack.Channel{}
	}
	return SuccessResponse(c, ConfigResponse{
		IntegrationID: integrationID,
		Channels:      saved,
		SlackChannels: slackChannels,
	})
}

// Save handles POST /config
func (h *ConfigHandler) Save(c echo.Context) error {
	ctx, integrationID, err := h.authenticate(c)
	if err != nil {
		return err
	}

	req, err := BindRequest[SaveConfigRequest](c)
	if err != nil {
		return err
	}

	if _, err := h.lifecycle.EnsureActive(ctx, integrationID); err != nil {
		return err
	}

	sel := credentials.ChannelSelection{
		CalendarUpdate:  req.CalendarUpdateChannel,
		NewStarter:      req.NewStarterChannel,
		PersonActivated: req.PersonActivatedChannel,
	}
	if err := h.channels.SaveChannels(ctx, integrationID, sel); err != nil {
		return err
	}

	h.logger.WithContext(ctx).Infof("Saved channel selection for integration %s", integrationID)
	return SuccessResponse(c, ConfigResponse{
		IntegrationID: integrationID,
		Channels:      sel,
	})
}

func (h *ConfigHandler) authenticate(c echo.Context) (context.Context, string, error) {
	ctx := c.Request().Context()
	integrationID, err := h.sessions.ResolveSession(ctx, NewCookieJar(c, h.secureCookie))
	if err != nil {
		return ctx, "", err
	}
	return appcontext.SetIntegrationID(ctx, integrationID), integrationID, nil
}

package handlers

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	appcontext "github.com/WorkniceHR/slack/pkg/context"
	apperrors "github.com/WorkniceHR/slack/pkg/errors"
	"github.com/WorkniceHR/slack/pkg/events"
	"github.com/WorkniceHR/slack/pkg/middleware"
	"github.com/WorkniceHR/slack/pkg/signature"
)

// TeamResolver maps a Slack team to its integration.
type TeamResolver interface {
	GetIntegrationIDByTeam(ctx context.Context, teamID string) (string, error)
}

// SlashCommandHandler acknowledges Slack slash commands and hands them to
// downstream formatters through the lifecycle topic.
type SlashCommandHandler struct {
	verifier  *signature.Verifier
	teams     TeamResolver
	lifecycle ActiveChecker
	publisher events.Publisher
	logger    ectologger.Logger
}

// NewSlashCommandHandler creates a new slash command handler
func NewSlashCommandHandler(
	verifier *signature.Verifier,
	teams TeamResolver,
	lifecycle ActiveChecker,
	publisher events.Publisher,
	logger ectologger.Logger,
) *SlashCommandHandler {
	return &SlashCommandHandler{
		verifier:  verifier,
		teams:     teams,
		lifecycle: lifecycle,
		publisher: publisher,
		logger:    logger,
	}
}

// SlashCommandRequest is the form Slack posts for a slash command.
type SlashCommandRequest struct {
	Command     string `form:"command" validate:"required,oneof=/whois /whosaway /whosout"`
	TeamID      string `form:"team_id" validate:"required"`
	UserID      string `form:"user_id" validate:"required"`
	Text        string `form:"text"`
	ResponseURL string `form:"response_url" validate:"required,url"`
}

// SlashCommandResponse is the immediate reply shown in the channel.
type SlashCommandResponse struct {
	ResponseType string `json:"response_type"`
	Text         string `json:"text"`
}

// RegisterRoutes registers the slash command route behind signature verification
func (h *SlashCommandHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/slash-commands", h.Handle, middleware.SlackSignature(h.verifier, h.logger))
}

// Handle handles POST /slash-commands
func (h *SlashCommandHandler) Handle(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := BindRequest[SlashCommandRequest](c)
	if err != nil {
		return err
	}
	ctx = appcontext.SetSlackTeamID(ctx, req.TeamID)

	integrationID, err := h.teams.GetIntegrationIDByTeam(ctx, req.TeamID)
	if err != nil {
		return err
	}
	ctx = appcontext.SetIntegrationID(ctx, integrationID)

	if _, err := h.lifecycle.EnsureActive(ctx, integrationID); err != nil {
		return err
	}

	err = h.publisher.Publish(ctx, &events.Event{
		Type:          events.TypeSlashCommandReceived,
		IntegrationID: integrationID,
		SlackTeamID:   req.TeamID,
		Command: &events.Command{
			Name:        req.Command,
			Text:        req.Text,
			UserID:      req.UserID,
			ResponseURL: req.ResponseURL,
		},
	})
	if err != nil {
		return apperrors.NewUpstreamError("unable to queue slash command", err)
	}

	h.logger.WithContext(ctx).Infof("Queued %s for integration %s", req.Command, integrationID)
	return SuccessResponse(c, SlashCommandResponse{
		ResponseType: "in_channel",
		Text:         "Working...",
	})
}

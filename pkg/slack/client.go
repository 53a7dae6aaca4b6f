// Package slack talks to the Slack OAuth and Web APIs.
package slack

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Gobusters/ectologger"
	"golang.org/x/oauth2"

	apperrors "github.com/WorkniceHR/slack/pkg/errors"
	"github.com/WorkniceHR/slack/pkg/httpclient"
	"github.com/WorkniceHR/slack/pkg/tracing"
	"github.com/WorkniceHR/slack/pkg/validation"
)

const (
	DefaultAuthorizeURL = "https://slack.com/oauth/v2/authorize"
	DefaultAPIBaseURL   = "https://slack.com/api"

	pageSize = 200
)

// DefaultScopes are the bot scopes requested during installation.
var DefaultScopes = []string{
	"channels:read",
	"chat:write.customize",
	"chat:write.public",
	"chat:write",
	"users:read",
	"users:read.email",
}

// Config holds the Slack app credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	AuthorizeURL string
	APIBaseURL   string
}

// Team identifies a Slack workspace.
type Team struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name"`
}

// Enterprise identifies an Enterprise Grid organization.
type Enterprise struct {
	ID string `json:"id"`
}

// OAuthAccess is the oauth.v2.access response.
type OAuthAccess struct {
	OK          bool        `json:"ok"`
	Error       string      `json:"error,omitempty"`
	AccessToken string      `json:"access_token" validate:"required"`
	BotUserID   string      `json:"bot_user_id"`
	Team        *Team       `json:"team" validate:"required"`
	Enterprise  *Enterprise `json:"enterprise"`
}

// EnterpriseID returns the enterprise id or "" when the workspace is standalone.
func (a *OAuthAccess) EnterpriseID() string {
	if a.Enterprise == nil {
		return ""
	}
	return a.Enterprise.ID
}

// SlackbotUserID is the built-in Slackbot, which users.list reports as a
// regular member.
const SlackbotUserID = "USLACKBOT"

// User is a workspace member as returned by users.list.
type User struct {
	ID      string      `json:"id" validate:"required"`
	Name    string      `json:"name"`
	Deleted bool        `json:"deleted"`
	IsBot   bool        `json:"is_bot"`
	Profile UserProfile `json:"profile"`
}

type UserProfile struct {
	DisplayName string `json:"display_name"`
	RealName    string `json:"real_name"`
	Email       string `json:"email"`
}

// IsPerson reports whether u is an active human member.
func (u User) IsPerson() bool {
	return !u.Deleted && !u.IsBot && u.ID != SlackbotUserID
}

// Channel is a public Slack channel.
type Channel struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name"`
	IsChannel bool   `json:"is_channel"`
}

type apiStatus struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// cursorPage is the envelope shared by Slack's paginated list methods.
type cursorPage struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	Metadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

type channelsPage struct {
	cursorPage
	Channels []Channel `json:"channels" validate:"dive"`
}

type usersPage struct {
	cursorPage
	Members []User `json:"members" validate:"dive"`
}

// Client is a Slack API client.
type Client struct {
	cfg    Config
	oauth  *oauth2.Config
	http   *httpclient.Client
	logger ectologger.Logger
}

// NewClient creates a Slack client. Empty URLs and scopes fall back to the defaults.
func NewClient(cfg Config, http *httpclient.Client, logger ectologger.Logger) *Client {
	if cfg.AuthorizeURL == "" {
		cfg.AuthorizeURL = DefaultAuthorizeURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	cfg.APIBaseURL = strings.TrimSuffix(cfg.APIBaseURL, "/")
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}

	return &Client{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthorizeURL,
				TokenURL: cfg.APIBaseURL + "/oauth.v2.access",
			},
		},
		http:   http,
		logger: logger,
	}
}

// AuthorizationURL builds the consent screen URL. Slack expects the scope list
// comma separated, so it is set as a raw parameter rather than via Scopes.
func (c *Client) AuthorizationURL() string {
	return c.oauth.AuthCodeURL("", oauth2.SetAuthURLParam("scope", strings.Join(c.cfg.Scopes, ",")))
}

// ExchangeCode trades a one-time OAuth code for a bot token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*OAuthAccess, error) {
	ctx, span := tracing.StartSpan(ctx, "Slack.ExchangeCode")
	defer span.End()

	if code == "" {
		return nil, apperrors.NewValidationError("missing Slack OAuth code", nil)
	}

	form := url.Values{
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"code":          {code},
	}
	if c.cfg.RedirectURI != "" {
		form.Set("redirect_uri", c.cfg.RedirectURI)
	}

	resp, err := c.http.PostForm(ctx, c.oauth.Endpoint.TokenURL, form, nil)
	if err != nil {
		return nil, apperrors.NewUpstreamError("slack oauth.v2.access request failed", err)
	}
	if err := checkStatus("oauth.v2.access", resp); err != nil {
		return nil, err
	}

	access, err := validation.DecodeJSON[OAuthAccess](resp.Body)
	if !access.OK && access.Error != "" {
		return nil, apperrors.NewUpstreamError(fmt.Sprintf("slack oauth.v2.access returned %q", access.Error), nil)
	}
	if err != nil {
		return nil, apperrors.NewUpstreamError("slack oauth.v2.access returned an incomplete response", err)
	}
	if !access.OK {
		return nil, apperrors.NewUpstreamError("slack oauth.v2.access returned ok=false", nil)
	}

	c.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"slack_team_id": access.Team.ID,
		"bot_user_id":   access.BotUserID,
	}).Info("Exchanged Slack OAuth code")

	return &access, nil
}

// ListChannels returns every public channel visible to the token, following
// pagination cursors.
func (c *Client) ListChannels(ctx context.Context, accessToken string) ([]Channel, error) {
	ctx, span := tracing.StartSpan(ctx, "Slack.ListChannels")
	defer span.End()

	query := url.Values{"exclude_archived": {"true"}}
	return listAll(ctx, c, "conversations.list", accessToken, query, func(p channelsPage) (cursorPage, []Channel) {
		return p.cursorPage, p.Channels
	})
}

// ListUsers returns the workspace's active human members. Deleted accounts,
// bots and Slackbot are left out.
func (c *Client) ListUsers(ctx context.Context, accessToken string) ([]User, error) {
	ctx, span := tracing.StartSpan(ctx, "Slack.ListUsers")
	defer span.End()

	members, err := listAll(ctx, c, "users.list", accessToken, url.Values{}, func(p usersPage) (cursorPage, []User) {
		return p.cursorPage, p.Members
	})
	if err != nil {
		return nil, err
	}

	people := make([]User, 0, len(members))
	for _, m := range members {
		if m.IsPerson() {
			people = append(people, m)
		}
	}
	return people, nil
}

// listAll walks a cursor-paginated Web API method and concatenates the items.
func listAll[P any, T any](ctx context.Context, c *Client, method, accessToken string, query url.Values, split func(P) (cursorPage, []T)) ([]T, error) {
	headers := map[string]string{"Authorization": "Bearer " + accessToken}
	query.Set("limit", fmt.Sprint(pageSize))

	var items []T
	for {
		resp, err := c.http.Get(ctx, c.cfg.APIBaseURL+"/"+method+"?"+query.Encode(), headers)
		if err != nil {
			return nil, apperrors.NewUpstreamError(fmt.Sprintf("slack %s request failed", method), err)
		}
		if err := checkStatus(method, resp); err != nil {
			return nil, err
		}

		page, err := validation.DecodeJSON[P](resp.Body)
		if err != nil {
			return nil, apperrors.NewUpstreamError(fmt.Sprintf("slack %s returned an invalid response", method), err)
		}
		status, batch := split(page)
		if !status.OK {
			return nil, apperrors.NewUpstreamError(fmt.Sprintf("slack %s returned %q", method, status.Error), nil)
		}

		items = append(items, batch...)
		if status.Metadata.NextCursor == "" {
			return items, nil
		}
		query.Set("cursor", status.Metadata.NextCursor)
	}
}

func checkStatus(method string, resp *httpclient.Response) error {
	if resp.OK() {
		return nil
	}
	status, err := validation.DecodeJSON[apiStatus](resp.Body)
	if err == nil && status.Error != "" {
		return apperrors.NewUpstreamError(fmt.Sprintf("slack %s returned %d: %s", method, resp.StatusCode, status.Error), nil)
	}
	return apperrors.NewUpstreamError(fmt.Sprintf("slack %s returned %d", method, resp.StatusCode), nil)
}

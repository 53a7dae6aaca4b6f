// Package worknice is a minimal GraphQL client for the Worknice host platform,
// limited to the operations that affect integration lifecycle.
package worknice

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"

	apperrors "github.com/WorkniceHR/slack/pkg/errors"
	"github.com/WorkniceHR/slack/pkg/httpclient"
	"github.com/WorkniceHR/slack/pkg/tracing"
	"github.com/WorkniceHR/slack/pkg/validation"
)

const (
	DefaultBaseURL = "https://app.worknice.com"
	// APITokenHeader carries the per-integration API key.
	APITokenHeader = "worknice-api-token"
)

const getIntegrationQuery = `query GetIntegration($id: ID!) {
  integration(id: $id) {
    id
    archived
  }
}`

const activateIntegrationMutation = `mutation ActivateIntegration($id: ID!, $name: String!) {
  updateIntegration(integrationId: $id, name: $name) {
    id
  }
  activateIntegration(integrationId: $id) {
    id
  }
}`

// Integration is the host's view of an installation.
type Integration struct {
	ID       string `json:"id" validate:"required"`
	Archived bool   `json:"archived"`
}

type idRef struct {
	ID string `json:"id" validate:"required"`
}

type getIntegrationData struct {
	Integration *Integration `json:"integration"`
}

type activateIntegrationData struct {
	UpdateIntegration   *idRef `json:"updateIntegration" validate:"required"`
	ActivateIntegration *idRef `json:"activateIntegration" validate:"required"`
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse[T any] struct {
	Data   *T             `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// Client calls the Worknice GraphQL API.
type Client struct {
	endpoint string
	http     *httpclient.Client
	logger   ectologger.Logger
}

// NewClient creates a client for baseURL, defaulting to DefaultBaseURL.
func NewClient(baseURL string, http *httpclient.Client, logger ectologger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		endpoint: strings.TrimSuffix(baseURL, "/") + "/api/graphql",
		http:     http,
		logger:   logger,
	}
}

// GetIntegration fetches the live state of an integration.
func (c *Client) GetIntegration(ctx context.Context, apiKey, integrationID string) (*Integration, error) {
	ctx, span := tracing.StartSpan(ctx, "Worknice.GetIntegration")
	defer span.End()

	data, err := execute[getIntegrationData](ctx, c, apiKey, "GetIntegration", getIntegrationQuery, map[string]any{"id": integrationID})
	if err != nil {
		return nil, err
	}
	if data.Integration == nil {
		return nil, apperrors.Newf(apperrors.KindNotFound, "worknice has no integration %s", integrationID)
	}

	integration, err := validation.Validate(*data.Integration)
	if err != nil {
		return nil, apperrors.NewUpstreamError("worknice returned an invalid integration", err)
	}
	return &integration, nil
}

// ActivateIntegration names the integration after the Slack workspace and
// marks it active.
func (c *Client) ActivateIntegration(ctx context.Context, apiKey, integrationID, name string) error {
	ctx, span := tracing.StartSpan(ctx, "Worknice.ActivateIntegration")
	defer span.End()

	_, err := execute[activateIntegrationData](ctx, c, apiKey, "ActivateIntegration", activateIntegrationMutation, map[string]any{
		"id":   integrationID,
		"name": name,
	})
	if err != nil {
		return err
	}

	c.logger.WithContext(ctx).Infof("Activated integration %s as %q", integrationID, name)
	return nil
}

func execute[T any](ctx context.Context, c *Client, apiKey, operation, query string, variables map[string]any) (*T, error) {
	resp, err := c.http.PostJSON(ctx, c.endpoint, graphQLRequest{Query: query, Variables: variables}, map[string]string{
		APITokenHeader: apiKey,
	})
	if err != nil {
		return nil, apperrors.NewUpstreamError(fmt.Sprintf("worknice %s request failed", operation), err)
	}
	if !resp.OK() {
		return nil, apperrors.NewUpstreamError(fmt.Sprintf("worknice %s returned %d", operation, resp.StatusCode), nil)
	}

	var out graphQLResponse[T]
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, apperrors.NewUpstreamError(fmt.Sprintf("worknice %s returned malformed JSON", operation), err)
	}
	if len(out.Errors) > 0 {
		messages := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			messages = append(messages, e.Message)
		}
		return nil, apperrors.NewUpstreamError(fmt.Sprintf("worknice %s failed: %s", operation, strings.Join(messages, "; ")), nil)
	}
	if out.Data == nil {
		return nil, apperrors.NewUpstreamError(fmt.Sprintf("worknice %s returned no data", operation), nil)
	}

	data, err := validation.Validate(*out.Data)
	if err != nil {
		return nil, apperrors.NewUpstreamError(fmt.Sprintf("worknice %s returned an incomplete response", operation), err)
	}
	return &data, nil
}

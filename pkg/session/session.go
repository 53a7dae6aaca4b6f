// Package session implements the handshake that carries an integration id
// from the host platform, through Slack's OAuth consent screen, and into a
// browser session for the configuration page.
//
// A session code is random, single-use and lives for five minutes. It is
// consumed with an atomic get-and-delete, so a replayed or concurrently
// presented code resolves at most once. A session token lives for an hour
// and may be presented any number of times.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	appcontext "github.com/WorkniceHR/slack/pkg/context"
	"github.com/WorkniceHR/slack/pkg/credentials"
	apperrors "github.com/WorkniceHR/slack/pkg/errors"
	"github.com/WorkniceHR/slack/pkg/events"
	"github.com/WorkniceHR/slack/pkg/metrics"
	"github.com/WorkniceHR/slack/pkg/slack"
	"github.com/WorkniceHR/slack/pkg/store"
	"github.com/WorkniceHR/slack/pkg/tracing"
)

const (
	SessionCodeCookie  = "session_code"
	SessionTokenCookie = "session_token"
	// CodeParam is the query parameter carrying a session code.
	CodeParam = "code"

	SessionCodeTTL  = 5 * time.Minute
	SessionTokenTTL = time.Hour

	sessionCodeBytes  = 16
	sessionTokenBytes = 64
)

const (
	flowAuthorization   = "authorization"
	flowReconfiguration = "reconfiguration"
)

// CookieJar is the browser cookie capability handed in by the HTTP layer.
type CookieJar interface {
	Get(name string) (string, bool)
	Set(name, value string, maxAge time.Duration)
	Clear(name string)
}

// SlackOAuth is the part of the Slack client the handshake needs.
type SlackOAuth interface {
	AuthorizationURL() string
	ExchangeCode(ctx context.Context, code string) (*slack.OAuthAccess, error)
}

// LifecycleChecker confirms an integration is live and returns its API key.
type LifecycleChecker interface {
	EnsureActive(ctx context.Context, integrationID string) (string, error)
}

// IntegrationActivator marks an integration active on the host.
type IntegrationActivator interface {
	ActivateIntegration(ctx context.Context, apiKey, integrationID, name string) error
}

// Exchange drives the handshake state machine.
type Exchange struct {
	baseURL   string
	repo      *credentials.Repository
	slack     SlackOAuth
	lifecycle LifecycleChecker
	host      IntegrationActivator
	publisher events.Publisher
	logger    ectologger.Logger
}

// NewExchange creates an Exchange. baseURL is this service's public origin.
func NewExchange(
	baseURL string,
	repo *credentials.Repository,
	slackClient SlackOAuth,
	lifecycle LifecycleChecker,
	host IntegrationActivator,
	publisher events.Publisher,
	logger ectologger.Logger,
) *Exchange {
	return &Exchange{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		repo:      repo,
		slack:     slackClient,
		lifecycle: lifecycle,
		host:      host,
		publisher: publisher,
		logger:    logger,
	}
}

// AuthorizationURL mints a session code for integrationID and returns the
// auth-request URL carrying it.
func (e *Exchange) AuthorizationURL(ctx context.Context, integrationID string) (string, error) {
	code, err := e.mintSessionCode(ctx, integrationID, flowAuthorization)
	if err != nil {
		return "", err
	}
	return e.urlFor("/auth-request", code), nil
}

// ReconfigurationURL mints a session code for integrationID and returns the
// reconfig-request URL carrying it.
func (e *Exchange) ReconfigurationURL(ctx context.Context, integrationID string) (string, error) {
	code, err := e.mintSessionCode(ctx, integrationID, flowReconfiguration)
	if err != nil {
		return "", err
	}
	return e.urlFor("/reconfig-request", code), nil
}

// BeginAuthorization resolves code without consuming it, parks it in the
// session_code cookie and returns the Slack consent URL.
func (e *Exchange) BeginAuthorization(ctx context.Context, code string, jar CookieJar) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "Session.BeginAuthorization")
	defer span.End()

	if code == "" {
		return "", apperrors.NewAuthenticationError("missing session code")
	}

	integrationID, err := e.repo.Store().GetString(ctx, credentials.SessionCodeKey(code))
	if err != nil {
		return "", authFailure(err, "authorization request not found or expired")
	}

	jar.Set(SessionCodeCookie, code, SessionCodeTTL)
	e.logger.WithContext(ctx).Debugf("Redirecting integration %s to Slack consent", integrationID)
	return e.slack.AuthorizationURL(), nil
}

// CompleteAuthorization handles Slack's callback. The Slack code is exchanged
// before the session code is consumed, and nothing is written unless both
// succeed. On success a session token is issued so the browser can open the
// configuration page. Returns the integration id now connected to Slack.
func (e *Exchange) CompleteAuthorization(ctx context.Context, slackCode string, jar CookieJar) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "Session.CompleteAuthorization")
	defer span.End()

	integrationID, err := e.completeAuthorization(ctx, slackCode, jar)
	if err != nil {
		metrics.HandshakesTotal.WithLabelValues(string(apperrors.KindOf(err))).Inc()
		e.logger.WithContext(ctx).WithError(err).Warn("Slack authorization failed")
		return "", err
	}
	metrics.HandshakesTotal.WithLabelValues("ok").Inc()
	return integrationID, nil
}

func (e *Exchange) completeAuthorization(ctx context.Context, slackCode string, jar CookieJar) (string, error) {
	code, ok := jar.Get(SessionCodeCookie)
	if !ok || code == "" {
		return "", apperrors.NewAuthenticationError("unable to retrieve session code")
	}
	if slackCode == "" {
		return "", apperrors.NewValidationError("missing callback code", nil)
	}

	access, err := e.slack.ExchangeCode(ctx, slackCode)
	if err != nil {
		return "", err
	}

	integrationID, err := e.consume(ctx, code, flowAuthorization)
	jar.Clear(SessionCodeCookie)
	if err != nil {
		return "", err
	}
	ctx = appcontext.SetIntegrationID(ctx, integrationID)

	apiKey, err := e.lifecycle.EnsureActive(ctx, integrationID)
	if err != nil {
		return "", err
	}

	err = e.repo.SetSlackConnection(ctx, integrationID, credentials.SlackConnection{
		AccessToken:  access.AccessToken,
		TeamID:       access.Team.ID,
		BotUserID:    access.BotUserID,
		EnterpriseID: access.EnterpriseID(),
	})
	if err != nil {
		return "", err
	}

	if err := e.host.ActivateIntegration(ctx, apiKey, integrationID, access.Team.Name); err != nil {
		return "", err
	}

	e.publish(ctx, &events.Event{
		Type:          events.TypeIntegrationActivated,
		IntegrationID: integrationID,
		SlackTeamID:   access.Team.ID,
	})
	e.logger.WithContext(ctx).Infof("Integration %s connected to Slack team %s", integrationID, access.Team.ID)

	// the browser lands on the configuration page next
	if err := e.startSession(ctx, integrationID, jar); err != nil {
		return "", err
	}
	return integrationID, nil
}

// BeginReconfiguration consumes code, mints a session token for the same
// integration and stores it in the session_token cookie.
func (e *Exchange) BeginReconfiguration(ctx context.Context, code string, jar CookieJar) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "Session.BeginReconfiguration")
	defer span.End()

	if code == "" {
		return "", apperrors.NewAuthenticationError("missing session code")
	}

	integrationID, err := e.consume(ctx, code, flowReconfiguration)
	if err != nil {
		return "", err
	}

	if err := e.startSession(ctx, integrationID, jar); err != nil {
		return "", err
	}
	return integrationID, nil
}

// ResolveSession returns the integration bound to the session_token cookie.
func (e *Exchange) ResolveSession(ctx context.Context, jar CookieJar) (string, error) {
	token, ok := jar.Get(SessionTokenCookie)
	if !ok || token == "" {
		return "", apperrors.NewAuthenticationError("missing session token")
	}

	integrationID, err := e.repo.Store().GetString(ctx, credentials.SessionTokenKey(token))
	if err != nil {
		return "", authFailure(err, "session expired")
	}
	return integrationID, nil
}

// startSession mints a session token for integrationID and hands it to the browser.
func (e *Exchange) startSession(ctx context.Context, integrationID string, jar CookieJar) error {
	token, err := randomHex(sessionTokenBytes)
	if err != nil {
		return err
	}
	if err := e.repo.Store().SetString(ctx, credentials.SessionTokenKey(token), integrationID, store.WithTTL(SessionTokenTTL)); err != nil {
		return err
	}

	jar.Set(SessionTokenCookie, token, SessionTokenTTL)
	e.logger.WithContext(ctx).Infof("Started configuration session for integration %s", integrationID)
	return nil
}

func (e *Exchange) mintSessionCode(ctx context.Context, integrationID, flow string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "Session.MintSessionCode")
	defer span.End()

	if integrationID == "" {
		return "", apperrors.NewValidationError("missing integration id", nil)
	}

	code, err := randomHex(sessionCodeBytes)
	if err != nil {
		return "", err
	}
	if err := e.repo.Store().SetString(ctx, credentials.SessionCodeKey(code), integrationID, store.WithTTL(SessionCodeTTL)); err != nil {
		return "", err
	}

	metrics.SessionCodesMintedTotal.WithLabelValues(flow).Inc()
	e.logger.WithContext(ctx).Debugf("Minted %s session code for integration %s", flow, integrationID)
	return code, nil
}

// consume atomically reads and deletes a session code.
func (e *Exchange) consume(ctx context.Context, code, flow string) (string, error) {
	integrationID, err := e.repo.Store().GetAndDeleteString(ctx, credentials.SessionCodeKey(code))
	if err != nil {
		metrics.SessionCodesConsumedTotal.WithLabelValues(flow, "rejected").Inc()
		return "", authFailure(err, "authorization request not found or already used")
	}
	metrics.SessionCodesConsumedTotal.WithLabelValues(flow, "ok").Inc()
	return integrationID, nil
}

func (e *Exchange) publish(ctx context.Context, evt *events.Event) {
	if err := e.publisher.Publish(ctx, evt); err != nil {
		e.logger.WithContext(ctx).WithError(err).Warnf("Failed to publish %s event", evt.Type)
	}
}

func (e *Exchange) urlFor(path, code string) string {
	return fmt.Sprintf("%s%s?%s", e.baseURL, path, url.Values{CodeParam: {code}}.Encode())
}

// authFailure turns a missing key into an AuthenticationError. Store outages
// pass through unchanged.
func authFailure(err error, message string) error {
	if apperrors.IsNotFound(err) {
		return apperrors.NewAuthenticationError(message)
	}
	return err
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

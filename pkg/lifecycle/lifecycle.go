// Package lifecycle keeps local credentials from outliving the host
// platform's record of an integration.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/WorkniceHR/slack/pkg/credentials"
	apperrors "github.com/WorkniceHR/slack/pkg/errors"
	"github.com/WorkniceHR/slack/pkg/events"
	"github.com/WorkniceHR/slack/pkg/metrics"
	"github.com/WorkniceHR/slack/pkg/tracing"
	"github.com/WorkniceHR/slack/pkg/worknice"
)

// HostClient reads integration state from the host platform.
type HostClient interface {
	GetIntegration(ctx context.Context, apiKey, integrationID string) (*worknice.Integration, error)
}

// Lifecycle checks archival status and purges archived integrations.
type Lifecycle struct {
	repo      *credentials.Repository
	host      HostClient
	publisher events.Publisher
	logger    ectologger.Logger
}

// New creates a Lifecycle.
func New(repo *credentials.Repository, host HostClient, publisher events.Publisher, logger ectologger.Logger) *Lifecycle {
	return &Lifecycle{
		repo:      repo,
		host:      host,
		publisher: publisher,
		logger:    logger,
	}
}

// EnsureActive confirms with the host that integrationID is still live and
// returns its API key. Archival status is always fetched, never cached.
//
// An archived integration is purged before ArchivedIntegrationError is
// returned. Host failures return UpstreamError and purge nothing.
func (l *Lifecycle) EnsureActive(ctx context.Context, integrationID string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "Lifecycle.EnsureActive")
	defer span.End()

	apiKey, err := l.repo.GetWorkniceAPIKey(ctx, integrationID)
	if err != nil {
		metrics.LifecycleChecksTotal.WithLabelValues("no_credentials").Inc()
		return "", err
	}

	integration, err := l.host.GetIntegration(ctx, apiKey, integrationID)
	if err != nil {
		metrics.LifecycleChecksTotal.WithLabelValues("error").Inc()
		l.logger.WithContext(ctx).WithError(err).Warnf("Unable to check archival status of integration %s", integrationID)
		return "", err
	}

	if !integration.Archived {
		metrics.LifecycleChecksTotal.WithLabelValues("active").Inc()
		return apiKey, nil
	}

	metrics.LifecycleChecksTotal.WithLabelValues("archived").Inc()
	l.logger.WithContext(ctx).Infof("Integration %s is archived, purging credentials", integrationID)
	if err := l.Purge(ctx, integrationID); err != nil {
		l.logger.WithContext(ctx).WithError(err).Warnf("Purge of integration %s left keys behind", integrationID)
	}
	return "", apperrors.NewArchivedIntegrationError(integrationID)
}

// Purge deletes every key held for integrationID, including the reverse team
// mapping and registry membership. Each delete is attempted independently;
// failures are logged, counted and returned joined. Nothing is retried.
func (l *Lifecycle) Purge(ctx context.Context, integrationID string) error {
	ctx, span := tracing.StartSpan(ctx, "Lifecycle.Purge")
	defer span.End()

	logger := l.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"integration_id": integrationID,
	})
	var errs []error
	fail := func(err error) {
		metrics.PurgeKeyFailuresTotal.Inc()
		logger.WithError(err).Error("Failed to purge integration key")
		errs = append(errs, err)
	}

	// the team id is needed for the reverse mapping, so read it before its key goes
	teamID, err := l.repo.GetSlackTeamID(ctx, integrationID)
	if err != nil && !apperrors.IsNotFound(err) {
		fail(fmt.Errorf("resolve slack team: %w", err))
	}

	for _, key := range credentials.IntegrationKeys(integrationID) {
		if err := l.repo.Store().DeleteKeys(ctx, key); err != nil {
			fail(fmt.Errorf("delete %s: %w", key, err))
		}
	}

	if teamID != "" {
		l.purgeTeamMapping(ctx, integrationID, teamID, fail)
	}

	if err := l.repo.Unregister(ctx, integrationID); err != nil {
		fail(fmt.Errorf("unregister: %w", err))
	}

	result := "complete"
	if len(errs) > 0 {
		result = "partial"
	}
	metrics.PurgesTotal.WithLabelValues(result).Inc()
	logger.Infof("Purged integration %s (%s)", integrationID, result)

	if err := l.publisher.Publish(ctx, &events.Event{
		Type:          events.TypeIntegrationPurged,
		IntegrationID: integrationID,
		SlackTeamID:   teamID,
	}); err != nil {
		logger.WithError(err).Warn("Failed to publish purge event")
	}

	return errors.Join(errs...)
}

// purgeTeamMapping removes slack_team:<teamID> unless the team has since been
// connected to a different integration.
func (l *Lifecycle) purgeTeamMapping(ctx context.Context, integrationID, teamID string, fail func(error)) {
	key := credentials.SlackTeamKey(teamID)
	owner, err := l.repo.GetIntegrationIDByTeam(ctx, teamID)
	switch {
	case apperrors.IsNotFound(err):
		return
	case err != nil:
		// ownership unknown, delete anyway
	case owner != integrationID:
		l.logger.WithContext(ctx).Infof("Slack team %s now belongs to integration %s, keeping mapping", teamID, owner)
		return
	}
	if err := l.repo.Store().DeleteKeys(ctx, key); err != nil {
		fail(fmt.Errorf("delete %s: %w", key, err))
	}
}

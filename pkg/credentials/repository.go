// Package credentials gives typed access to the per-integration values kept
// in the credential store.
package credentials

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	apperrors "github.com/WorkniceHR/slack/pkg/errors"
	"github.com/WorkniceHR/slack/pkg/store"
)

// SlackConnection is what a finished OAuth exchange leaves behind.
type SlackConnection struct {
	AccessToken  string
	TeamID       string
	BotUserID    string
	EnterpriseID string
}

// ChannelSelection holds the channels chosen on the configuration page.
// Empty strings mean "not configured".
type ChannelSelection struct {
	CalendarUpdate  string `json:"calendarUpdateChannel"`
	NewStarter      string `json:"newStarterChannel"`
	PersonActivated string `json:"personActivatedChannel"`
}

// Repository reads and writes integration credentials.
type Repository struct {
	store  store.CredentialStore
	logger ectologger.Logger
}

// NewRepository creates a repository over s.
func NewRepository(s store.CredentialStore, logger ectologger.Logger) *Repository {
	return &Repository{store: s, logger: logger}
}

// Store exposes the underlying credential store.
func (r *Repository) Store() store.CredentialStore {
	return r.store
}

// SetWorkniceAPIKey persists the host-issued API key and registers the
// integration for scheduled jobs.
func (r *Repository) SetWorkniceAPIKey(ctx context.Context, integrationID, apiKey string) error {
	if err := r.store.SetString(ctx, IntegrationKey(integrationID, FieldWorkniceAPIKey), apiKey, store.SetOptions{}); err != nil {
		return err
	}
	return r.store.AddMember(ctx, IntegrationsSetKey, integrationID)
}

func (r *Repository) GetWorkniceAPIKey(ctx context.Context, integrationID string) (string, error) {
	return r.get(ctx, integrationID, FieldWorkniceAPIKey, "Worknice API key")
}

func (r *Repository) GetSlackAccessToken(ctx context.Context, integrationID string) (string, error) {
	return r.get(ctx, integrationID, FieldSlackAccessToken, "Slack access token")
}

func (r *Repository) GetSlackTeamID(ctx context.Context, integrationID string) (string, error) {
	return r.get(ctx, integrationID, FieldSlackTeamID, "Slack team id")
}

// SetSlackConnection stores the forward token/team keys and the reverse team
// mapping. When the integration was previously connected to another team the
// old reverse entry is dropped, and when another integration held this team
// its Slack installation is removed, so both directions keep agreeing.
func (r *Repository) SetSlackConnection(ctx context.Context, integrationID string, conn SlackConnection) error {
	if conn.AccessToken == "" || conn.TeamID == "" {
		return apperrors.NewValidationError("slack connection requires an access token and team id", nil)
	}

	previousTeam, err := r.GetSlackTeamID(ctx, integrationID)
	switch {
	case err == nil && previousTeam != conn.TeamID:
		if err := r.dropTeamMapping(ctx, integrationID, previousTeam); err != nil {
			return err
		}
		r.logger.WithContext(ctx).Infof("Integration %s moved from Slack team %s to %s", integrationID, previousTeam, conn.TeamID)
	case err != nil && !apperrors.IsNotFound(err):
		return err
	}

	if err := r.evictTeamOwner(ctx, integrationID, conn.TeamID); err != nil {
		return err
	}

	writes := []struct {
		key   string
		value string
	}{
		{IntegrationKey(integrationID, FieldSlackAccessToken), conn.AccessToken},
		{IntegrationKey(integrationID, FieldSlackTeamID), conn.TeamID},
		{SlackTeamKey(conn.TeamID), integrationID},
		{IntegrationKey(integrationID, FieldSlackBotUserID), conn.BotUserID},
		{IntegrationKey(integrationID, FieldSlackEnterpriseID), conn.EnterpriseID},
	}
	for _, w := range writes {
		if w.value == "" {
			// optional fields from an earlier installation must not linger
			if err := r.store.DeleteKeys(ctx, w.key); err != nil {
				return err
			}
			continue
		}
		if err := r.store.SetString(ctx, w.key, w.value, store.SetOptions{}); err != nil {
			return err
		}
	}

	return r.store.AddMember(ctx, IntegrationsSetKey, integrationID)
}

// dropTeamMapping removes the reverse entry for teamID if integrationID still owns it.
func (r *Repository) dropTeamMapping(ctx context.Context, integrationID, teamID string) error {
	owner, err := r.store.GetString(ctx, SlackTeamKey(teamID))
	if apperrors.IsNotFound(err) || (err == nil && owner != integrationID) {
		return nil
	}
	if err != nil {
		return err
	}
	return r.store.DeleteKeys(ctx, SlackTeamKey(teamID))
}

// evictTeamOwner clears the Slack installation of whichever other
// integration currently owns teamID.
func (r *Repository) evictTeamOwner(ctx context.Context, integrationID, teamID string) error {
	owner, err := r.store.GetString(ctx, SlackTeamKey(teamID))
	switch {
	case apperrors.IsNotFound(err):
		return nil
	case err != nil:
		return err
	case owner == integrationID:
		return nil
	}

	ownerTeam, err := r.GetSlackTeamID(ctx, owner)
	if err != nil && !apperrors.IsNotFound(err) {
		return err
	}
	if err == nil && ownerTeam != teamID {
		// stale reverse entry; the owner already moved on
		return nil
	}

	if err := r.store.DeleteKeys(ctx, SlackConnectionKeys(owner)...); err != nil {
		return err
	}
	r.logger.WithContext(ctx).Warnf("Slack team %s moved from integration %s to %s; removed the previous installation", teamID, owner, integrationID)
	return nil
}

// GetIntegrationIDByTeam resolves a Slack team to the integration installed in it.
func (r *Repository) GetIntegrationIDByTeam(ctx context.Context, teamID string) (string, error) {
	id, err := r.store.GetString(ctx, SlackTeamKey(teamID))
	if apperrors.IsNotFound(err) {
		return "", apperrors.Newf(apperrors.KindNotFound, "no integration for Slack team %s", teamID)
	}
	return id, err
}

// GetChannels loads the saved channel selection. Unset channels are empty.
func (r *Repository) GetChannels(ctx context.Context, integrationID string) (ChannelSelection, error) {
	var sel ChannelSelection
	targets := []struct {
		field string
		dst   *string
	}{
		{FieldCalendarUpdateChannel, &sel.CalendarUpdate},
		{FieldNewStarterChannel, &sel.NewStarter},
		{FieldPersonActivatedChannel, &sel.PersonActivated},
	}
	for _, t := range targets {
		value, err := r.store.GetString(ctx, IntegrationKey(integrationID, t.field))
		if err != nil && !apperrors.IsNotFound(err) {
			return ChannelSelection{}, err
		}
		*t.dst = value
	}
	return sel, nil
}

// SaveChannels persists all three channel selections.
func (r *Repository) SaveChannels(ctx context.Context, integrationID string, sel ChannelSelection) error {
	values := map[string]string{
		FieldCalendarUpdateChannel:  sel.CalendarUpdate,
		FieldNewStarterChannel:      sel.NewStarter,
		FieldPersonActivatedChannel: sel.PersonActivated,
	}
	for field, value := range values {
		if err := r.store.SetString(ctx, IntegrationKey(integrationID, field), value, store.SetOptions{}); err != nil {
			return err
		}
	}
	return nil
}

// ListIntegrationIDs returns every registered integration.
func (r *Repository) ListIntegrationIDs(ctx context.Context) ([]string, error) {
	return r.store.Members(ctx, IntegrationsSetKey)
}

// Unregister removes the integration from the job registry.
func (r *Repository) Unregister(ctx context.Context, integrationID string) error {
	return r.store.RemoveMember(ctx, IntegrationsSetKey, integrationID)
}

func (r *Repository) get(ctx context.Context, integrationID, field, label string) (string, error) {
	value, err := r.store.GetString(ctx, IntegrationKey(integrationID, field))
	if apperrors.IsNotFound(err) {
		return "", apperrors.New(apperrors.KindNotFound, fmt.Sprintf("%s not found for integration %s", label, integrationID))
	}
	return value, err
}

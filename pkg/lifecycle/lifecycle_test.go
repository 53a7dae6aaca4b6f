package lifecycle_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WorkniceHR/slack/pkg/credentials"
	apperrors "github.com/WorkniceHR/slack/pkg/errors"
	"github.com/WorkniceHR/slack/pkg/events"
	"github.com/WorkniceHR/slack/pkg/events/eventstest"
	"github.com/WorkniceHR/slack/pkg/lifecycle"
	"github.com/WorkniceHR/slack/pkg/store"
	"github.com/WorkniceHR/slack/pkg/worknice"
)

type fakeHost struct {
	archived map[string]bool
	err      error
	calls    int
}

func (h *fakeHost) GetIntegration(_ context.Context, _ string, integrationID string) (*worknice.Integration, error) {
	h.calls++
	if h.err != nil {
		return nil, h.err
	}
	return &worknice.Integration{ID: integrationID, Archived: h.archived[integrationID]}, nil
}

// flakyStore fails deletes of selected keys.
type flakyStore struct {
	store.CredentialStore
	failDeletes map[string]bool
}

func (s *flakyStore) DeleteKeys(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if s.failDeletes[k] {
			return apperrors.NewStoreUnavailableError(errors.New("connection reset"))
		}
	}
	return s.CredentialStore.DeleteKeys(ctx, keys...)
}

type fixture struct {
	store     *store.MemoryStore
	repo      *credentials.Repository
	host      *fakeHost
	recorder  *eventstest.Recorder
	lifecycle *lifecycle.Lifecycle
}

func newFixture(t *testing.T, wrap func(store.CredentialStore) store.CredentialStore) *fixture {
	t.Helper()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	mem := store.NewMemoryStore()
	var s store.CredentialStore = mem
	if wrap != nil {
		s = wrap(mem)
	}
	repo := credentials.NewRepository(s, logger)
	host := &fakeHost{archived: map[string]bool{}}
	recorder := &eventstest.Recorder{}
	return &fixture{
		store:     mem,
		repo:      repo,
		host:      host,
		recorder:  recorder,
		lifecycle: lifecycle.New(repo, host, recorder, logger),
	}
}

func (f *fixture) seed(t *testing.T, integrationID, teamID string) {
	t.Helper()
	ctx := t.Context()
	require.NoError(t, f.repo.SetWorkniceAPIKey(ctx, integrationID, "key-"+integrationID))
	require.NoError(t, f.repo.SetSlackConnection(ctx, integrationID, credentials.SlackConnection{
		AccessToken:  "xoxb-" + integrationID,
		TeamID:       teamID,
		BotUserID:    "U-" + integrationID,
		EnterpriseID: "E1",
	}))
	require.NoError(t, f.repo.SaveChannels(ctx, integrationID, credentials.ChannelSelection{
		CalendarUpdate:  "C1",
		NewStarter:      "C2",
		PersonActivated: "C3",
	}))
}

func TestEnsureActive_Active(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "int_1", "T1")

	apiKey, err := f.lifecycle.EnsureActive(t.Context(), "int_1")
	require.NoError(t, err)
	assert.Equal(t, "key-int_1", apiKey)

	token, err := f.repo.GetSlackAccessToken(t.Context(), "int_1")
	require.NoError(t, err)
	assert.Equal(t, "xoxb-int_1", token)
	assert.Empty(t, f.recorder.Events())
}

func TestEnsureActive_ArchivedPurges(t *testing.T) {
	ctx := t.Context()
	f := newFixture(t, nil)
	f.seed(t, "int_2", "T2")
	f.host.archived["int_2"] = true

	_, err := f.lifecycle.EnsureActive(ctx, "int_2")
	require.Error(t, err)
	assert.True(t, apperrors.IsArchived(err))
	assert.ErrorIs(t, err, apperrors.ErrArchived)

	_, err = f.repo.GetWorkniceAPIKey(ctx, "int_2")
	assert.True(t, apperrors.IsNotFound(err))
	_, err = f.repo.GetSlackAccessToken(ctx, "int_2")
	assert.True(t, apperrors.IsNotFound(err))
	_, err = f.repo.GetIntegrationIDByTeam(ctx, "T2")
	assert.True(t, apperrors.IsNotFound(err))

	channels, err := f.repo.GetChannels(ctx, "int_2")
	require.NoError(t, err)
	assert.Equal(t, credentials.ChannelSelection{}, channels)

	ids, err := f.repo.ListIntegrationIDs(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, "int_2")
	assert.Zero(t, f.store.Len())

	purged := f.recorder.OfType(events.TypeIntegrationPurged)
	require.Len(t, purged, 1)
	assert.Equal(t, "T2", purged[0].SlackTeamID)
}

func TestEnsureActive_HostFailureDoesNotPurge(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "int_1", "T1")
	f.host.err = apperrors.NewUpstreamError("worknice GetIntegration returned 503", nil)

	_, err := f.lifecycle.EnsureActive(t.Context(), "int_1")
	require.Error(t, err)
	assert.True(t, apperrors.IsUpstream(err))

	_, err = f.repo.GetWorkniceAPIKey(t.Context(), "int_1")
	assert.NoError(t, err)
}

func TestEnsureActive_NoAPIKey(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.lifecycle.EnsureActive(t.Context(), "int_missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Zero(t, f.host.calls)
}

func TestPurge_KeepsOtherIntegrations(t *testing.T) {
	ctx := t.Context()
	f := newFixture(t, nil)
	f.seed(t, "int_1", "T1")
	f.seed(t, "int_2", "T2")

	require.NoError(t, f.lifecycle.Purge(ctx, "int_2"))

	id, err := f.repo.GetIntegrationIDByTeam(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, "int_1", id)
	ids, err := f.repo.ListIntegrationIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"int_1"}, ids)
}

func TestPurge_KeepsTeamMappingOwnedByAnotherIntegration(t *testing.T) {
	ctx := t.Context()
	f := newFixture(t, nil)
	f.seed(t, "int_old", "T1")
	// the workspace was reinstalled under a new integration
	require.NoError(t, f.store.SetString(ctx, credentials.SlackTeamKey("T1"), "int_new", store.SetOptions{}))

	require.NoError(t, f.lifecycle.Purge(ctx, "int_old"))

	id, err := f.repo.GetIntegrationIDByTeam(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, "int_new", id)
}

func TestPurge_PartialFailureContinues(t *testing.T) {
	ctx := t.Context()
	tokenKey := credentials.IntegrationKey("int_3", credentials.FieldSlackAccessToken)
	f := newFixture(t, func(s store.CredentialStore) store.CredentialStore {
		return &flakyStore{CredentialStore: s, failDeletes: map[string]bool{tokenKey: true}}
	})
	f.seed(t, "int_3", "T3")

	err := f.lifecycle.Purge(ctx, "int_3")
	require.Error(t, err)
	assert.True(t, apperrors.IsStoreUnavailable(err))
	assert.Contains(t, err.Error(), tokenKey)

	// every other key is still removed
	_, err = f.repo.GetWorkniceAPIKey(ctx, "int_3")
	assert.True(t, apperrors.IsNotFound(err))
	_, err = f.repo.GetIntegrationIDByTeam(ctx, "T3")
	assert.True(t, apperrors.IsNotFound(err))
	token, err := f.repo.GetSlackAccessToken(ctx, "int_3")
	require.NoError(t, err)
	assert.Equal(t, "xoxb-int_3", token)
}

func TestPurge_ArchivedAfterPartialPurgeStillReportsArchived(t *testing.T) {
	tokenKey := credentials.IntegrationKey("int_4", credentials.FieldSlackAccessToken)
	f := newFixture(t, func(s store.CredentialStore) store.CredentialStore {
		return &flakyStore{CredentialStore: s, failDeletes: map[string]bool{tokenKey: true}}
	})
	f.seed(t, "int_4", "T4")
	f.host.archived["int_4"] = true

	_, err := f.lifecycle.EnsureActive(t.Context(), "int_4")
	assert.True(t, apperrors.IsArchived(err))
}

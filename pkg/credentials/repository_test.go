package credentials_test

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WorkniceHR/slack/pkg/credentials"
	apperrors "github.com/WorkniceHR/slack/pkg/errors"
	"github.com/WorkniceHR/slack/pkg/store"
)

func newRepo() (*credentials.Repository, *store.MemoryStore) {
	s := store.NewMemoryStore()
	return credentials.NewRepository(s, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})), s
}

func TestKeySchema(t *testing.T) {
	assert.Equal(t, "session_code:c1:integration_id", credentials.SessionCodeKey("c1"))
	assert.Equal(t, "session_token:t1:integration_id", credentials.SessionTokenKey("t1"))
	assert.Equal(t, "slack_team:T1:integration_id", credentials.SlackTeamKey("T1"))
	assert.Equal(t, "worknice_integration:int_1:slack_access_token",
		credentials.IntegrationKey("int_1", credentials.FieldSlackAccessToken))
	assert.Contains(t, credentials.IntegrationKeys("int_1"), "worknice_integration:int_1:worknice_api_key")
	assert.Len(t, credentials.IntegrationKeys("int_1"), 8)
}

func TestRepository_WorkniceAPIKeyRegistersIntegration(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo()

	_, err := repo.GetWorkniceAPIKey(ctx, "int_1")
	assert.True(t, apperrors.IsNotFound(err))

	require.NoError(t, repo.SetWorkniceAPIKey(ctx, "int_1", "wn_key"))

	key, err := repo.GetWorkniceAPIKey(ctx, "int_1")
	require.NoError(t, err)
	assert.Equal(t, "wn_key", key)

	ids, err := repo.ListIntegrationIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"int_1"}, ids)
}

func TestRepository_SetSlackConnection_KeepsReverseMappingInSync(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo()

	require.NoError(t, repo.SetSlackConnection(ctx, "int_1", credentials.SlackConnection{
		AccessToken:  "xoxb-1",
		TeamID:       "T1",
		BotUserID:    "B1",
		EnterpriseID: "E1",
	}))

	id, err := repo.GetIntegrationIDByTeam(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, "int_1", id)

	// re-authorizing into another workspace replaces the reverse entry
	require.NoError(t, repo.SetSlackConnection(ctx, "int_1", credentials.SlackConnection{
		AccessToken: "xoxb-2",
		TeamID:      "T2",
	}))

	_, err = repo.GetIntegrationIDByTeam(ctx, "T1")
	assert.True(t, apperrors.IsNotFound(err))

	id, err = repo.GetIntegrationIDByTeam(ctx, "T2")
	require.NoError(t, err)
	assert.Equal(t, "int_1", id)

	token, err := repo.GetSlackAccessToken(ctx, "int_1")
	require.NoError(t, err)
	assert.Equal(t, "xoxb-2", token)

	_, err = repo.Store().GetString(ctx, credentials.IntegrationKey("int_1", credentials.FieldSlackEnterpriseID))
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRepository_SetSlackConnection_TakesOverTeam(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo()

	require.NoError(t, repo.SaveChannels(ctx, "int_A", credentials.ChannelSelection{CalendarUpdate: "C1"}))
	require.NoError(t, repo.SetSlackConnection(ctx, "int_A", credentials.SlackConnection{
		AccessToken:  "xoxb-A",
		TeamID:       "T1",
		BotUserID:    "BA",
		EnterpriseID: "E1",
	}))
	require.NoError(t, repo.SetSlackConnection(ctx, "int_B", credentials.SlackConnection{
		AccessToken: "xoxb-B",
		TeamID:      "T1",
	}))

	id, err := repo.GetIntegrationIDByTeam(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, "int_B", id)

	for _, key := range credentials.SlackConnectionKeys("int_A") {
		_, err := repo.Store().GetString(ctx, key)
		assert.True(t, apperrors.IsNotFound(err), key)
	}
	_, err = repo.GetSlackAccessToken(ctx, "int_A")
	assert.True(t, apperrors.IsNotFound(err))

	channels, err := repo.GetChannels(ctx, "int_A")
	require.NoError(t, err)
	assert.Equal(t, "C1", channels.CalendarUpdate)

	// int_A reconnecting elsewhere must not touch int_B's mapping
	require.NoError(t, repo.SetSlackConnection(ctx, "int_A", credentials.SlackConnection{
		AccessToken: "xoxb-A2",
		TeamID:      "T2",
	}))
	id, err = repo.GetIntegrationIDByTeam(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, "int_B", id)
	token, err := repo.GetSlackAccessToken(ctx, "int_B")
	require.NoError(t, err)
	assert.Equal(t, "xoxb-B", token)
}

func TestRepository_SetSlackConnection_RequiresTokenAndTeam(t *testing.T) {
	repo, s := newRepo()

	err := repo.SetSlackConnection(context.Background(), "int_1", credentials.SlackConnection{AccessToken: "xoxb"})
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, 0, s.Len())
}

func TestRepository_Channels(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo()

	sel, err := repo.GetChannels(ctx, "int_1")
	require.NoError(t, err)
	assert.Equal(t, credentials.ChannelSelection{}, sel)

	want := credentials.ChannelSelection{CalendarUpdate: "C1", NewStarter: "C2", PersonActivated: "C3"}
	require.NoError(t, repo.SaveChannels(ctx, "int_1", want))

	sel, err = repo.GetChannels(ctx, "int_1")
	require.NoError(t, err)
	assert.Equal(t, want, sel)
}

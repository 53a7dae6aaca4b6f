package credentials

import (
	"fmt"

	"github.com/Gobusters/ectolinq"
)

// IntegrationsSetKey names the set of every integration id that has ever
// been given an API key and not yet purged.
const IntegrationsSetKey = "worknice_integrations"

// Field names stored under worknice_integration:<id>:<field>.
const (
	FieldWorkniceAPIKey         = "worknice_api_key"
	FieldSlackAccessToken       = "slack_access_token"
	FieldSlackTeamID            = "slack_team_id"
	FieldSlackBotUserID         = "slack_bot_user_id"
	FieldSlackEnterpriseID      = "slack_enterprise_id"
	FieldCalendarUpdateChannel  = "slack_calendar_update_channel"
	FieldNewStarterChannel      = "slack_new_starter_channel"
	FieldPersonActivatedChannel = "slack_person_activated_channel"
)

// integrationFields lists every per-integration field a purge must remove.
var integrationFields = []string{
	FieldWorkniceAPIKey,
	FieldSlackAccessToken,
	FieldSlackTeamID,
	FieldSlackBotUserID,
	FieldSlackEnterpriseID,
	FieldCalendarUpdateChannel,
	FieldNewStarterChannel,
	FieldPersonActivatedChannel,
}

// slackConnectionFields are the fields written by a Slack installation.
var slackConnectionFields = []string{
	FieldSlackAccessToken,
	FieldSlackTeamID,
	FieldSlackBotUserID,
	FieldSlackEnterpriseID,
}

func SessionCodeKey(code string) string {
	return fmt.Sprintf("session_code:%s:integration_id", code)
}

func SessionTokenKey(token string) string {
	return fmt.Sprintf("session_token:%s:integration_id", token)
}

func SlackTeamKey(teamID string) string {
	return fmt.Sprintf("slack_team:%s:integration_id", teamID)
}

func IntegrationKey(integrationID, field string) string {
	return fmt.Sprintf("worknice_integration:%s:%s", integrationID, field)
}

// SlackConnectionKeys returns the keys holding integrationID's Slack installation.
func SlackConnectionKeys(integrationID string) []string {
	return ectolinq.Map(slackConnectionFields, func(field string) string {
		return IntegrationKey(integrationID, field)
	})
}

// IntegrationKeys returns every key held for integrationID, excluding the
// reverse team mapping, which is keyed by team id.
func IntegrationKeys(integrationID string) []string {
	return ectolinq.Map(integrationFields, func(field string) string {
		return IntegrationKey(integrationID, field)
	})
}

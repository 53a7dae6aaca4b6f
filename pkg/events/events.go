// Package events publishes integration lifecycle events for downstream
// consumers such as the digest and alert formatters.
package events

import (
	"context"
	"time"
)

// Type names an event.
type Type string

const (
	TypeIntegrationActivated Type = "integration.activated"
	TypeIntegrationPurged    Type = "integration.purged"
	TypeSlashCommandReceived Type = "slash_command.received"
)

// Event is the JSON message written to the lifecycle topic.
type Event struct {
	Type          Type      `json:"type"`
	IntegrationID string    `json:"integration_id"`
	SlackTeamID   string    `json:"slack_team_id,omitempty"`
	Command       *Command  `json:"command,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	TraceID       string    `json:"trace_id,omitempty"`
}

// Command carries a slash command invocation.
type Command struct {
	Name        string `json:"name"`
	Text        string `json:"text"`
	UserID      string `json:"user_id"`
	ResponseURL string `json:"response_url"`
}

// Publisher publishes lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, evt *Event) error
	Close() error
}

// NoopPublisher drops every event. Used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, *Event) error { return nil }

func (NoopPublisher) Close() error { return nil }

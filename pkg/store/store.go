// Package store is the namespaced, TTL-aware key-value layer every piece of
// bridging state lives in.
package store

import (
	"context"
	"time"
)

// SetOptions controls how a value is written.
type SetOptions struct {
	// TTL expires the key after the given duration. Zero keeps it forever.
	TTL time.Duration
}

// WithTTL is shorthand for SetOptions{TTL: ttl}.
func WithTTL(ttl time.Duration) SetOptions {
	return SetOptions{TTL: ttl}
}

// CredentialStore is the contract shared by the Redis and in-memory backends.
//
// Reads of absent keys fail with a NotFoundError. A backend that cannot reach
// its server fails with a StoreUnavailableError and never retries.
type CredentialStore interface {
	GetString(ctx context.Context, key string) (string, error)
	SetString(ctx context.Context, key, value string, opts SetOptions) error
	// GetAndDeleteString reads and removes key in one atomic operation, so at
	// most one caller ever observes the value.
	GetAndDeleteString(ctx context.Context, key string) (string, error)
	DeleteKeys(ctx context.Context, keys ...string) error

	AddMember(ctx context.Context, set, member string) error
	RemoveMember(ctx context.Context, set, member string) error
	Members(ctx context.Context, set string) ([]string, error)

	Ping(ctx context.Context) error
}

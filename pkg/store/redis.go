package store

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	apperrors "github.com/WorkniceHR/slack/pkg/errors"
	"github.com/WorkniceHR/slack/pkg/metrics"
	"github.com/WorkniceHR/slack/pkg/redis"
	"github.com/WorkniceHR/slack/pkg/tracing"
)

// RedisStore implements CredentialStore on top of Redis.
type RedisStore struct {
	client *redis.Client
	logger ectologger.Logger
}

// NewRedisStore creates a store over an already connected client.
func NewRedisStore(client *redis.Client, logger ectologger.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

func (s *RedisStore) GetString(ctx context.Context, key string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "RedisStore.GetString")
	defer span.End()

	value, err := s.client.Get(ctx, key)
	return s.result(ctx, "get", key, value, err)
}

func (s *RedisStore) SetString(ctx context.Context, key, value string, opts SetOptions) error {
	ctx, span := tracing.StartSpan(ctx, "RedisStore.SetString")
	defer span.End()

	if err := s.client.Set(ctx, key, value, opts.TTL); err != nil {
		return s.unavailable(ctx, "set", key, err)
	}
	metrics.StoreOperationsTotal.WithLabelValues("set", "ok").Inc()
	return nil
}

func (s *RedisStore) GetAndDeleteString(ctx context.Context, key string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "RedisStore.GetAndDeleteString")
	defer span.End()

	value, err := s.client.GetDel(ctx, key)
	return s.result(ctx, "getdel", key, value, err)
}

func (s *RedisStore) DeleteKeys(ctx context.Context, keys ...string) error {
	ctx, span := tracing.StartSpan(ctx, "RedisStore.DeleteKeys")
	defer span.End()

	if err := s.client.Del(ctx, keys...); err != nil {
		return s.unavailable(ctx, "del", fmt.Sprint(keys), err)
	}
	metrics.StoreOperationsTotal.WithLabelValues("del", "ok").Inc()
	return nil
}

func (s *RedisStore) AddMember(ctx context.Context, set, member string) error {
	if err := s.client.SAdd(ctx, set, member); err != nil {
		return s.unavailable(ctx, "sadd", set, err)
	}
	metrics.StoreOperationsTotal.WithLabelValues("sadd", "ok").Inc()
	return nil
}

func (s *RedisStore) RemoveMember(ctx context.Context, set, member string) error {
	if err := s.client.SRem(ctx, set, member); err != nil {
		return s.unavailable(ctx, "srem", set, err)
	}
	metrics.StoreOperationsTotal.WithLabelValues("srem", "ok").Inc()
	return nil
}

func (s *RedisStore) Members(ctx context.Context, set string) ([]string, error) {
	members, err := s.client.SMembers(ctx, set)
	if err != nil {
		return nil, s.unavailable(ctx, "smembers", set, err)
	}
	metrics.StoreOperationsTotal.WithLabelValues("smembers", "ok").Inc()
	return members, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx); err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}
	return nil
}

func (s *RedisStore) result(ctx context.Context, op, key, value string, err error) (string, error) {
	if err == nil {
		metrics.StoreOperationsTotal.WithLabelValues(op, "ok").Inc()
		return value, nil
	}
	if redis.IsNil(err) {
		metrics.StoreOperationsTotal.WithLabelValues(op, "miss").Inc()
		return "", apperrors.Newf(apperrors.KindNotFound, "key %s not found", key)
	}
	return "", s.unavailable(ctx, op, key, err)
}

func (s *RedisStore) unavailable(ctx context.Context, op, key string, err error) error {
	metrics.StoreOperationsTotal.WithLabelValues(op, "error").Inc()
	s.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
		"operation": op,
		"key":       key,
	}).Error("Credential store operation failed")
	return apperrors.NewStoreUnavailableError(err)
}

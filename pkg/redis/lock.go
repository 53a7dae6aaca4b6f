package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotAcquired means another holder owns the job lock.
var ErrLockNotAcquired = errors.New("lock not acquired")

// unlock removes KEYS[1] only while it still carries our owner token, so a
// lock that expired and was taken by another replica is left alone.
var unlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker serializes scheduled jobs across replicas with SET NX PX locks.
type Locker struct {
	client *Client
	prefix string
}

// NewLocker creates a Locker whose keys start with prefix ("lock:" when empty).
func NewLocker(client *Client, prefix string) *Locker {
	if prefix == "" {
		prefix = "lock:"
	}
	return &Locker{client: client, prefix: prefix}
}

// WithLock runs fn while holding key. It does not wait: a held key returns
// ErrLockNotAcquired immediately. The lock expires after ttl even if fn is
// still running.
func (l *Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	key = l.prefix + key
	owner := uuid.NewString()
	log := l.client.logger.WithContext(ctx).WithField("lock", key)

	acquired, err := l.client.rdb.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return err
	}
	if !acquired {
		return ErrLockNotAcquired
	}
	log.Debug("Lock acquired")

	defer func() {
		released, err := unlock.Run(context.WithoutCancel(ctx), l.client.rdb, []string{key}, owner).Int()
		switch {
		case err != nil:
			log.WithError(err).Warn("Failed to release lock")
		case released == 0:
			log.Warn("Lock expired before the job finished")
		default:
			log.Debug("Lock released")
		}
	}()

	return fn(ctx)
}

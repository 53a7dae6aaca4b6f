package store

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/WorkniceHR/slack/pkg/redis"
)

const (
	DriverRedis  = "redis"
	DriverMemory = "memory"

	// DependencyName is the startup name of the store dependency.
	DependencyName = "store"
)

// Dependency opens the configured backend during startup.
type Dependency struct {
	driver string
	redis  redis.Config
	logger ectologger.Logger

	client *redis.Client
	store  CredentialStore
}

// NewDependency creates a startup dependency for driver.
func NewDependency(driver string, cfg redis.Config, logger ectologger.Logger) *Dependency {
	return &Dependency{driver: driver, redis: cfg, logger: logger}
}

func (d *Dependency) GetName() string {
	return DependencyName
}

func (d *Dependency) DependsOn() []string {
	return nil
}

func (d *Dependency) Start(ctx context.Context) error {
	switch d.driver {
	case DriverMemory:
		d.logger.WithContext(ctx).Warn("Using in-memory credential store; state is lost on restart")
		d.store = NewMemoryStore()
		return nil
	case DriverRedis, "":
		client, err := redis.NewClient(d.redis, d.logger)
		if err != nil {
			return err
		}
		d.client = client
		d.store = NewRedisStore(client, d.logger)
		return nil
	default:
		return fmt.Errorf("unknown store driver %q", d.driver)
	}
}

func (d *Dependency) Stop(context.Context) error {
	if d.client == nil {
		return nil
	}
	return d.client.Close()
}

// Store returns the opened store. Only valid after Start.
func (d *Dependency) Store() CredentialStore {
	return d.store
}

// Client returns the Redis client, or nil for the memory driver.
func (d *Dependency) Client() *redis.Client {
	return d.client
}

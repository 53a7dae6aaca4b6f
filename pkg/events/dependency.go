package events

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
)

// DependencyName is the startup name of the events dependency.
const DependencyName = "events"

// Dependency checks broker reachability during startup and owns the
// publisher. With no brokers configured events are dropped.
type Dependency struct {
	cfg       KafkaConfig
	logger    ectologger.Logger
	publisher Publisher
}

func NewDependency(cfg KafkaConfig, logger ectologger.Logger) *Dependency {
	return &Dependency{cfg: cfg, logger: logger, publisher: NoopPublisher{}}
}

func (d *Dependency) GetName() string {
	return DependencyName
}

func (d *Dependency) DependsOn() []string {
	return nil
}

func (d *Dependency) Start(ctx context.Context) error {
	if len(d.cfg.Brokers) == 0 {
		d.logger.WithContext(ctx).Info("No Kafka brokers configured; lifecycle events are disabled")
		return nil
	}

	conn, err := kafka.DialContext(ctx, "tcp", d.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("failed to reach Kafka broker %s: %w", d.cfg.Brokers[0], err)
	}
	_ = conn.Close()

	d.publisher = NewKafkaPublisher(d.cfg, d.logger)
	d.logger.WithContext(ctx).Infof("Publishing lifecycle events to Kafka topic %s", d.cfg.Topic)
	return nil
}

func (d *Dependency) Stop(context.Context) error {
	return d.publisher.Close()
}

// Publisher returns the active publisher.
func (d *Dependency) Publisher() Publisher {
	return d.publisher
}

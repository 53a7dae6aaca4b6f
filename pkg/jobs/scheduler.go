package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/WorkniceHR/slack/pkg/redis"
)

// ErrSchedulerAlreadyRunning is returned when trying to start an already running scheduler
var ErrSchedulerAlreadyRunning = errors.New("scheduler already running")

// Scheduler runs one job on a fixed interval.
type Scheduler struct {
	runner   *Runner
	job      string
	task     Task
	interval time.Duration
	logger   ectologger.Logger

	stopCh   chan struct{}
	stoppedC chan struct{}
	running  bool
	mu       sync.Mutex
}

// NewScheduler creates a scheduler for job.
func NewScheduler(runner *Runner, job string, task Task, interval time.Duration, logger ectologger.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		job:      job,
		task:     task,
		interval: interval,
		logger:   logger,
	}
}

// GetName implements startup.Dependency.
func (s *Scheduler) GetName() string {
	return "scheduler:" + s.job
}

// DependsOn implements startup.Dependency.
func (s *Scheduler) DependsOn() []string {
	return []string{"store"}
}

// Start begins the poll loop. The first run happens immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrSchedulerAlreadyRunning
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.stoppedC = make(chan struct{})

	s.logger.WithContext(ctx).Infof("Starting %s scheduler: interval=%s", s.job, s.interval)
	go s.loop(context.WithoutCancel(ctx), s.stopCh, s.stoppedC)
	return nil
}

// Stop ends the poll loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stopCh, stoppedC := s.stopCh, s.stoppedC
	s.mu.Unlock()

	close(stopCh)
	select {
	case <-stoppedC:
		s.logger.WithContext(ctx).Infof("%s scheduler stopped", s.job)
		return nil
	case <-ctx.Done():
		s.logger.WithContext(ctx).Warnf("%s scheduler shutdown timed out", s.job)
		return ctx.Err()
	}
}

func (s *Scheduler) loop(ctx context.Context, stopCh <-chan struct{}, stoppedC chan<- struct{}) {
	defer close(stoppedC)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	_, err := s.runner.Run(ctx, s.job, s.task)
	switch {
	case err == nil:
	case errors.Is(err, redis.ErrLockNotAcquired):
		s.logger.WithContext(ctx).Debugf("Job %s already running elsewhere, skipping", s.job)
	default:
		s.logger.WithContext(ctx).WithError(err).Errorf("Job %s failed", s.job)
	}
}

// Package jobs fans scheduled work out across every registered integration.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"golang.org/x/sync/errgroup"

	appcontext "github.com/WorkniceHR/slack/pkg/context"
	apperrors "github.com/WorkniceHR/slack/pkg/errors"
	"github.com/WorkniceHR/slack/pkg/metrics"
	"github.com/WorkniceHR/slack/pkg/tracing"
)

const (
	// DefaultConcurrency bounds how many integrations are processed at once
	DefaultConcurrency = 8

	// DefaultLockTTL is how long a job run holds its lock
	DefaultLockTTL = 5 * time.Minute

	// LockKeyPrefix is the prefix for job run locks
	LockKeyPrefix = "jobs:"
)

// Task processes one integration.
type Task func(ctx context.Context, integrationID string) error

// IntegrationLister enumerates registered integrations.
type IntegrationLister interface {
	ListIntegrationIDs(ctx context.Context) ([]string, error)
}

// Locker serialises job runs across replicas. *redis.Locker satisfies it.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// Config holds runner configuration
type Config struct {
	Concurrency int
	LockTTL     time.Duration
}

// Summary reports the outcome of one run.
type Summary struct {
	Job       string        `json:"job"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Archived  int           `json:"archived"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Runner runs a Task for every integration. One integration's failure,
// including an archival purge or a panic, never stops the others.
type Runner struct {
	lister IntegrationLister
	locker Locker
	config Config
	logger ectologger.Logger
}

// NewRunner creates a runner. locker may be nil when only one replica runs.
func NewRunner(lister IntegrationLister, locker Locker, config Config, logger ectologger.Logger) *Runner {
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultLockTTL
	}
	return &Runner{
		lister: lister,
		locker: locker,
		config: config,
		logger: logger,
	}
}

// Run executes task for every integration under the job's lock. It returns
// redis.ErrLockNotAcquired when another replica is already running job.
func (r *Runner) Run(ctx context.Context, job string, task Task) (Summary, error) {
	ctx, span := tracing.StartSpan(ctx, "Jobs.Run")
	defer span.End()

	var summary Summary
	run := func(ctx context.Context) error {
		var err error
		summary, err = r.run(ctx, job, task)
		return err
	}

	if r.locker == nil {
		return summary, run(ctx)
	}
	err := r.locker.WithLock(ctx, LockKeyPrefix+job, r.config.LockTTL, run)
	return summary, err
}

func (r *Runner) run(ctx context.Context, job string, task Task) (Summary, error) {
	start := time.Now()
	summary := Summary{Job: job}

	ids, err := r.lister.ListIntegrationIDs(ctx)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("Failed to list integrations for job %s", job)
		return summary, err
	}
	summary.Total = len(ids)
	r.logger.WithContext(ctx).Debugf("%d integrations found for job %s", len(ids), job)

	var mu sync.Mutex
	record := func(result string) {
		metrics.JobIntegrationsTotal.WithLabelValues(job, result).Inc()
		mu.Lock()
		defer mu.Unlock()
		switch result {
		case "ok":
			summary.Succeeded++
		case "archived":
			summary.Archived++
		default:
			summary.Failed++
		}
	}

	// a plain Group: no shared cancellation between integrations
	var g errgroup.Group
	g.SetLimit(r.config.Concurrency)
	for _, id := range ids {
		g.Go(func() error {
			ictx := appcontext.SetIntegrationID(ctx, id)
			err := r.runOne(ictx, task, id)
			switch {
			case err == nil:
				record("ok")
			case apperrors.IsArchived(err):
				r.logger.WithContext(ictx).Infof("Integration %s archived during job %s", id, job)
				record("archived")
			default:
				r.logger.WithContext(ictx).WithError(err).Warnf("Job %s failed for integration %s", job, id)
				record("failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	summary.Duration = time.Since(start)
	r.logger.WithContext(ctx).Infof("Job %s completed: total=%d succeeded=%d archived=%d failed=%d duration=%s",
		job, summary.Total, summary.Succeeded, summary.Archived, summary.Failed, summary.Duration)
	return summary, nil
}

func (r *Runner) runOne(ctx context.Context, task Task, integrationID string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "Jobs.runOne")
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic processing integration %s: %v", integrationID, p)
		}
	}()
	return task(ctx, integrationID)
}

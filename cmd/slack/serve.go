package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/WorkniceHR/slack/config"
	"github.com/WorkniceHR/slack/internal/server"
	"github.com/WorkniceHR/slack/pkg/events"
	"github.com/WorkniceHR/slack/pkg/jobs"
	"github.com/WorkniceHR/slack/pkg/startup"
	"github.com/WorkniceHR/slack/pkg/store"
	"github.com/WorkniceHR/slack/pkg/tracing"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the webhook, browser and Slack endpoints",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger, sync, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer sync()

		shutdownTracing, err := tracing.Setup(ctx, cfg.AppName, cfg.OTLP())
		if err != nil {
			return err
		}

		st := startup.New(logger, cfg.StartupMaxAttempts)
		storeDep := store.NewDependency(cfg.StoreDriver, cfg.Redis(), logger)
		eventsDep := events.NewDependency(cfg.Kafka(), logger)
		st.AddDependency(storeDep)
		st.AddDependency(eventsDep)
		if err := st.Start(ctx); err != nil {
			return err
		}

		app := server.NewApp(cfg, storeDep.Store(), jobLocker(storeDep), eventsDep.Publisher(), logger)
		st.AddDependency(server.NewDependency(app, cfg, logger))
		if cfg.SweepEnabled {
			st.AddDependency(jobs.NewScheduler(app.Runner, jobs.LifecycleSweep, app.Tasks[jobs.LifecycleSweep], cfg.SweepInterval, logger))
		}
		if err := st.Start(ctx); err != nil {
			_ = st.Stop(context.Background())
			return err
		}

		<-ctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = st.Stop(shutdownCtx)
		if tracingErr := shutdownTracing(shutdownCtx); tracingErr != nil {
			logger.WithError(tracingErr).Warn("Failed to flush traces")
		}
		return err
	},
}

package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/WorkniceHR/slack/config"
	"github.com/WorkniceHR/slack/internal/server"
	"github.com/WorkniceHR/slack/pkg/events"
	"github.com/WorkniceHR/slack/pkg/jobs"
	"github.com/WorkniceHR/slack/pkg/startup"
	"github.com/WorkniceHR/slack/pkg/store"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Check every integration with Worknice once and purge archived ones",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger, sync, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer sync()

		st := startup.New(logger, cfg.StartupMaxAttempts)
		storeDep := store.NewDependency(cfg.StoreDriver, cfg.Redis(), logger)
		eventsDep := events.NewDependency(cfg.Kafka(), logger)
		st.AddDependency(storeDep)
		st.AddDependency(eventsDep)
		if err := st.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = st.Stop(context.WithoutCancel(ctx)) }()

		app := server.NewApp(cfg, storeDep.Store(), jobLocker(storeDep), eventsDep.Publisher(), logger)
		summary, err := app.Runner.Run(ctx, jobs.LifecycleSweep, app.Tasks[jobs.LifecycleSweep])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

// Command slack runs the Worknice Slack bridge.
package main

import (
	"fmt"
	"os"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/WorkniceHR/slack/config"
	"github.com/WorkniceHR/slack/pkg/jobs"
	"github.com/WorkniceHR/slack/pkg/redis"
	"github.com/WorkniceHR/slack/pkg/store"
)

var rootCmd = &cobra.Command{
	Use:          "slack",
	Short:        "Connects Worknice integrations to Slack workspaces",
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(serveCmd, sweepCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (ectologger.Logger, func(), error) {
	zapConfig := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapConfig = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	zapConfig.Level = level

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, nil, err
	}
	zapLogger = zapLogger.With(zap.String("app", cfg.AppName), zap.String("version", cfg.Version))

	return zapadapter.NewZapEctoLogger(zapLogger, nil), func() { _ = zapLogger.Sync() }, nil
}

// jobLocker returns a Redis lock when the store is Redis backed.
func jobLocker(d *store.Dependency) jobs.Locker {
	if client := d.Client(); client != nil {
		return redis.NewLocker(client, "")
	}
	return nil
}

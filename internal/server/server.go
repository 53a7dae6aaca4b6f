// Package server assembles the HTTP surface and the components behind it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/WorkniceHR/slack/config"
	"github.com/WorkniceHR/slack/internal/handlers"
	"github.com/WorkniceHR/slack/pkg/credentials"
	"github.com/WorkniceHR/slack/pkg/events"
	"github.com/WorkniceHR/slack/pkg/health"
	"github.com/WorkniceHR/slack/pkg/httpclient"
	"github.com/WorkniceHR/slack/pkg/jobs"
	"github.com/WorkniceHR/slack/pkg/lifecycle"
	"github.com/WorkniceHR/slack/pkg/middleware"
	"github.com/WorkniceHR/slack/pkg/session"
	"github.com/WorkniceHR/slack/pkg/signature"
	"github.com/WorkniceHR/slack/pkg/slack"
	"github.com/WorkniceHR/slack/pkg/store"
	"github.com/WorkniceHR/slack/pkg/worknice"
)

// DependencyName is the startup name of the HTTP listener.
const DependencyName = "http"

// App holds the wired components. It is safe to serve from many goroutines.
type App struct {
	Echo      *echo.Echo
	Repo      *credentials.Repository
	Lifecycle *lifecycle.Lifecycle
	Exchange  *session.Exchange
	Runner    *jobs.Runner
	Health    *health.Checker
	Tasks     map[string]jobs.Task
}

// NewApp wires every component over the given store and publisher. locker
// may be nil when jobs need no cross-replica lock.
func NewApp(cfg *config.Config, s store.CredentialStore, locker jobs.Locker, publisher events.Publisher, logger ectologger.Logger) *App {
	repo := credentials.NewRepository(s, logger)

	slackHTTP := httpclient.DefaultConfig("slack")
	slackHTTP.Timeout = cfg.UpstreamTimeout
	slackClient := slack.NewClient(slack.Config{
		ClientID:     cfg.SlackClientID,
		ClientSecret: cfg.SlackClientSecret,
		RedirectURI:  cfg.SlackRedirectURI,
		AuthorizeURL: cfg.SlackAuthorizeURL,
		APIBaseURL:   cfg.SlackAPIBaseURL,
	}, httpclient.NewClient(slackHTTP, logger), logger)

	workniceHTTP := httpclient.DefaultConfig("worknice")
	workniceHTTP.Timeout = cfg.UpstreamTimeout
	host := worknice.NewClient(cfg.WorkniceBaseURL, httpclient.NewClient(workniceHTTP, logger), logger)

	lc := lifecycle.New(repo, host, publisher, logger)
	exchange := session.NewExchange(cfg.BaseURL, repo, slackClient, lc, host, publisher, logger)
	verifier := signature.NewVerifier(cfg.SlackSigningSecret, signature.WithMaxSkew(cfg.SlackSignatureMaxSkew))

	runner := jobs.NewRunner(repo, locker, jobs.Config{Concurrency: cfg.SweepConcurrency}, logger)
	tasks := map[string]jobs.Task{
		jobs.LifecycleSweep: jobs.SweepTask(lc),
	}

	checker := health.NewChecker(cfg.Version)
	checker.AddCheck("store", s.Ping)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	handlers.NewWebhookHandler(exchange, repo, logger).RegisterRoutes(e)
	handlers.NewAuthHandler(exchange, cfg.SecureCookies()).RegisterRoutes(e)
	handlers.NewConfigHandler(exchange, lc, repo, slackClient, cfg.SecureCookies(), logger).RegisterRoutes(e)
	handlers.NewIntegrationSyncHandler(lc, repo, slackClient, logger).RegisterRoutes(e)
	handlers.NewSlashCommandHandler(verifier, repo, lc, publisher, logger).RegisterRoutes(e)
	handlers.NewJobHandler(runner, tasks, cfg.CronSecret).RegisterRoutes(e)

	return &App{
		Echo:      e,
		Repo:      repo,
		Lifecycle: lc,
		Exchange:  exchange,
		Runner:    runner,
		Health:    checker,
		Tasks:     tasks,
	}
}

// Dependency serves an App as a startup dependency.
type Dependency struct {
	app    *App
	cfg    *config.Config
	logger ectologger.Logger

	srv  *http.Server
	done chan struct{}
}

// NewDependency creates the HTTP listener for app.
func NewDependency(app *App, cfg *config.Config, logger ectologger.Logger) *Dependency {
	return &Dependency{app: app, cfg: cfg, logger: logger}
}

func (d *Dependency) GetName() string {
	return DependencyName
}

func (d *Dependency) DependsOn() []string {
	return []string{store.DependencyName, events.DependencyName}
}

// Start binds the port and serves in the background. Bind errors are
// returned so startup can retry them.
func (d *Dependency) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", d.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	d.srv = &http.Server{
		Handler:      d.app.Echo,
		ReadTimeout:  time.Duration(d.cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(d.cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(d.cfg.HttpServerIdleTimeoutSeconds) * time.Second,
	}
	d.done = make(chan struct{})

	go func() {
		defer close(d.done)
		if err := d.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.WithContext(ctx).WithError(err).Error("HTTP server stopped unexpectedly")
		}
	}()

	d.app.Health.SetReady(true)
	d.logger.WithContext(ctx).Infof("Listening on %s", addr)
	return nil
}

// Stop marks the service unready and drains in-flight requests.
func (d *Dependency) Stop(ctx context.Context) error {
	d.app.Health.SetReady(false)
	if d.srv == nil {
		return nil
	}
	err := d.srv.Shutdown(ctx)
	<-d.done
	return err
}

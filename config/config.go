package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "github.com/WorkniceHR/slack/pkg/errors"
	"github.com/WorkniceHR/slack/pkg/events"
	"github.com/WorkniceHR/slack/pkg/redis"
	"github.com/WorkniceHR/slack/pkg/tracing/exporters"
)

// Config is read from the environment. The mapstructure tag names the
// variable; defaults live in setDefaults.
type Config struct {
	AppName                       string `mapstructure:"APP_NAME"`
	Version                       string `mapstructure:"APP_VERSION"`
	Port                          int    `mapstructure:"PORT" validate:"gt=0"`
	LogLevel                      string `mapstructure:"LOG_LEVEL"`
	PrettyLogs                    bool   `mapstructure:"PRETTY_LOGS"`
	HttpServerWriteTimeoutSeconds int    `mapstructure:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS"`
	HttpServerReadTimeoutSeconds  int    `mapstructure:"HTTP_SERVER_READ_TIMEOUT_SECONDS"`
	HttpServerIdleTimeoutSeconds  int    `mapstructure:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS"`
	StartupMaxAttempts            int    `mapstructure:"STARTUP_MAX_ATTEMPTS"`

	// Public origin of this service, e.g. https://slack.worknice.com
	BaseURL string `mapstructure:"BASE_URL" validate:"required,url"`
	// Shared secret external cron jobs present as a bearer token
	CronSecret string `mapstructure:"CRON_SECRET" validate:"required"`

	// Slack app credentials
	SlackClientID      string `mapstructure:"SLACK_CLIENT_ID" validate:"required"`
	SlackClientSecret  string `mapstructure:"SLACK_CLIENT_SECRET" validate:"required"`
	SlackSigningSecret string `mapstructure:"SLACK_SIGNING_SECRET" validate:"required"`
	// Defaults to <BASE_URL>/auth-callback
	SlackRedirectURI string `mapstructure:"SLACK_REDIRECT_URI"`
	// Oldest Slack request timestamp accepted
	SlackSignatureMaxSkew time.Duration `mapstructure:"SLACK_SIGNATURE_MAX_SKEW" validate:"gt=0"`
	// Overrides for tests and proxies
	SlackAuthorizeURL string `mapstructure:"SLACK_AUTHORIZE_URL"`
	SlackAPIBaseURL   string `mapstructure:"SLACK_API_BASE_URL"`

	// Worknice host platform
	WorkniceBaseURL string `mapstructure:"WORKNICE_BASE_URL"`
	// Timeout for calls to Slack and Worknice
	UpstreamTimeout time.Duration `mapstructure:"UPSTREAM_TIMEOUT"`

	// Credential store driver: redis or memory
	StoreDriver   string        `mapstructure:"STORE_DRIVER" validate:"oneof=redis memory"`
	RedisHost     string        `mapstructure:"REDIS_HOST" validate:"required_if=StoreDriver redis"`
	RedisPort     int           `mapstructure:"REDIS_PORT"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	RedisTimeout  time.Duration `mapstructure:"REDIS_DIAL_TIMEOUT"`

	// Kafka brokers (comma-separated). Empty disables lifecycle events.
	KafkaBrokers        string `mapstructure:"KAFKA_BROKERS"`
	KafkaLifecycleTopic string `mapstructure:"KAFKA_LIFECYCLE_TOPIC"`

	// Lifecycle sweep
	SweepEnabled     bool          `mapstructure:"SWEEP_ENABLED"`
	SweepInterval    time.Duration `mapstructure:"SWEEP_INTERVAL"`
	SweepConcurrency int           `mapstructure:"SWEEP_CONCURRENCY"`

	// Tracing settings
	OTLPEnabled  bool   `mapstructure:"OTLP_ENABLED"`
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	OTLPProtocol string `mapstructure:"OTLP_PROTOCOL" validate:"oneof=grpc http"`
	OTLPInsecure bool   `mapstructure:"OTLP_INSECURE"`
}

var validate = newValidator()

// newValidator reports field errors under their environment variable names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return field.Tag.Get("mapstructure")
	})
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "slack-bridge")
	v.SetDefault("APP_VERSION", "dev")
	v.SetDefault("PORT", 3000)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PRETTY_LOGS", false)
	v.SetDefault("HTTP_SERVER_WRITE_TIMEOUT_SECONDS", 30)
	v.SetDefault("HTTP_SERVER_READ_TIMEOUT_SECONDS", 10)
	v.SetDefault("HTTP_SERVER_IDLE_TIMEOUT_SECONDS", 60)
	v.SetDefault("STARTUP_MAX_ATTEMPTS", 5)

	v.SetDefault("SLACK_SIGNATURE_MAX_SKEW", 5*time.Minute)
	v.SetDefault("SLACK_AUTHORIZE_URL", "https://slack.com/oauth/v2/authorize")
	v.SetDefault("SLACK_API_BASE_URL", "https://slack.com/api")
	v.SetDefault("WORKNICE_BASE_URL", "https://app.worknice.com")
	v.SetDefault("UPSTREAM_TIMEOUT", 15*time.Second)

	v.SetDefault("STORE_DRIVER", "redis")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)

	v.SetDefault("KAFKA_LIFECYCLE_TOPIC", events.DefaultTopic)

	v.SetDefault("SWEEP_ENABLED", false)
	v.SetDefault("SWEEP_INTERVAL", time.Hour)
	v.SetDefault("SWEEP_CONCURRENCY", 8)

	v.SetDefault("OTLP_ENABLED", false)
	v.SetDefault("OTLP_ENDPOINT", "localhost:4317")
	v.SetDefault("OTLP_PROTOCOL", "grpc")
	v.SetDefault("OTLP_INSECURE", true)
}

// envOnly lists the variables without a default. Viper only unmarshals keys
// it knows about, so these are bound explicitly.
var envOnly = []string{
	"BASE_URL",
	"CRON_SECRET",
	"SLACK_CLIENT_ID",
	"SLACK_CLIENT_SECRET",
	"SLACK_SIGNING_SECRET",
	"SLACK_REDIRECT_URI",
	"REDIS_HOST",
	"REDIS_PASSWORD",
	"KAFKA_BROKERS",
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()
	return LoadFrom(viper.New())
}

// LoadFrom fills a Config from v and the environment.
func LoadFrom(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	for _, key := range envOnly {
		if err := v.BindEnv(key); err != nil {
			return nil, apperrors.NewConfigurationError(fmt.Sprintf("bind %s: %v", key, err))
		}
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("invalid configuration: %v", err))
	}

	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.SlackRedirectURI == "" && cfg.BaseURL != "" {
		cfg.SlackRedirectURI = cfg.BaseURL + "/auth-callback"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every missing or malformed setting at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewConfigurationError(err.Error())
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describe(fe))
	}
	return apperrors.NewConfigurationError(strings.Join(problems, "\n"))
}

func describe(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("missing `%s` environment variable", name)
	case "url":
		return fmt.Sprintf("%s must be an absolute URL, got %q", name, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s, got %q", name, strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be positive", name)
	default:
		return fmt.Sprintf("%s failed rule %s", name, fe.Tag())
	}
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
}

func (c *Config) Redis() redis.Config {
	return redis.Config{
		Host:        c.RedisHost,
		Port:        c.RedisPort,
		Password:    c.RedisPassword,
		DB:          c.RedisDB,
		DialTimeout: c.RedisTimeout,
	}
}

func (c *Config) Kafka() events.KafkaConfig {
	return events.KafkaConfig{
		Brokers: events.ParseBrokers(c.KafkaBrokers),
		Topic:   c.KafkaLifecycleTopic,
	}
}

// OTLP returns the exporter config, or nil when export is disabled.
func (c *Config) OTLP() *exporters.OTLPConfig {
	if !c.OTLPEnabled {
		return nil
	}
	return &exporters.OTLPConfig{
		Endpoint: c.OTLPEndpoint,
		Protocol: c.OTLPProtocol,
		Insecure: c.OTLPInsecure,
	}
}

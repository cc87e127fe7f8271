// Package config defines the process configuration for the LeanPulse
// notification engine. Configuration is loaded once at startup and is
// immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> *_FILE secret files (Lowest)
//
// Any missing required value or invalid format fails startup.
package config

import (
	"time"

	"leanpulse/internal/types"
)

// SecretString is an alias for types.SecretString.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"leanpulse"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Email         EmailConfig
	Webhook       WebhookConfig
	Dispatch      DispatchConfig
	Scheduler     SchedulerConfig
	Observability ObservabilityConfig

	// Injected via ldflags, not Env.
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	EnableGzip     bool          `envconfig:"ENABLE_GZIP" default:"true"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10" validate:"min=1"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2" validate:"min=0"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// EventQueueURL is optional. When empty the API runs event triggers inline.
	EventQueueURL string `envconfig:"SQS_EVENTS" validate:"omitempty,url"`

	// LocalStack support (empty in prod).
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// EmailConfig holds email provider credentials. An empty API key activates
// the logged-only fallback.
type EmailConfig struct {
	SendGridAPIKey SecretString  `envconfig:"SENDGRID_API_KEY"`
	SendGridURL    string        `envconfig:"SENDGRID_BASE_URL" default:"https://api.sendgrid.com" validate:"url"`
	FromAddress    string        `envconfig:"EMAIL_FROM_ADDRESS" default:"notifications@leanpulse.io" validate:"email"`
	FromName       string        `envconfig:"EMAIL_FROM_NAME" default:"LeanPulse"`
	Timeout        time.Duration `envconfig:"EMAIL_TIMEOUT" default:"10s"`
}

// WebhookConfig holds chat webhook settings. Empty URLs activate the
// logged-only fallback for that channel.
type WebhookConfig struct {
	SlackURL  SecretString  `envconfig:"SLACK_WEBHOOK_URL"`
	TeamsURL  SecretString  `envconfig:"TEAMS_WEBHOOK_URL"`
	UserAgent string        `envconfig:"WEBHOOK_USER_AGENT" default:"LeanPulse-Webhook/1.0"`
	Timeout   time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"10s"`

	// BlockPrivateNetworks refuses webhook connections to loopback, link-local
	// and private ranges. Disable only for local mocks.
	BlockPrivateNetworks bool `envconfig:"WEBHOOK_BLOCK_PRIVATE" default:"true"`
}

// DispatchConfig tunes the dispatcher fan-out.
type DispatchConfig struct {
	Concurrency int `envconfig:"DISPATCH_CONCURRENCY" default:"8" validate:"min=1,max=64"`
}

// SchedulerConfig holds cron tick settings.
type SchedulerConfig struct {
	// FacilityTimezone is the IANA zone in which timeOfDay values are read.
	FacilityTimezone string        `envconfig:"FACILITY_TIMEZONE" default:"UTC" validate:"timezone"`
	PoolSize         int           `envconfig:"SCHEDULER_POOL_SIZE" default:"4" validate:"min=1,max=64"`
	TickInterval     time.Duration `envconfig:"SCHEDULER_TICK_INTERVAL" default:"1m"`
	LockTTL          time.Duration `envconfig:"SCHEDULER_LOCK_TTL" default:"15m"`

	// RedisURL selects the Redis tick lock instead of the Postgres one.
	RedisURL SecretString `envconfig:"REDIS_URL"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"LeanPulse"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSecretResolution indicates a *_FILE secret could not be read.
	ErrSecretResolution ConfigErrorType = "SECRET_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates an environment value could not be parsed into its
	// target type.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)

// Location loads the facility time zone. The zone is validated at load time,
// so an error here means the Config was built by hand.
func (c SchedulerConfig) Location() (*time.Location, error) {
	if c.FacilityTimezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.FacilityTimezone)
}

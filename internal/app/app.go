// Package app assembles the runtime dependencies shared by the cmd/*
// entrypoints: the logger, the AWS config, the channel senders and the
// dispatcher.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"leanpulse/internal/config"
	httpcore "leanpulse/internal/core"
	"leanpulse/internal/external"
	"leanpulse/internal/notifications/core"
	"leanpulse/internal/notifications/email"
	"leanpulse/internal/notifications/webhook"
	"leanpulse/internal/security"
	"leanpulse/internal/types"
)

// NewLogger creates a JSON slog.Logger for the given level name. Unknown
// names fall back to info.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// LoadAWSConfig loads the default AWS credential chain for the configured
// region. A non-empty EndpointURL points every client at LocalStack.
func LoadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	if cfg.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.EndpointURL)
	}
	return awsCfg, nil
}

// Channels holds one sender per channel and the upstream clients behind
// them.
type Channels struct {
	Senders []types.ChannelSender
	Clients []*external.BaseClient
}

// HealthProbes returns one advisory breaker probe per upstream client.
func (c *Channels) HealthProbes() []httpcore.HealthProbe {
	probes := make([]httpcore.HealthProbe, 0, len(c.Clients))
	for _, client := range c.Clients {
		probes = append(probes, httpcore.BreakerProbe{Upstream: client})
	}
	return probes
}

// NewChannels builds one ChannelSender per channel. Channels without
// credentials still get a sender; it runs in logged-only mode and has no
// upstream client.
func NewChannels(cfg *config.Config, logger types.Logger) (*Channels, error) {
	renderer, err := email.NewRenderer(cfg.Email.FromName)
	if err != nil {
		return nil, fmt.Errorf("creating email renderer: %w", err)
	}

	ch := &Channels{}
	emailCfg := email.EmailChannelConfig{
		Renderer:    renderer,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		Logger:      logger.With("channel", string(types.ChannelEmail)),
	}
	if cfg.Email.SendGridAPIKey.IsSet() {
		base := external.NewBaseClient(
			&http.Client{Timeout: cfg.Email.Timeout},
			"sendgrid",
			external.DefaultBreakerSettings(),
			cfg.Webhook.UserAgent,
		)
		ch.Clients = append(ch.Clients, base)
		emailCfg.Provider = external.NewSendGridClient(base, external.SendGridClientConfig{
			APIKey:  cfg.Email.SendGridAPIKey.Unmask(),
			BaseURL: cfg.Email.SendGridURL,
		})
	}

	webhookClient := func(name string, url types.SecretString) *external.BaseClient {
		if !url.IsSet() {
			return nil
		}
		httpClient := &http.Client{Timeout: cfg.Webhook.Timeout}
		if cfg.Webhook.BlockPrivateNetworks {
			httpClient = security.NewSafeHTTPClient(cfg.Webhook.Timeout)
		}
		base := external.NewBaseClient(
			httpClient,
			name,
			external.DefaultBreakerSettings(),
			cfg.Webhook.UserAgent,
		)
		ch.Clients = append(ch.Clients, base)
		return base
	}

	ch.Senders = []types.ChannelSender{
		email.NewEmailChannel(emailCfg),
		webhook.NewSlackChannel(cfg.Webhook.SlackURL, webhookClient("slack-webhook", cfg.Webhook.SlackURL), logger.With("channel", string(types.ChannelSlack))),
		webhook.NewTeamsChannel(cfg.Webhook.TeamsURL, webhookClient("teams-webhook", cfg.Webhook.TeamsURL), logger.With("channel", string(types.ChannelTeams))),
	}
	return ch, nil
}

// Senders is NewChannels for callers that do not report upstream health.
func Senders(cfg *config.Config, logger types.Logger) ([]types.ChannelSender, error) {
	ch, err := NewChannels(cfg, logger)
	if err != nil {
		return nil, err
	}
	return ch.Senders, nil
}

// Metrics returns CloudWatch metrics when enabled, otherwise nil.
func Metrics(cfg *config.Config, awsCfg aws.Config, logger types.Logger) *core.CloudWatchMetrics {
	if !cfg.Observability.EnableMetrics {
		return nil
	}
	return core.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, logger)
}

// NewDispatcher wires the dispatcher over store with the configured
// concurrency. A nil metrics sink keeps the no-op default.
func NewDispatcher(cfg *config.Config, store core.LogStore, senders []types.ChannelSender, metrics *core.CloudWatchMetrics, logger types.Logger) *core.Dispatcher {
	opts := []core.DispatcherOption{core.WithConcurrency(cfg.Dispatch.Concurrency)}
	if metrics != nil {
		opts = append(opts, core.WithMetrics(metrics))
	}
	return core.NewDispatcher(store, senders, logger, opts...)
}

package app

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leanpulse/internal/config"
	"leanpulse/internal/types"
)

func testConfig() *config.Config {
	return &config.Config{
		Email: config.EmailConfig{
			SendGridURL: "https://api.sendgrid.com",
			FromAddress: "notifications@leanpulse.io",
			FromName:    "LeanPulse",
			Timeout:     time.Second,
		},
		Webhook:  config.WebhookConfig{UserAgent: "test", Timeout: time.Second},
		Dispatch: config.DispatchConfig{Concurrency: 2},
	}
}

func TestSenders_OnePerChannel(t *testing.T) {
	senders, err := Senders(testConfig(), types.NopLogger{})
	require.NoError(t, err)

	var got []types.ChannelType
	for _, s := range senders {
		got = append(got, s.Channel())
	}
	assert.Equal(t, []types.ChannelType{types.ChannelEmail, types.ChannelSlack, types.ChannelTeams}, got)
}

func TestSenders_LoggedOnlyWithoutCredentials(t *testing.T) {
	senders, err := Senders(testConfig(), types.NopLogger{})
	require.NoError(t, err)

	for _, s := range senders {
		res := s.Send(t.Context(), types.OutboundMessage{Recipient: "ops@example.com", Subject: "s", Content: "c"})
		assert.True(t, res.Success, "channel %s", s.Channel())
		assert.Contains(t, res.Message, "not configured")
	}
}

func TestNewChannels_ClientsOnlyForConfiguredUpstreams(t *testing.T) {
	ch, err := NewChannels(testConfig(), types.NopLogger{})
	require.NoError(t, err)
	assert.Empty(t, ch.Clients)
	assert.Empty(t, ch.HealthProbes())

	cfg := testConfig()
	cfg.Email.SendGridAPIKey = "SG.key"
	cfg.Webhook.SlackURL = "https://hooks.slack.com/services/T/B/X"
	ch, err = NewChannels(cfg, types.NopLogger{})
	require.NoError(t, err)

	var names []string
	for _, p := range ch.HealthProbes() {
		names = append(names, p.Name())
		assert.NoError(t, p.Check(t.Context()))
	}
	assert.Equal(t, []string{"upstream:sendgrid", "upstream:slack-webhook"}, names)
}

func TestMetrics_DisabledReturnsNil(t *testing.T) {
	cfg := testConfig()
	assert.Nil(t, Metrics(cfg, aws.Config{}, types.NopLogger{}))
}

func TestNewLogger_Levels(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error", "bogus"} {
		assert.NotNil(t, NewLogger(lvl), lvl)
	}
}

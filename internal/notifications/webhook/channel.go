// Package webhook delivers notifications to Slack and Microsoft Teams
// incoming webhooks. A channel without a configured URL runs in logged-only
// mode.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"leanpulse/internal/external"
	"leanpulse/internal/types"
)

var _ types.ChannelSender = (*WebhookChannel)(nil)

// WebhookChannel posts formatted messages to a single webhook URL.
type WebhookChannel struct {
	channel   types.ChannelType
	url       types.SecretString
	formatter PlatformFormatter
	client    *external.BaseClient
	logger    types.Logger
}

// NewSlackChannel returns the Slack sender. client may be nil when url is unset.
func NewSlackChannel(url types.SecretString, client *external.BaseClient, logger types.Logger) *WebhookChannel {
	return newWebhookChannel(types.ChannelSlack, url, &SlackFormatter{}, client, logger)
}

// NewTeamsChannel returns the Teams sender. client may be nil when url is unset.
func NewTeamsChannel(url types.SecretString, client *external.BaseClient, logger types.Logger) *WebhookChannel {
	return newWebhookChannel(types.ChannelTeams, url, &TeamsFormatter{}, client, logger)
}

func newWebhookChannel(ch types.ChannelType, url types.SecretString, f PlatformFormatter, client *external.BaseClient, logger types.Logger) *WebhookChannel {
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &WebhookChannel{
		channel:   ch,
		url:       url,
		formatter: f,
		client:    client,
		logger:    logger.With("platform", string(f.Platform())),
	}
}

func (w *WebhookChannel) Channel() types.ChannelType {
	return w.channel
}

// Send posts one message. Non-2xx statuses, soft failures and transport or
// breaker errors are reported as a failed SendResult.
func (w *WebhookChannel) Send(ctx context.Context, msg types.OutboundMessage) types.SendResult {
	name := platformName(w.formatter.Platform())

	if !w.url.IsSet() || w.client == nil {
		w.logger.Info("webhook not configured, message logged only",
			"recipient", msg.Recipient, "subject", msg.Subject)
		return types.SendResult{Success: true, Message: name + " webhook not configured; message logged"}
	}

	payload, err := w.formatter.Format(msg)
	if err != nil {
		return types.SendResult{Success: false, Message: fmt.Sprintf("%s payload formatting failed: %v", name, err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url.Unmask(), bytes.NewReader(payload))
	if err != nil {
		return types.SendResult{Success: false, Message: fmt.Sprintf("%s request build failed: %v", name, err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Error("webhook delivery failed", "recipient", msg.Recipient, "error", err.Error())
		return types.SendResult{Success: false, Message: fmt.Sprintf("%s delivery failed: %v", name, err)}
	}
	defer resp.Body.Close()

	body := external.ReadBodySnippet(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		w.logger.Warn("webhook rejected message", "recipient", msg.Recipient, "status", resp.StatusCode)
		return types.SendResult{Success: false, Message: fmt.Sprintf("%s returned %d: %s", name, resp.StatusCode, body)}
	}

	if err := w.formatter.ValidateResponse(resp.StatusCode, []byte(body)); err != nil {
		w.logger.Warn("webhook soft failure", "recipient", msg.Recipient, "error", err.Error())
		return types.SendResult{Success: false, Message: err.Error()}
	}

	return types.SendResult{Success: true, Message: fmt.Sprintf("%s accepted message (%d)", name, resp.StatusCode)}
}

func platformName(p Platform) string {
	switch p {
	case PlatformSlack:
		return "Slack"
	case PlatformTeams:
		return "Teams"
	}
	return string(p)
}

package email

import (
	"context"
	"errors"
	"fmt"

	"leanpulse/internal/external"
	"leanpulse/internal/types"
)

var _ types.ChannelSender = (*EmailChannel)(nil)

// EmailChannel implements types.ChannelSender for email.
type EmailChannel struct {
	provider    external.EmailProvider
	renderer    *Renderer
	fromAddress string
	fromName    string
	logger      types.Logger
}

// EmailChannelConfig holds the dependencies needed to create an EmailChannel.
// A nil Provider selects logged-only mode. A nil Renderer sends text only.
type EmailChannelConfig struct {
	Provider    external.EmailProvider
	Renderer    *Renderer
	FromAddress string
	FromName    string
	Logger      types.Logger
}

func NewEmailChannel(cfg EmailChannelConfig) *EmailChannel {
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &EmailChannel{
		provider:    cfg.Provider,
		renderer:    cfg.Renderer,
		fromAddress: cfg.FromAddress,
		fromName:    cfg.FromName,
		logger:      logger,
	}
}

func (e *EmailChannel) Channel() types.ChannelType {
	return types.ChannelEmail
}

// Send delivers one email. Provider errors become a failed SendResult.
func (e *EmailChannel) Send(ctx context.Context, msg types.OutboundMessage) types.SendResult {
	dest := RedactEmail(msg.Recipient)

	if e.provider == nil {
		e.logger.Info("email provider not configured, message logged only",
			"dest", dest, "subject", msg.Subject)
		return types.SendResult{Success: true, Message: "email provider not configured; message logged"}
	}

	input := external.EmailInput{
		To:          msg.Recipient,
		FromAddress: e.fromAddress,
		FromName:    e.fromName,
		Subject:     msg.Subject,
		Text:        msg.Content,
	}
	if ref, ok := msg.Metadata["log_id"].(string); ok {
		input.ReferenceID = ref
	}
	if e.renderer != nil {
		html, err := e.renderer.RenderHTML(msg.Subject, msg.Content)
		if err != nil {
			e.logger.Warn("html rendering failed, sending text only", "dest", dest, "error", err.Error())
		} else {
			input.HTML = html
		}
	}

	msgID, err := e.provider.Send(ctx, input)
	if err != nil {
		if IsBlocklistError(err) {
			e.logger.Warn("recipient blocked by provider", "dest", dest)
		} else {
			e.logger.Error("email delivery failed", "dest", dest, "error", err.Error())
		}
		return types.SendResult{Success: false, Message: failureMessage(err)}
	}

	e.logger.Info("email delivered", "dest", dest, "provider_message_id", msgID)
	if msgID == "" {
		return types.SendResult{Success: true, Message: "email accepted by provider"}
	}
	return types.SendResult{Success: true, Message: "email accepted by provider: " + msgID}
}

func failureMessage(err error) string {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return fmt.Sprintf("%s: %s", appErr.Code, appErr.Message)
	}
	return err.Error()
}

package webhook

import "leanpulse/internal/types"

// Platform identifies a chat webhook platform.
type Platform string

const (
	PlatformSlack Platform = "slack"
	PlatformTeams Platform = "teams"
)

// PlatformFormatter transforms an outbound message into platform JSON.
type PlatformFormatter interface {
	Format(msg types.OutboundMessage) ([]byte, error)

	Platform() Platform

	// ValidateResponse interprets a 2xx body to catch soft failures
	// (e.g. Slack returning HTTP 200 with "ok": false).
	ValidateResponse(statusCode int, body []byte) error
}

// --- Slack Payload Types (Block Kit) ---

// SlackPayload is the top-level structure for Slack Block Kit messages.
type SlackPayload struct {
	Channel string       `json:"channel,omitempty"` // Overrides the webhook's default channel
	Text    string       `json:"text"`              // Fallback text for push notifications
	Blocks  []SlackBlock `json:"blocks"`
}

// SlackBlock represents a single block in a Slack Block Kit message.
type SlackBlock struct {
	Type     string       `json:"type"` // "section", "header", "context"
	Text     *SlackText   `json:"text,omitempty"`
	Fields   []*SlackText `json:"fields,omitempty"`
	Elements []*SlackText `json:"elements,omitempty"`
}

// SlackText is a text composition object for Slack Block Kit.
type SlackText struct {
	Type string `json:"type"` // "plain_text", "mrkdwn"
	Text string `json:"text"`
}

// --- Microsoft Teams Payload Types (Adaptive Cards) ---

// TeamsPayload is the top-level structure for Teams workflow messages.
type TeamsPayload struct {
	Type        string            `json:"type"` // "message"
	Attachments []TeamsAttachment `json:"attachments"`
}

// TeamsAttachment wraps an Adaptive Card for Teams delivery.
type TeamsAttachment struct {
	ContentType string       `json:"contentType"`
	Content     AdaptiveCard `json:"content"`
}

// AdaptiveCard is the Microsoft Adaptive Card structure.
type AdaptiveCard struct {
	Type    string         `json:"type"`    // "AdaptiveCard"
	Version string         `json:"version"` // "1.4"
	Body    []AdaptiveItem `json:"body"`
}

// AdaptiveItem represents an element in the Adaptive Card body.
type AdaptiveItem struct {
	Type   string `json:"type"` // "TextBlock", "FactSet"
	Text   string `json:"text,omitempty"`
	Size   string `json:"size,omitempty"`
	Weight string `json:"weight,omitempty"`
	Color  string `json:"color,omitempty"`
	Wrap   bool   `json:"wrap,omitempty"`
	Facts  []Fact `json:"facts,omitempty"`
}

// Fact is a key-value pair in a Teams FactSet.
type Fact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

package webhook

import (
	"encoding/json"
	"fmt"

	"leanpulse/internal/external"
	"leanpulse/internal/types"
)

// TeamsFormatter formats messages as an Adaptive Card for Teams workflow
// webhooks. Teams has no per-message channel override, so the recipient is
// shown as a fact.
type TeamsFormatter struct{}

func (f *TeamsFormatter) Platform() Platform {
	return PlatformTeams
}

func (f *TeamsFormatter) Format(msg types.OutboundMessage) ([]byte, error) {
	header := AdaptiveItem{
		Type:   "TextBlock",
		Text:   titleOf(msg.Subject),
		Size:   "Large",
		Weight: "Bolder",
		Wrap:   true,
	}
	if isUrgent(msg.Subject) {
		header.Color = "Attention"
	}
	body := []AdaptiveItem{header}

	var facts []Fact
	if msg.Recipient != "" {
		facts = append(facts, Fact{Title: "Channel", Value: msg.Recipient})
	}
	for _, fc := range metadataFacts(msg.Metadata) {
		facts = append(facts, Fact{Title: fc.label, Value: fc.value})
	}
	if len(facts) > 0 {
		body = append(body, AdaptiveItem{Type: "FactSet", Facts: facts})
	}

	if msg.Content != "" {
		body = append(body, AdaptiveItem{Type: "TextBlock", Text: msg.Content, Wrap: true})
	}

	payload := TeamsPayload{
		Type: "message",
		Attachments: []TeamsAttachment{
			{
				ContentType: "application/vnd.microsoft.card.adaptive",
				Content: AdaptiveCard{
					Type:    "AdaptiveCard",
					Version: "1.4",
					Body:    body,
				},
			},
		},
	}
	return json.Marshal(payload)
}

// ValidateResponse accepts any 2xx. Teams workflows respond 202 Accepted.
func (f *TeamsFormatter) ValidateResponse(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	return fmt.Errorf("teams: unexpected status %d: %s", statusCode, external.TruncateBody(string(body)))
}

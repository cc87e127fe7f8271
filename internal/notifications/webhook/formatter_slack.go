package webhook

import (
	"encoding/json"
	"fmt"
	"strings"

	"leanpulse/internal/types"
)

// Slack limits a section text object to 3000 characters.
const maxSlackSectionText = 3000

// SlackFormatter formats messages as Slack Block Kit JSON. The recipient is
// sent as the channel override; an empty recipient uses the webhook default.
type SlackFormatter struct{}

func (f *SlackFormatter) Platform() Platform {
	return PlatformSlack
}

func (f *SlackFormatter) Format(msg types.OutboundMessage) ([]byte, error) {
	title := titleOf(msg.Subject)

	payload := SlackPayload{
		Channel: msg.Recipient,
		Text:    title,
		Blocks: []SlackBlock{
			{Type: "header", Text: &SlackText{Type: "plain_text", Text: title}},
		},
	}

	var fields []*SlackText
	for _, fc := range metadataFacts(msg.Metadata) {
		fields = append(fields, &SlackText{Type: "mrkdwn", Text: fmt.Sprintf("*%s*\n%s", fc.label, fc.value)})
	}
	if len(fields) > 0 {
		payload.Blocks = append(payload.Blocks, SlackBlock{Type: "section", Fields: fields})
	}

	for _, chunk := range chunkText(msg.Content, maxSlackSectionText) {
		payload.Blocks = append(payload.Blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{Type: "mrkdwn", Text: chunk},
		})
	}

	payload.Blocks = append(payload.Blocks, SlackBlock{
		Type:     "context",
		Elements: []*SlackText{{Type: "mrkdwn", Text: "LeanPulse Notifications"}},
	})

	return json.Marshal(payload)
}

// ValidateResponse checks for Slack's soft failure pattern: a 2xx status whose
// body is a JSON "ok": false or a known plain-text error code.
func (f *SlackFormatter) ValidateResponse(statusCode int, body []byte) error {
	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("slack: unexpected status %d", statusCode)
	}

	bodyStr := strings.TrimSpace(string(body))
	if bodyStr == "" || bodyStr == "ok" {
		return nil
	}

	var resp struct {
		OK    *bool  `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.OK != nil && !*resp.OK {
		if resp.Error == "" {
			resp.Error = "unknown error"
		}
		return fmt.Errorf("slack: API error: %s", resp.Error)
	}

	knownErrors := []string{
		"no_text",
		"channel_not_found",
		"channel_is_archived",
		"invalid_payload",
		"too_many_attachments",
		"no_service",
		"action_prohibited",
	}
	for _, known := range knownErrors {
		if bodyStr == known {
			return fmt.Errorf("slack: API error: %s", bodyStr)
		}
	}
	return nil
}

// chunkText splits s on line boundaries into pieces of at most limit bytes.
// A single line longer than limit is split hard.
func chunkText(s string, limit int) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, line := range strings.Split(s, "\n") {
		for len(line) > limit {
			flush()
			out = append(out, line[:limit])
			line = line[limit:]
		}
		if cur.Len()+len(line)+1 > limit {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}
	flush()
	return out
}

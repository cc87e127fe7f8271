package webhook

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leanpulse/internal/types"
)

func TestSlackFormatter_ValidateResponse(t *testing.T) {
	f := &SlackFormatter{}
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"plain ok", 200, "ok", false},
		{"empty", 204, "", false},
		{"json ok", 200, `{"ok":true}`, false},
		{"json not ok", 200, `{"ok":false}`, true},
		{"known error", 200, "invalid_payload", true},
		{"unexpected status", 500, "ok", true},
		{"unknown text", 200, "accepted", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.ValidateResponse(tt.status, []byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSlackFormatter_DefaultTitleAndChunking(t *testing.T) {
	f := &SlackFormatter{}
	long := strings.Repeat("line of report output\n", 300)

	raw, err := f.Format(types.OutboundMessage{Content: long})
	require.NoError(t, err)

	var p SlackPayload
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Empty(t, p.Channel)
	assert.Equal(t, defaultTitle, p.Text)

	sections := 0
	for _, b := range p.Blocks {
		if b.Type == "section" && b.Text != nil {
			sections++
			assert.LessOrEqual(t, len(b.Text.Text), maxSlackSectionText)
		}
	}
	assert.Greater(t, sections, 1)
}

func TestChunkText(t *testing.T) {
	assert.Nil(t, chunkText("   ", 10))
	assert.Equal(t, []string{"ab\ncd"}, chunkText("ab\ncd", 10))
	assert.Equal(t, []string{"abcde", "fgh"}, chunkText("abcdefgh", 5))
}

func TestMetadataFacts_OrderAndSkips(t *testing.T) {
	facts := metadataFacts(map[string]any{
		"planned_end":  "2026-03-02 17:00",
		"project_name": "Line 3",
		"log_id":       "nlog_1",
		"severity":     "",
	})
	require.Len(t, facts, 2)
	assert.Equal(t, "Project", facts[0].label)
	assert.Equal(t, "Due", facts[1].label)
}

func TestTeamsFormatter_NonUrgentHasNoColor(t *testing.T) {
	raw, err := (&TeamsFormatter{}).Format(types.OutboundMessage{Subject: "Weekly report", Content: "body"})
	require.NoError(t, err)

	var p TeamsPayload
	require.NoError(t, json.Unmarshal(raw, &p))
	body := p.Attachments[0].Content.Body
	assert.Empty(t, body[0].Color)
	assert.Equal(t, "Weekly report", body[0].Text)
	assert.Equal(t, "body", body[len(body)-1].Text)
}

package external

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"leanpulse/internal/types"
)

func newTestSendGridClient(t *testing.T, serverURL string) *SendGridClient {
	t.Helper()
	base := NewBaseClient(&http.Client{Timeout: 5 * time.Second}, "test-sendgrid",
		DefaultBreakerSettings(), "LeanPulse-Test/1.0")
	return NewSendGridClient(base, SendGridClientConfig{APIKey: "SG.test_api_key", BaseURL: serverURL + "/"})
}

func TestSendGridSend_Success(t *testing.T) {
	var (
		payload sendGridMailPayload
		auth    string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v3/mail/send" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Header().Set("X-Message-Id", "msg-abc")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := newTestSendGridClient(t, server.URL)
	id, err := client.Send(context.Background(), EmailInput{
		To:          "ops@example.com",
		FromAddress: "notifications@leanpulse.io",
		FromName:    "LeanPulse",
		Subject:     "Weekly report",
		Text:        "body",
		ReferenceID: "nlog_1",
	})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if id != "msg-abc" {
		t.Errorf("message id = %q", id)
	}
	if auth != "Bearer SG.test_api_key" {
		t.Errorf("Authorization = %q", auth)
	}
	if len(payload.Personalizations) != 1 || payload.Personalizations[0].To[0].Email != "ops@example.com" {
		t.Errorf("personalizations = %+v", payload.Personalizations)
	}
	if len(payload.Content) != 1 || payload.Content[0].Type != "text/plain" {
		t.Errorf("content = %+v", payload.Content)
	}
	if payload.CustomArgs["reference_id"] != "nlog_1" {
		t.Errorf("custom_args = %v", payload.CustomArgs)
	}
}

func TestSendGridSend_AnyTwoXXIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if _, err := newTestSendGridClient(t, server.URL).Send(context.Background(), EmailInput{To: "a@example.com"}); err != nil {
		t.Fatalf("expected success on 200, got %v", err)
	}
}

func TestSendGridSend_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode types.ErrorCode
		wantMsg  string
	}{
		{"blocked", http.StatusForbidden, `{"errors":[{"message":"recipient suppressed"}]}`, types.ErrCodeEmailBlocked, "recipient suppressed"},
		{"bad request", http.StatusBadRequest, `{"errors":[{"message":"invalid from","field":"from"}]}`, types.ErrCodeUpstreamEmailProvider, "invalid from"},
		{"plain body", http.StatusUnauthorized, `nope`, types.ErrCodeUpstreamEmailProvider, "(401): nope"},
		{"server error", http.StatusInternalServerError, `down`, types.ErrCodeUpstreamUnavailable, "500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestSendGridClient(t, server.URL).Send(context.Background(), EmailInput{To: "a@example.com", Text: "x"})
			var appErr *types.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected AppError, got %v", err)
			}
			if appErr.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", appErr.Code, tt.wantCode)
			}
			if !strings.Contains(appErr.Message, tt.wantMsg) {
				t.Errorf("Message = %q, want to contain %q", appErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestBuildMailPayload_HTMLAfterText(t *testing.T) {
	p := buildMailPayload(EmailInput{To: "a@example.com", Text: "t", HTML: "<p>t</p>"})
	if len(p.Content) != 2 || p.Content[0].Type != "text/plain" || p.Content[1].Type != "text/html" {
		t.Errorf("content order = %+v", p.Content)
	}
	if p.CustomArgs != nil {
		t.Errorf("custom_args should be omitted without a reference id")
	}
}

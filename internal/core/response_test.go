package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"leanpulse/internal/types"
)

func TestData_WrapsEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Data(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusCreated, map[string]int{"n": 1})

	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"data":{"n":1}}` {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestJSON_MarshalFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, map[string]any{"ch": make(chan int)})

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestError_AppErrorStatusMapping(t *testing.T) {
	tests := []struct {
		code   types.ErrorCode
		status int
	}{
		{types.ErrCodeValidationMissingField, http.StatusBadRequest},
		{types.ErrCodeNotFoundScheduledReport, http.StatusNotFound},
		{types.ErrCodeConflictInactive, http.StatusConflict},
		{types.ErrCodeUpstreamWebhook, http.StatusBadGateway},
		{types.ErrCodeDeliveryFailed, http.StatusInternalServerError},
		{types.ErrCodeInternalPersistence, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			rec := httptest.NewRecorder()
			err := fmt.Errorf("handler: %w", types.NewAppError(tt.code, "msg", errors.New("secret cause")))
			Error(rec, httptest.NewRequest(http.MethodGet, "/", nil), err)

			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
			if strings.Contains(rec.Body.String(), "secret cause") {
				t.Error("wrapped error must not be exposed")
			}
		})
	}
}

func TestError_DetailsAndRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(types.WithRequestID(req.Context(), "req-7"))
	rec := httptest.NewRecorder()

	Error(rec, req, types.NewAppErrorWithDetails(types.ErrCodeDeliveryFailed, "all recipients failed", nil,
		map[string]any{"result": map[string]bool{"success": false}}))

	var resp APIErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.Error.Code != "delivery_failed" || resp.Error.RequestID != "req-7" {
		t.Errorf("unexpected error detail %+v", resp.Error)
	}
	if _, ok := resp.Error.Details["result"]; !ok {
		t.Error("expected details.result")
	}
}

func TestError_GenericError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: connection reset"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection reset") {
		t.Error("generic error text must not be exposed")
	}
}

type decodeTarget struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"valid", `{"name":"a","count":2}`, ""},
		{"unknown field", `{"name":"a","extra":1}`, "unknown field"},
		{"syntax", `{"name":`, "malformed JSON"},
		{"empty", ``, "must not be empty"},
		{"type mismatch", `{"count":"two"}`, "invalid value for field"},
		{"multiple values", `{"name":"a"}{"name":"b"}`, "single JSON object"},
		{"too large", `{"name":"` + strings.Repeat("x", maxRequestBodySize) + `"}`, "must not exceed 1MB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst decodeTarget
			err := DecodeJSON(httptest.NewRecorder(), req, &dst)

			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if dst.Name != "a" || dst.Count != 2 {
					t.Errorf("unexpected decode result %+v", dst)
				}
				return
			}

			var appErr *types.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected *types.AppError, got %T: %v", err, err)
			}
			if appErr.Code != errCodeValidationInvalidJSON {
				t.Errorf("expected code %q, got %q", errCodeValidationInvalidJSON, appErr.Code)
			}
			if !strings.Contains(appErr.Message, tt.wantMsg) {
				t.Errorf("expected message containing %q, got %q", tt.wantMsg, appErr.Message)
			}
		})
	}
}

func TestDecodeJSON_FieldDetails(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"unknown field", `{"name":"a","channnel":"email"}`, "channnel"},
		{"type mismatch", `{"count":"two"}`, "count"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst decodeTarget
			err := DecodeJSON(httptest.NewRecorder(), req, &dst)

			var appErr *types.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected *types.AppError, got %v", err)
			}
			if appErr.Details["field"] != tt.field {
				t.Errorf("details.field = %v, want %q", appErr.Details["field"], tt.field)
			}
		})
	}
}

type recordingLogger struct {
	types.NopLogger
	errors []string
}

func (l *recordingLogger) Error(msg string, args ...any) {
	l.errors = append(l.errors, fmt.Sprint(append([]any{msg}, args...)...))
}

func TestError_LogsServerFailuresOnly(t *testing.T) {
	logger := &recordingLogger{}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(types.WithLogger(req.Context(), logger))

	Error(httptest.NewRecorder(), req, types.NewAppError(types.ErrCodeValidationInvalidEmail, "bad email", nil))
	if len(logger.errors) != 0 {
		t.Fatalf("client error was logged: %v", logger.errors)
	}

	Error(httptest.NewRecorder(), req, types.NewAppError(types.ErrCodeInternalPersistence, "log write failed", errors.New("disk full")))
	if len(logger.errors) != 1 || !strings.Contains(logger.errors[0], "disk full") {
		t.Errorf("expected the cause to be logged, got %v", logger.errors)
	}
}

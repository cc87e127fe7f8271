package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leanpulse/internal/types"
)

type mockDispatcher struct {
	dispatchFn func(ctx context.Context, n types.Notification) (*types.BatchResult, error)
	last       types.Notification
}

func (m *mockDispatcher) Dispatch(ctx context.Context, n types.Notification) (*types.BatchResult, error) {
	m.last = n
	if m.dispatchFn != nil {
		return m.dispatchFn(ctx, n)
	}
	res := &types.BatchResult{Success: true}
	for _, r := range n.Recipients {
		res.PerRecipient = append(res.PerRecipient, types.RecipientResult{Recipient: r.Address, Success: true, LogID: "log-" + r.Address})
	}
	return res, nil
}

type mockLogQuerier struct {
	queryFn func(ctx context.Context, f types.LogFilter) ([]*types.NotificationLogEntry, error)
	last    types.LogFilter
}

func (m *mockLogQuerier) Query(ctx context.Context, f types.LogFilter) ([]*types.NotificationLogEntry, error) {
	m.last = f
	if m.queryFn != nil {
		return m.queryFn(ctx, f)
	}
	return nil, nil
}

func newTestNotificationHandler() (*NotificationHandler, *mockDispatcher, *mockLogQuerier) {
	d := &mockDispatcher{}
	q := &mockLogQuerier{}
	return NewNotificationHandler(d, q, testValidator(), testLogger()), d, q
}

func dispatchBody() map[string]any {
	return map[string]any{
		"type":    "manual",
		"channel": "email",
		"recipients": []map[string]any{
			{"address": "a@example.com"},
			{"address": "b@example.com", "user_id": "u2"},
		},
		"subject": "Hello",
		"content": "Line one",
	}
}

func TestNotificationHandler_Dispatch_AllSucceeded(t *testing.T) {
	h, d, _ := newTestNotificationHandler()

	rec := httptest.NewRecorder()
	h.Dispatch(rec, jsonRequest(t, http.MethodPost, "/v1/notifications/dispatch", dispatchBody()))

	require.Equal(t, http.StatusOK, rec.Code)
	var res types.BatchResult
	decodeData(t, rec, &res)
	assert.True(t, res.Success)
	assert.Len(t, res.PerRecipient, 2)

	assert.Equal(t, types.ChannelEmail, d.last.Channel)
	require.Len(t, d.last.Recipients, 2)
	require.NotNil(t, d.last.Recipients[1].UserID)
	assert.Equal(t, "u2", *d.last.Recipients[1].UserID)
}

func TestNotificationHandler_Dispatch_PartialReturns207(t *testing.T) {
	h, d, _ := newTestNotificationHandler()
	d.dispatchFn = func(_ context.Context, n types.Notification) (*types.BatchResult, error) {
		return &types.BatchResult{Success: false, PerRecipient: []types.RecipientResult{
			{Recipient: "a@example.com", Success: true},
			{Recipient: "b@example.com", Success: false, Message: "email_blocked: bounced"},
		}}, nil
	}

	rec := httptest.NewRecorder()
	h.Dispatch(rec, jsonRequest(t, http.MethodPost, "/v1/notifications/dispatch", dispatchBody()))

	assert.Equal(t, http.StatusMultiStatus, rec.Code)
}

func TestNotificationHandler_Dispatch_NoneDeliveredReturns500(t *testing.T) {
	h, d, _ := newTestNotificationHandler()
	d.dispatchFn = func(_ context.Context, n types.Notification) (*types.BatchResult, error) {
		return &types.BatchResult{Success: false, PerRecipient: []types.RecipientResult{
			{Recipient: "a@example.com", Success: false},
		}}, nil
	}

	rec := httptest.NewRecorder()
	h.Dispatch(rec, jsonRequest(t, http.MethodPost, "/v1/notifications/dispatch", dispatchBody()))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeDeliveryFailed), detail.Code)
	assert.Contains(t, detail.Details, "result")
}

func TestNotificationHandler_Dispatch_PersistenceFailure(t *testing.T) {
	h, d, _ := newTestNotificationHandler()
	d.dispatchFn = func(_ context.Context, n types.Notification) (*types.BatchResult, error) {
		return &types.BatchResult{}, types.NewAppError(types.ErrCodeInternalPersistence, "no log rows written", nil)
	}

	rec := httptest.NewRecorder()
	h.Dispatch(rec, jsonRequest(t, http.MethodPost, "/v1/notifications/dispatch", dispatchBody()))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, string(types.ErrCodeInternalPersistence), decodeError(t, rec).Code)
}

func TestNotificationHandler_Dispatch_Validation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(b map[string]any)
		wantCode types.ErrorCode
	}{
		{"missing channel", func(b map[string]any) { delete(b, "channel") }, types.ErrCodeValidationMissingField},
		{"unknown channel", func(b map[string]any) { b["channel"] = "sms" }, types.ErrCodeValidationInvalidChannel},
		{"no recipients", func(b map[string]any) { b["recipients"] = []any{} }, types.ErrCodeValidationInvalidFilter},
		{"missing recipients", func(b map[string]any) { delete(b, "recipients") }, types.ErrCodeValidationMissingField},
		{"blank address", func(b map[string]any) { b["recipients"] = []map[string]any{{"address": ""}} }, types.ErrCodeValidationMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, d, _ := newTestNotificationHandler()
			body := dispatchBody()
			tt.mutate(body)

			rec := httptest.NewRecorder()
			h.Dispatch(rec, jsonRequest(t, http.MethodPost, "/v1/notifications/dispatch", body))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, string(tt.wantCode), decodeError(t, rec).Code)
			assert.Empty(t, d.last.Type, "dispatcher must not be called")
		})
	}
}

func TestNotificationHandler_Dispatch_MalformedJSON(t *testing.T) {
	h, _, _ := newTestNotificationHandler()

	rec := httptest.NewRecorder()
	h.Dispatch(rec, jsonRequest(t, http.MethodPost, "/v1/notifications/dispatch", `{"channel":`))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_invalid_json", decodeError(t, rec).Code)
}

func TestNotificationHandler_ListLogs_Filters(t *testing.T) {
	h, _, q := newTestNotificationHandler()
	sent := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	q.queryFn = func(_ context.Context, f types.LogFilter) ([]*types.NotificationLogEntry, error) {
		return []*types.NotificationLogEntry{{ID: "log-1", Channel: types.ChannelSlack, Status: types.LogStatusSent, SentAt: &sent}}, nil
	}

	req := httptest.NewRequest(http.MethodGet,
		"/v1/notifications/logs?user_id=u1&channel=slack&status=sent&type=waste_alert&recipient=%23ops&created_after=2026-05-01T00:00:00Z&limit=20", nil)
	rec := httptest.NewRecorder()
	h.ListLogs(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var entries []types.NotificationLogEntry
	decodeData(t, rec, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "log-1", entries[0].ID)

	f := q.last
	require.NotNil(t, f.UserID)
	assert.Equal(t, "u1", *f.UserID)
	assert.Equal(t, types.ChannelSlack, *f.Channel)
	assert.Equal(t, types.LogStatusSent, *f.Status)
	assert.Equal(t, "waste_alert", *f.NotificationType)
	assert.Equal(t, "#ops", *f.Recipient)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), *f.CreatedAfter)
	assert.Nil(t, f.CreatedBefore)
	assert.Equal(t, 20, f.Limit)
}

func TestNotificationHandler_ListLogs_EmptyIsArray(t *testing.T) {
	h, _, q := newTestNotificationHandler()

	rec := httptest.NewRecorder()
	h.ListLogs(rec, httptest.NewRequest(http.MethodGet, "/v1/notifications/logs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())
	assert.Equal(t, defaultLogLimit, q.last.Limit)
}

func TestNotificationHandler_ListLogs_InvalidParams(t *testing.T) {
	tests := []struct {
		query    string
		wantCode types.ErrorCode
	}{
		{"channel=fax", types.ErrCodeValidationInvalidChannel},
		{"status=queued", types.ErrCodeValidationInvalidFilter},
		{"limit=0", types.ErrCodeValidationInvalidFilter},
		{"limit=abc", types.ErrCodeValidationInvalidFilter},
		{"created_after=yesterday", types.ErrCodeValidationInvalidFilter},
		{"created_after=2026-05-02T00:00:00Z&created_before=2026-05-01T00:00:00Z", types.ErrCodeValidationInvalidWindow},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			h, _, _ := newTestNotificationHandler()
			rec := httptest.NewRecorder()
			h.ListLogs(rec, httptest.NewRequest(http.MethodGet, "/v1/notifications/logs?"+tt.query, nil))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, string(tt.wantCode), decodeError(t, rec).Code)
		})
	}
}

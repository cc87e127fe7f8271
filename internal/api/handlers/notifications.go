// Package handlers contains the HTTP handlers of the LeanPulse API. Each
// handler declares the narrow store and service interfaces it depends on and
// registers its own routes on the /v1 router.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"leanpulse/internal/core"
	"leanpulse/internal/types"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
)

// LogQuerier reads the delivery audit trail.
type LogQuerier interface {
	Query(ctx context.Context, f types.LogFilter) ([]*types.NotificationLogEntry, error)
}

// RecipientInput is one address in a dispatch request.
type RecipientInput struct {
	Address string  `json:"address" validate:"required,max=320"`
	UserID  *string `json:"user_id,omitempty"`
}

// DispatchRequest is the body of POST /v1/notifications/dispatch.
type DispatchRequest struct {
	Type       string           `json:"type" validate:"required,max=64"`
	Channel    string           `json:"channel" validate:"required,channel"`
	Recipients []RecipientInput `json:"recipients" validate:"required,min=1,max=500,dive"`
	Subject    string           `json:"subject,omitempty" validate:"max=998"`
	Content    string           `json:"content"`
	Metadata   map[string]any   `json:"metadata,omitempty"`
}

// NotificationHandler serves ad-hoc dispatch and the delivery log.
type NotificationHandler struct {
	dispatcher types.Dispatcher
	logs       LogQuerier
	validator  *core.Validator
	logger     *slog.Logger
}

func NewNotificationHandler(d types.Dispatcher, logs LogQuerier, v *core.Validator, l *slog.Logger) *NotificationHandler {
	if l == nil {
		l = slog.Default()
	}
	return &NotificationHandler{dispatcher: d, logs: logs, validator: v, logger: l}
}

func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Post("/dispatch", h.Dispatch)
		r.Get("/logs", h.ListLogs)
	})
}

// Dispatch handles POST /v1/notifications/dispatch.
//
// Status mapping: 200 when every recipient succeeded, 207 when some did, 500
// delivery_failed (with the batch in details) when none did. Persistence
// failures surface as 500 internal_persistence_failure.
func (h *NotificationHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	n := types.Notification{
		Type:     req.Type,
		Channel:  types.ChannelType(req.Channel),
		Subject:  req.Subject,
		Content:  req.Content,
		Metadata: req.Metadata,
	}
	for _, rc := range req.Recipients {
		n.Recipients = append(n.Recipients, types.Recipient{Address: rc.Address, UserID: rc.UserID})
	}

	res, err := h.dispatcher.Dispatch(r.Context(), n)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	delivered := res.SuccessCount()
	switch {
	case res.Success:
		core.Data(w, r, http.StatusOK, res)
	case delivered > 0:
		core.Data(w, r, http.StatusMultiStatus, res)
	default:
		h.logger.WarnContext(r.Context(), "dispatch delivered to no recipients",
			"type", n.Type, "channel", string(n.Channel), "recipients", len(n.Recipients))
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeDeliveryFailed,
			"notification could not be delivered to any recipient", nil,
			map[string]any{"result": res}))
	}
}

// ListLogs handles GET /v1/notifications/logs.
//
// Query parameters: user_id, channel, status, type, recipient,
// created_after, created_before (RFC 3339) and limit.
func (h *NotificationHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	f, err := parseLogFilter(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	entries, err := h.logs.Query(r.Context(), f)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if entries == nil {
		entries = []*types.NotificationLogEntry{}
	}
	core.Data(w, r, http.StatusOK, entries)
}

func parseLogFilter(r *http.Request) (types.LogFilter, error) {
	q := r.URL.Query()
	f := types.LogFilter{Limit: defaultLogLimit}

	if v := q.Get("user_id"); v != "" {
		f.UserID = &v
	}
	if v := q.Get("channel"); v != "" {
		ch := types.ChannelType(v)
		if !ch.Valid() {
			return f, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidChannel,
				"unknown channel", nil, map[string]any{"channel": v})
		}
		f.Channel = &ch
	}
	if v := q.Get("status"); v != "" {
		st := types.LogStatus(v)
		if st != types.LogStatusPending && !st.Terminal() {
			return f, invalidFilter("status must be pending, sent or failed", "status", v)
		}
		f.Status = &st
	}
	if v := q.Get("type"); v != "" {
		f.NotificationType = &v
	}
	if v := q.Get("recipient"); v != "" {
		f.Recipient = &v
	}

	var err error
	if f.CreatedAfter, err = parseTimeParam(q.Get("created_after"), "created_after"); err != nil {
		return f, err
	}
	if f.CreatedBefore, err = parseTimeParam(q.Get("created_before"), "created_before"); err != nil {
		return f, err
	}
	if f.CreatedAfter != nil && f.CreatedBefore != nil && f.CreatedBefore.Before(*f.CreatedAfter) {
		return f, types.NewAppError(types.ErrCodeValidationInvalidWindow, "created_before must not precede created_after", nil)
	}

	if v := q.Get("limit"); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil || n < 1 || n > maxLogLimit {
			return f, invalidFilter("limit must be between 1 and 1000", "limit", v)
		}
		f.Limit = n
	}
	return f, nil
}

func parseTimeParam(v, name string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, invalidFilter(name+" must be an RFC 3339 timestamp", name, v)
	}
	t = t.UTC()
	return &t, nil
}

func invalidFilter(msg, param, value string) error {
	return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidFilter, msg, nil,
		map[string]any{"param": param, "value": value})
}

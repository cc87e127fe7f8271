package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"leanpulse/internal/core"
	"leanpulse/internal/types"
)

// PreferenceStore reads and upserts notification preferences.
type PreferenceStore interface {
	Get(ctx context.Context, userID string) (*types.NotificationPreference, error)
	Upsert(ctx context.Context, p *types.NotificationPreference) error
}

// PreferenceRequest is the body of PUT /v1/preferences/{userID}. The whole
// record is replaced.
type PreferenceRequest struct {
	EmailEnabled bool `json:"email_enabled"`
	SlackEnabled bool `json:"slack_enabled"`
	TeamsEnabled bool `json:"teams_enabled"`

	EmailAddress string `json:"email_address,omitempty" validate:"omitempty,email,max=320"`
	SlackChannel string `json:"slack_channel,omitempty" validate:"max=200"`
	TeamsChannel string `json:"teams_channel,omitempty" validate:"max=200"`

	IncidentAlerts bool `json:"incident_alerts"`
	TaskReminders  bool `json:"task_reminders"`
	WeeklyReports  bool `json:"weekly_reports"`
	DailyStandups  bool `json:"daily_standups"`
}

// PreferenceHandler serves per-user notification preferences.
type PreferenceHandler struct {
	store     PreferenceStore
	validator *core.Validator
	logger    *slog.Logger
}

func NewPreferenceHandler(store PreferenceStore, v *core.Validator, l *slog.Logger) *PreferenceHandler {
	if l == nil {
		l = slog.Default()
	}
	return &PreferenceHandler{store: store, validator: v, logger: l}
}

func (h *PreferenceHandler) RegisterRoutes(r chi.Router) {
	r.Route("/preferences/{userID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Put)
	})
}

// Get handles GET /v1/preferences/{userID}.
func (h *PreferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	pref, err := h.store.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, pref)
}

// Put handles PUT /v1/preferences/{userID}.
func (h *PreferenceHandler) Put(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "userID is required", nil))
		return
	}

	var req PreferenceRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	pref := &types.NotificationPreference{
		UserID:         userID,
		EmailEnabled:   req.EmailEnabled,
		SlackEnabled:   req.SlackEnabled,
		TeamsEnabled:   req.TeamsEnabled,
		EmailAddress:   strings.TrimSpace(req.EmailAddress),
		SlackChannel:   strings.TrimSpace(req.SlackChannel),
		TeamsChannel:   strings.TrimSpace(req.TeamsChannel),
		IncidentAlerts: req.IncidentAlerts,
		TaskReminders:  req.TaskReminders,
		WeeklyReports:  req.WeeklyReports,
		DailyStandups:  req.DailyStandups,
	}
	if err := h.store.Upsert(r.Context(), pref); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "notification preference saved", "user_id", userID)
	core.Data(w, r, http.StatusOK, pref)
}

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"leanpulse/internal/core"
	"leanpulse/internal/scheduler"
	"leanpulse/internal/types"
)

const maxScheduleLimit = 500

// ScheduleStore persists scheduled reports.
type ScheduleStore interface {
	List(ctx context.Context, f types.ScheduledReportFilter) ([]*types.ScheduledReport, error)
	Create(ctx context.Context, rep *types.ScheduledReport) error
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// ReportCompiler renders report content.
type ReportCompiler interface {
	Compile(ctx context.Context, reportType types.ReportType, projectID *string, start, end time.Time) (*types.CompiledReport, error)
}

// CreateScheduleRequest is the body of POST /v1/reports/schedules.
type CreateScheduleRequest struct {
	ProjectID       *string  `json:"project_id,omitempty" validate:"omitempty,min=1"`
	ReportType      string   `json:"report_type" validate:"required,report_type"`
	Frequency       string   `json:"frequency" validate:"required,frequency"`
	DayOfWeek       *int     `json:"day_of_week,omitempty"`
	DayOfMonth      *int     `json:"day_of_month,omitempty"`
	TimeOfDay       string   `json:"time_of_day" validate:"required,hhmm"`
	EmailRecipients []string `json:"email_recipients" validate:"max=50,dive,email"`
}

// PreviewRequest is the body of POST /v1/reports/preview. The window defaults
// to the seven days ending now.
type PreviewRequest struct {
	ReportType string     `json:"report_type" validate:"required,report_type"`
	ProjectID  *string    `json:"project_id,omitempty"`
	Start      *time.Time `json:"start,omitempty"`
	End        *time.Time `json:"end,omitempty"`
}

// ReportHandler serves scheduled report management and previews.
type ReportHandler struct {
	store     ScheduleStore
	compiler  ReportCompiler
	validator *core.Validator
	logger    *slog.Logger
	loc       *time.Location
	now       func() time.Time
}

// NewReportHandler creates a ReportHandler. loc is the facility time zone in
// which time_of_day values are read.
func NewReportHandler(store ScheduleStore, compiler ReportCompiler, v *core.Validator, l *slog.Logger, loc *time.Location) *ReportHandler {
	if l == nil {
		l = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ReportHandler{
		store:     store,
		compiler:  compiler,
		validator: v,
		logger:    l,
		loc:       loc,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Post("/preview", h.Preview)
		r.Route("/schedules", func(r chi.Router) {
			r.Get("/", h.List)
			r.Post("/", h.Create)
			r.Post("/{id}/deactivate", h.Deactivate)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// List handles GET /v1/reports/schedules?active=&project_id=&limit=.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := types.ScheduledReportFilter{Limit: maxScheduleLimit}

	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			core.Error(w, r, invalidFilter("active must be true or false", "active", v))
			return
		}
		f.ActiveOnly = active
	}
	if v := q.Get("project_id"); v != "" {
		f.ProjectID = &v
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxScheduleLimit {
			core.Error(w, r, invalidFilter("limit must be between 1 and 500", "limit", v))
			return
		}
		f.Limit = n
	}

	reports, err := h.store.List(r.Context(), f)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if reports == nil {
		reports = []*types.ScheduledReport{}
	}
	core.Data(w, r, http.StatusOK, reports)
}

// Create handles POST /v1/reports/schedules. The first next_send_at is
// computed from the current time in the facility zone.
func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	rep := &types.ScheduledReport{
		ProjectID:       req.ProjectID,
		ReportType:      types.ReportType(req.ReportType),
		Frequency:       types.Frequency(req.Frequency),
		DayOfWeek:       req.DayOfWeek,
		DayOfMonth:      req.DayOfMonth,
		TimeOfDay:       req.TimeOfDay,
		EmailRecipients: normalizeRecipients(req.EmailRecipients),
		IsActive:        true,
	}
	if err := scheduler.ValidateSchedule(rep); err != nil {
		core.Error(w, r, err)
		return
	}

	next, err := scheduler.NextFire(rep, h.now(), h.loc)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	rep.NextSendAt = &next

	if err := h.store.Create(r.Context(), rep); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "scheduled report created",
		"report_id", rep.ID, "report_type", string(rep.ReportType),
		"frequency", string(rep.Frequency), "next_send_at", next)
	core.Data(w, r, http.StatusCreated, rep)
}

// Deactivate handles POST /v1/reports/schedules/{id}/deactivate.
func (h *ReportHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.Deactivate(r.Context(), id); err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, map[string]any{"id": id, "is_active": false})
}

// Delete handles DELETE /v1/reports/schedules/{id}.
func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		core.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Preview handles POST /v1/reports/preview. Nothing is sent or persisted.
func (h *ReportHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	end := h.now()
	if req.End != nil {
		end = req.End.UTC()
	}
	start := end.AddDate(0, 0, -7)
	if req.Start != nil {
		start = req.Start.UTC()
	}

	compiled, err := h.compiler.Compile(r.Context(), types.ReportType(req.ReportType), req.ProjectID, start, end)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, compiled)
}

// normalizeRecipients trims addresses and drops duplicates, keeping order.
func normalizeRecipients(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, addr := range in {
		addr = strings.TrimSpace(addr)
		key := strings.ToLower(addr)
		if _, dup := seen[key]; dup || addr == "" {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}
	return out
}

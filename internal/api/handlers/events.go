package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"leanpulse/internal/core"
	"leanpulse/internal/types"
)

// IncidentPublisher enqueues incident events for the event worker.
type IncidentPublisher interface {
	PublishIncidentCreated(ctx context.Context, ev types.IncidentEvent) (string, error)
}

// IncidentTrigger runs the incident alert trigger in-process.
type IncidentTrigger interface {
	IncidentCreated(ctx context.Context, ev types.IncidentEvent) (*types.TriggerSummary, error)
}

// EventHandler accepts domain events from the host application.
type EventHandler struct {
	publisher IncidentPublisher
	trigger   IncidentTrigger
	validator *core.Validator
	logger    *slog.Logger
}

// NewEventHandler creates an EventHandler. A nil publisher makes the handler
// run the trigger inline.
func NewEventHandler(publisher IncidentPublisher, trigger IncidentTrigger, v *core.Validator, l *slog.Logger) *EventHandler {
	if l == nil {
		l = slog.Default()
	}
	return &EventHandler{publisher: publisher, trigger: trigger, validator: v, logger: l}
}

func (h *EventHandler) RegisterRoutes(r chi.Router) {
	r.Post("/events/incidents", h.IncidentCreated)
}

// IncidentCreated handles POST /v1/events/incidents. With a queue configured
// the event is published and 202 is returned; otherwise the trigger runs
// inline and its summary is returned with 200.
func (h *EventHandler) IncidentCreated(w http.ResponseWriter, r *http.Request) {
	var ev types.IncidentEvent
	if err := core.DecodeJSON(w, r, &ev); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(ev); err != nil {
		core.Error(w, r, err)
		return
	}

	if h.publisher != nil {
		eventID, err := h.publisher.PublishIncidentCreated(r.Context(), ev)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		core.Data(w, r, http.StatusAccepted, map[string]string{"event_id": eventID, "status": "queued"})
		return
	}

	summary, err := h.trigger.IncidentCreated(r.Context(), ev)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "incident trigger ran inline",
		"incident_id", ev.IncidentID, "dispatches", summary.Dispatches, "failed", summary.Failed)
	core.Data(w, r, http.StatusOK, summary)
}

// Package core provides the API chassis for the LeanPulse notification
// engine. It builds a chi router, applies the cross-cutting middleware chain
// (panic recovery, deadlines, request IDs, security headers, logging and
// metrics), and leaves route registration to the domain handler packages.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"leanpulse/internal/config"
)

// MetricsCollector records API telemetry.
type MetricsCollector interface {
	// RecordRequest records latency for one request. endpoint is the chi
	// route pattern, not the raw path.
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// RouteRegistrar mounts a handler group under /v1.
type RouteRegistrar func(r chi.Router)

// Server encapsulates the dependencies of the HTTP API.
type Server struct {
	Config       *config.Config
	Logger       *slog.Logger
	Validator    *Validator
	Metrics      MetricsCollector
	HealthProbes []HealthProbe

	// V1RouteRegistrars are populated by main before MountRoutes. The
	// indirection keeps handler packages out of core's imports.
	V1RouteRegistrars []RouteRegistrar

	// OnShutdown hooks run in order during Shutdown.
	OnShutdown []func()

	router *chi.Mux
}

// NewServer initializes the server. The caller mounts routes afterwards via
// MountRoutes, which lets tests customize registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown runs the registered shutdown hooks. The HTTP listener itself is
// drained by the caller's http.Server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")
	for _, hook := range s.OnShutdown {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("shutdown interrupted: %w", err)
		}
		hook()
	}
	s.Logger.Info("server shutdown complete")
	return nil
}

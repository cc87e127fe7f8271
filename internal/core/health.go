package core

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// healthCheckTimeout bounds all probes together. A probe that has not
// reported by then counts as failed.
const healthCheckTimeout = 2 * time.Second

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// HealthProbe checks one dependency. A failing probe makes /health return 503
// unless the probe also implements AdvisoryProbe.
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}

// AdvisoryProbe marks a probe whose failure degrades the service without
// taking it out of rotation.
type AdvisoryProbe interface {
	Advisory() bool
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseProbe reports the database as healthy when a ping succeeds.
type DatabaseProbe struct {
	DB Pinger
}

func (DatabaseProbe) Name() string { return "database" }

func (p DatabaseProbe) Check(ctx context.Context) error {
	if p.DB == nil {
		return fmt.Errorf("database not configured")
	}
	return p.DB.Ping(ctx)
}

// BreakerState is satisfied by *external.BaseClient.
type BreakerState interface {
	Name() string
	BreakerState() string
}

// BreakerProbe reports an upstream circuit breaker. An open breaker means the
// channel is failing fast, which degrades delivery but not the API.
type BreakerProbe struct {
	Upstream BreakerState
}

func (p BreakerProbe) Name() string { return "upstream:" + p.Upstream.Name() }

func (p BreakerProbe) Check(context.Context) error {
	if state := p.Upstream.BreakerState(); state == "open" {
		return fmt.Errorf("circuit breaker %s", state)
	}
	return nil
}

func (BreakerProbe) Advisory() bool { return true }

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

type probeOutcome struct {
	index int
	err   error
}

// HandleHealth runs all probes concurrently and reports "healthy",
// "degraded" (only advisory probes failed, 200) or "unhealthy" (503).
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	probes := s.HealthProbes
	outcomes := make(chan probeOutcome, len(probes))
	for i, p := range probes {
		go func() {
			outcomes <- probeOutcome{index: i, err: runProbe(ctx, p)}
		}()
	}

	reported := make([]bool, len(probes))
	errs := make([]error, len(probes))
collect:
	for range probes {
		select {
		case o := <-outcomes:
			reported[o.index] = true
			errs[o.index] = o.err
		case <-ctx.Done():
			break collect
		}
	}

	resp := healthResponse{Status: statusHealthy}
	if len(probes) > 0 {
		resp.Components = make(map[string]componentStatus, len(probes))
	}
	for i, p := range probes {
		err := errs[i]
		if !reported[i] {
			err = fmt.Errorf("health check timed out")
		}
		if err == nil {
			resp.Components[p.Name()] = componentStatus{Status: statusHealthy}
			continue
		}

		if isAdvisory(p) {
			resp.Components[p.Name()] = componentStatus{Status: statusDegraded, Message: err.Error()}
			if resp.Status == statusHealthy {
				resp.Status = statusDegraded
			}
			continue
		}
		resp.Components[p.Name()] = componentStatus{Status: statusUnhealthy, Message: err.Error()}
		resp.Status = statusUnhealthy
	}

	code := http.StatusOK
	if resp.Status == statusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	JSON(w, r, code, resp)
}

func runProbe(ctx context.Context, p HealthProbe) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("probe panicked: %v", rec)
		}
	}()
	return p.Check(ctx)
}

func isAdvisory(p HealthProbe) bool {
	a, ok := p.(AdvisoryProbe)
	return ok && a.Advisory()
}

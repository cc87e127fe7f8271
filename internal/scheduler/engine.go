package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"leanpulse/internal/notifications/recipients"
	"leanpulse/internal/types"
	"leanpulse/internal/worker"
)

// dueBatchLimit caps the reports loaded per tick.
const dueBatchLimit = 500

// ReportStore is the persistence the engine needs.
type ReportStore interface {
	List(ctx context.Context, f types.ScheduledReportFilter) ([]*types.ScheduledReport, error)
	UpdateSchedule(ctx context.Context, id string, lastSentAt, nextSendAt time.Time) error
	SetNextSendAt(ctx context.Context, id string, nextSendAt time.Time) error
}

// ReportCompiler renders report content for a window.
type ReportCompiler interface {
	Compile(ctx context.Context, reportType types.ReportType, projectID *string, start, end time.Time) (*types.CompiledReport, error)
}

// Engine fires due scheduled reports.
type Engine struct {
	store      ReportStore
	compiler   ReportCompiler
	dispatcher types.Dispatcher
	pool       *worker.Pool
	loc        *time.Location
	logger     types.Logger
}

// EngineConfig holds the dependencies of an Engine. A nil Pool runs reports
// sequentially.
type EngineConfig struct {
	Store      ReportStore
	Compiler   ReportCompiler
	Dispatcher types.Dispatcher
	Pool       *worker.Pool
	Location   *time.Location
	Logger     types.Logger
}

func NewEngine(cfg EngineConfig) *Engine {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Engine{
		store:      cfg.Store,
		compiler:   cfg.Compiler,
		dispatcher: cfg.Dispatcher,
		pool:       cfg.Pool,
		loc:        loc,
		logger:     logger,
	}
}

// Location is the facility time zone used for recurrences.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// DueReports returns active reports whose next fire is not after now. A report
// with no stored next_send_at is due when the occurrence following its last
// send (or its creation) is not after now; otherwise that occurrence is
// stored so the report leaves the candidate set.
func (e *Engine) DueReports(ctx context.Context, now time.Time) ([]*types.ScheduledReport, error) {
	candidates, err := e.store.List(ctx, types.ScheduledReportFilter{
		ActiveOnly: true,
		DueAt:      &now,
		Limit:      dueBatchLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("DueReports: %w", err)
	}

	due := make([]*types.ScheduledReport, 0, len(candidates))
	for _, r := range candidates {
		if !r.IsActive {
			continue
		}
		if r.NextSendAt != nil {
			if !r.NextSendAt.After(now) {
				due = append(due, r)
			}
			continue
		}

		from := r.CreatedAt
		if r.LastSentAt != nil {
			from = *r.LastSentAt
		}
		next, err := NextFire(r, from, e.loc)
		if err != nil {
			e.logger.Warn("skipping report with invalid schedule", "report_id", r.ID, "error", err.Error())
			continue
		}
		if !next.After(now) {
			due = append(due, r)
			continue
		}
		if err := e.store.SetNextSendAt(ctx, r.ID, next); err != nil {
			e.logger.Warn("failed to backfill next_send_at", "report_id", r.ID, "error", err.Error())
			continue
		}
		r.NextSendAt = &next
	}
	return due, nil
}

// Fire compiles r for [lastSentAt, now], dispatches it to its email
// recipients and advances the schedule.
//
// The schedule advances regardless of the dispatch outcome. A compile error
// leaves the schedule untouched and is returned, so the next tick retries.
// A non-nil error always means the schedule was not advanced.
func (e *Engine) Fire(ctx context.Context, r *types.ScheduledReport, now time.Time) (*types.BatchResult, error) {
	logger := e.logger.With("report_id", r.ID, "report_type", string(r.ReportType))

	next, err := NextFire(r, now, e.loc)
	if err != nil {
		return nil, fmt.Errorf("Fire %s: %w", r.ID, err)
	}

	start := DefaultWindowStart(r.Frequency, now)
	if r.LastSentAt != nil {
		start = *r.LastSentAt
	}

	compiled, err := e.compiler.Compile(ctx, r.ReportType, r.ProjectID, start, now)
	if err != nil {
		logger.Error("report compile failed, schedule not advanced", "error", err.Error())
		return nil, fmt.Errorf("Fire %s: %w", r.ID, err)
	}

	var result *types.BatchResult
	dests := recipients.Explicit(r.EmailRecipients, types.ChannelEmail)
	if len(dests) == 0 {
		logger.Warn("scheduled report has no recipients")
	} else {
		meta := map[string]any{"report_id": r.ID, "report_type": string(r.ReportType)}
		if r.ProjectID != nil {
			meta["project_id"] = *r.ProjectID
		}
		res, derr := e.dispatcher.Dispatch(ctx, types.Notification{
			Type:       types.NotificationTypeScheduledReport,
			Channel:    types.ChannelEmail,
			Recipients: recipients.Recipients(dests),
			Subject:    compiled.Subject,
			Content:    compiled.Content,
			Metadata:   meta,
		})
		if derr != nil {
			logger.Error("report dispatch failed", "error", derr.Error())
		}
		result = res
	}

	if err := e.store.UpdateSchedule(ctx, r.ID, now, next); err != nil {
		logger.Error("failed to advance schedule", "error", err.Error())
		return result, fmt.Errorf("Fire %s: %w", r.ID, err)
	}
	sent := now
	r.LastSentAt = &sent
	r.NextSendAt = &next

	logger.Info("scheduled report fired", "next_send_at", next.Format(time.RFC3339),
		"delivered", successCount(result))
	return result, nil
}

// RunDue fires every due report. One report's failure never stops the others.
// It returns the number of reports whose schedule advanced.
func (e *Engine) RunDue(ctx context.Context, now time.Time) (int, error) {
	due, err := e.DueReports(ctx, now)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	var fired, failed atomic.Int32
	fire := func(ctx context.Context, r *types.ScheduledReport) {
		if _, err := e.Fire(ctx, r, now); err != nil {
			failed.Add(1)
			var appErr *types.AppError
			if errors.As(err, &appErr) && appErr.Code == types.ErrCodeConflictRegression {
				e.logger.Warn("report already advanced by another run", "report_id", r.ID)
			}
			return
		}
		fired.Add(1)
	}

	if e.pool == nil {
		for _, r := range due {
			fire(ctx, r)
		}
	} else {
		tasks := make([]worker.Task, len(due))
		for i, r := range due {
			tasks[i] = func(ctx context.Context) { fire(ctx, r) }
		}
		if _, err := e.pool.RunAll(ctx, tasks); err != nil {
			e.logger.Error("scheduled report submission stopped", "error", err.Error())
		}
	}

	e.logger.Info("scheduled reports run complete",
		"due", len(due), "fired", fired.Load(), "failed", failed.Load())
	return int(fired.Load()), nil
}

func successCount(r *types.BatchResult) int {
	if r == nil {
		return 0
	}
	return r.SuccessCount()
}

package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"leanpulse/internal/types"
)

const reportIDPrefix = "rpt_"

// ScheduledReportRepository provides access to scheduled_reports.
type ScheduledReportRepository struct {
	db DBTX
}

// NewScheduledReportRepository creates a ScheduledReportRepository.
func NewScheduledReportRepository(db DBTX) *ScheduledReportRepository {
	return &ScheduledReportRepository{db: db}
}

const reportColumns = `id, project_id, report_type, frequency, day_of_week, day_of_month,
	time_of_day, email_recipients, is_active, last_sent_at, next_send_at,
	created_at, updated_at`

// Create inserts a new report. ID is generated when empty.
func (r *ScheduledReportRepository) Create(ctx context.Context, rep *types.ScheduledReport) error {
	if rep.ID == "" {
		rep.ID = reportIDPrefix + uuid.NewString()
	}
	recipients := rep.EmailRecipients
	if recipients == nil {
		recipients = []string{}
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO scheduled_reports
		 (id, project_id, report_type, frequency, day_of_week, day_of_month,
		  time_of_day, email_recipients, is_active, next_send_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		rep.ID,
		rep.ProjectID,
		string(rep.ReportType),
		string(rep.Frequency),
		rep.DayOfWeek,
		rep.DayOfMonth,
		rep.TimeOfDay,
		recipients,
		rep.IsActive,
		rep.NextSendAt,
	).Scan(&rep.CreatedAt, &rep.UpdatedAt)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create scheduled report", err)
	}
	return nil
}

// Get returns a single report.
func (r *ScheduledReportRepository) Get(ctx context.Context, id string) (*types.ScheduledReport, error) {
	row := r.db.QueryRow(ctx, `SELECT `+reportColumns+` FROM scheduled_reports WHERE id = $1`, id)
	rep, err := scanScheduledReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundScheduledReport, "scheduled report not found", nil)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get scheduled report", err)
	}
	return rep, nil
}

// List returns reports matching the filter ordered by next_send_at (nulls
// last) then id.
func (r *ScheduledReportRepository) List(ctx context.Context, f types.ScheduledReportFilter) ([]*types.ScheduledReport, error) {
	var w whereBuilder
	if f.ActiveOnly {
		w.addRaw("is_active = TRUE")
	}
	if f.ProjectID != nil {
		w.add("project_id = ?", *f.ProjectID)
	}
	if f.DueAt != nil {
		w.add("(next_send_at IS NULL OR next_send_at <= ?)", *f.DueAt)
	}
	limit := w.bind(clampLimit(f.Limit, 100, 1000))

	rows, err := r.db.Query(ctx,
		`SELECT `+reportColumns+` FROM scheduled_reports`+w.clause()+
			` ORDER BY next_send_at ASC NULLS LAST, id ASC LIMIT `+limit,
		w.args...,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list scheduled reports", err)
	}
	defer rows.Close()

	var out []*types.ScheduledReport
	for rows.Next() {
		rep, err := scanScheduledReport(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan scheduled report", err)
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating scheduled reports", err)
	}
	return out, nil
}

// UpdateSchedule records a fire. The update only applies when nextSendAt
// moves forward, so concurrent or stale fires can never regress the schedule.
func (r *ScheduledReportRepository) UpdateSchedule(ctx context.Context, id string, lastSentAt, nextSendAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE scheduled_reports
		 SET last_sent_at = $2, next_send_at = $3, updated_at = NOW()
		 WHERE id = $1 AND (next_send_at IS NULL OR next_send_at < $3)`,
		id,
		lastSentAt,
		nextSendAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update scheduled report", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return types.NewAppError(types.ErrCodeConflictRegression, "next_send_at would not advance", nil)
}

// SetNextSendAt backfills next_send_at for a report that has none.
func (r *ScheduledReportRepository) SetNextSendAt(ctx context.Context, id string, nextSendAt time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE scheduled_reports SET next_send_at = $2, updated_at = NOW()
		 WHERE id = $1 AND next_send_at IS NULL`,
		id,
		nextSendAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to set next_send_at", err)
	}
	return nil
}

// Deactivate soft-removes a report.
func (r *ScheduledReportRepository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE scheduled_reports SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to deactivate scheduled report", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundScheduledReport, "scheduled report not found", nil)
	}
	return nil
}

// Delete hard-deletes a report.
func (r *ScheduledReportRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM scheduled_reports WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete scheduled report", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundScheduledReport, "scheduled report not found", nil)
	}
	return nil
}

func scanScheduledReport(row pgx.Row) (*types.ScheduledReport, error) {
	var (
		rep        types.ScheduledReport
		reportType string
		frequency  string
	)
	if err := row.Scan(
		&rep.ID,
		&rep.ProjectID,
		&reportType,
		&frequency,
		&rep.DayOfWeek,
		&rep.DayOfMonth,
		&rep.TimeOfDay,
		&rep.EmailRecipients,
		&rep.IsActive,
		&rep.LastSentAt,
		&rep.NextSendAt,
		&rep.CreatedAt,
		&rep.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rep.ReportType = types.ReportType(reportType)
	rep.Frequency = types.Frequency(frequency)
	return &rep, nil
}

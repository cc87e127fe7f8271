package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"leanpulse/internal/types"
)

// PreferenceRepository provides access to notification_preferences. There is
// one row per user; Upsert creates it on first save.
type PreferenceRepository struct {
	db DBTX
}

// NewPreferenceRepository creates a PreferenceRepository.
func NewPreferenceRepository(db DBTX) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

const preferenceColumns = `user_id, email_enabled, slack_enabled, teams_enabled,
	email_address, slack_channel, teams_channel,
	incident_alerts, task_reminders, weekly_reports, daily_standups,
	created_at, updated_at`

// categoryColumns maps categories to their toggle column. Column names never
// come from input.
var categoryColumns = map[types.Category]string{
	types.CategoryIncidentAlerts: "incident_alerts",
	types.CategoryTaskReminders:  "task_reminders",
	types.CategoryWeeklyReports:  "weekly_reports",
	types.CategoryDailyStandups:  "daily_standups",
}

// Get returns the preference row for a user.
func (r *PreferenceRepository) Get(ctx context.Context, userID string) (*types.NotificationPreference, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+preferenceColumns+` FROM notification_preferences WHERE user_id = $1`, userID)
	p, err := scanPreference(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundPreference, "notification preference not found", nil)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get notification preference", err)
	}
	return p, nil
}

// List returns all preferences, or only the given user's when userID is
// non-nil. Rows are ordered by user_id.
func (r *PreferenceRepository) List(ctx context.Context, userID *string) ([]*types.NotificationPreference, error) {
	var w whereBuilder
	if userID != nil {
		w.add("user_id = ?", *userID)
	}
	return r.query(ctx, w)
}

// ListByCategory returns preferences with the category toggle on, ordered by
// user_id.
func (r *PreferenceRepository) ListByCategory(ctx context.Context, c types.Category) ([]*types.NotificationPreference, error) {
	col, ok := categoryColumns[c]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidCategory, "unknown notification category", nil).
			WithDetails(map[string]any{"category": string(c)})
	}
	var w whereBuilder
	w.addRaw(col + " = TRUE")
	return r.query(ctx, w)
}

func (r *PreferenceRepository) query(ctx context.Context, w whereBuilder) ([]*types.NotificationPreference, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+preferenceColumns+` FROM notification_preferences`+w.clause()+` ORDER BY user_id`,
		w.args...,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list notification preferences", err)
	}
	defer rows.Close()

	var out []*types.NotificationPreference
	for rows.Next() {
		p, err := scanPreference(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan notification preference", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating notification preferences", err)
	}
	return out, nil
}

// Upsert creates or replaces the user's preference row. CreatedAt and
// UpdatedAt are populated from the database.
func (r *PreferenceRepository) Upsert(ctx context.Context, p *types.NotificationPreference) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO notification_preferences
		 (user_id, email_enabled, slack_enabled, teams_enabled,
		  email_address, slack_channel, teams_channel,
		  incident_alerts, task_reminders, weekly_reports, daily_standups,
		  created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		 ON CONFLICT (user_id) DO UPDATE SET
		   email_enabled = EXCLUDED.email_enabled,
		   slack_enabled = EXCLUDED.slack_enabled,
		   teams_enabled = EXCLUDED.teams_enabled,
		   email_address = EXCLUDED.email_address,
		   slack_channel = EXCLUDED.slack_channel,
		   teams_channel = EXCLUDED.teams_channel,
		   incident_alerts = EXCLUDED.incident_alerts,
		   task_reminders = EXCLUDED.task_reminders,
		   weekly_reports = EXCLUDED.weekly_reports,
		   daily_standups = EXCLUDED.daily_standups,
		   updated_at = NOW()
		 RETURNING created_at, updated_at`,
		p.UserID,
		p.EmailEnabled,
		p.SlackEnabled,
		p.TeamsEnabled,
		nilIfEmpty(p.EmailAddress),
		nilIfEmpty(p.SlackChannel),
		nilIfEmpty(p.TeamsChannel),
		p.IncidentAlerts,
		p.TaskReminders,
		p.WeeklyReports,
		p.DailyStandups,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert notification preference", err)
	}
	return nil
}

func scanPreference(row pgx.Row) (*types.NotificationPreference, error) {
	var (
		p                         types.NotificationPreference
		email, slack, teamsTarget *string
	)
	if err := row.Scan(
		&p.UserID,
		&p.EmailEnabled,
		&p.SlackEnabled,
		&p.TeamsEnabled,
		&email,
		&slack,
		&teamsTarget,
		&p.IncidentAlerts,
		&p.TaskReminders,
		&p.WeeklyReports,
		&p.DailyStandups,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.EmailAddress = deref(email)
	p.SlackChannel = deref(slack)
	p.TeamsChannel = deref(teamsTarget)
	return &p, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

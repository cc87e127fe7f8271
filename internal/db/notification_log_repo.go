package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"leanpulse/internal/types"
)

const logIDPrefix = "nlog_"

// NotificationLogRepository is the delivery log store. Rows are created in
// 'pending' and finalized exactly once; the UPDATE is guarded by the pending
// status so a finalized row can never change again.
type NotificationLogRepository struct {
	db  DBTX
	now func() time.Time
}

// NewNotificationLogRepository creates a NotificationLogRepository backed by
// the given connection (pool or transaction).
func NewNotificationLogRepository(db DBTX) *NotificationLogRepository {
	return &NotificationLogRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const logColumns = `id, user_id, notification_type, channel, recipient, subject,
	content, status, sent_at, error_message, created_at`

// Insert writes a pending row and returns its id. The entry's ID, Status and
// CreatedAt are populated on success.
func (r *NotificationLogRepository) Insert(ctx context.Context, e *types.NotificationLogEntry) (string, error) {
	if e.ID == "" {
		e.ID = logIDPrefix + uuid.NewString()
	}
	e.Status = types.LogStatusPending
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO notification_logs
		 (id, user_id, notification_type, channel, recipient, subject,
		  content, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID,
		e.UserID,
		e.NotificationType,
		string(e.Channel),
		e.Recipient,
		nilIfEmpty(e.Subject),
		e.Content,
		string(types.LogStatusPending),
		e.CreatedAt,
	)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to insert notification log", err)
	}
	return e.ID, nil
}

// Update moves a pending row to its terminal state. Updating a row that is
// already terminal returns a conflict error; an unknown id returns not found.
func (r *NotificationLogRepository) Update(ctx context.Context, id string, u types.LogUpdate) error {
	if !u.Status.Terminal() {
		return types.NewAppError(types.ErrCodeValidationMissingField, "log update requires a terminal status", nil)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE notification_logs
		 SET status = $2, sent_at = $3, error_message = $4
		 WHERE id = $1 AND status = 'pending'`,
		id,
		string(u.Status),
		u.SentAt,
		u.ErrorMessage,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update notification log", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var status string
	err = r.db.QueryRow(ctx, `SELECT status FROM notification_logs WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.NewAppError(types.ErrCodeNotFoundLogEntry, "notification log not found", nil)
	}
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to read notification log status", err)
	}
	return types.NewAppErrorWithDetails(types.ErrCodeConflictLogFinalized,
		"notification log already finalized", nil, map[string]any{"status": status})
}

// Get returns a single log row.
func (r *NotificationLogRepository) Get(ctx context.Context, id string) (*types.NotificationLogEntry, error) {
	row := r.db.QueryRow(ctx, `SELECT `+logColumns+` FROM notification_logs WHERE id = $1`, id)
	e, err := scanLogEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundLogEntry, "notification log not found", nil)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get notification log", err)
	}
	return e, nil
}

// Query lists log rows matching the filter, newest first.
func (r *NotificationLogRepository) Query(ctx context.Context, f types.LogFilter) ([]*types.NotificationLogEntry, error) {
	var w whereBuilder
	if f.UserID != nil {
		w.add("user_id = ?", *f.UserID)
	}
	if f.Channel != nil {
		w.add("channel = ?", string(*f.Channel))
	}
	if f.Status != nil {
		w.add("status = ?", string(*f.Status))
	}
	if f.NotificationType != nil {
		w.add("notification_type = ?", *f.NotificationType)
	}
	if f.Recipient != nil {
		w.add("recipient = ?", *f.Recipient)
	}
	if f.CreatedAfter != nil {
		w.add("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		w.add("created_at < ?", *f.CreatedBefore)
	}
	limit := w.bind(clampLimit(f.Limit, 50, 500))

	rows, err := r.db.Query(ctx,
		`SELECT `+logColumns+` FROM notification_logs`+w.clause()+
			` ORDER BY created_at DESC, id DESC LIMIT `+limit,
		w.args...,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query notification logs", err)
	}
	defer rows.Close()

	var out []*types.NotificationLogEntry
	for rows.Next() {
		e, err := scanLogEntry(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan notification log", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating notification logs", err)
	}
	return out, nil
}

func scanLogEntry(row pgx.Row) (*types.NotificationLogEntry, error) {
	var (
		e       types.NotificationLogEntry
		channel string
		status  string
		subject *string
	)
	if err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.NotificationType,
		&channel,
		&e.Recipient,
		&subject,
		&e.Content,
		&status,
		&e.SentAt,
		&e.ErrorMessage,
		&e.CreatedAt,
	); err != nil {
		return nil, err
	}
	e.Channel = types.ChannelType(channel)
	e.Status = types.LogStatus(status)
	if subject != nil {
		e.Subject = *subject
	}
	return &e, nil
}

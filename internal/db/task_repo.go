package db

import (
	"context"
	"time"

	"leanpulse/internal/types"
)

// TaskRepository reads tasks and project membership for the reminder and
// escalation triggers.
type TaskRepository struct {
	db DBTX
}

// NewTaskRepository creates a TaskRepository.
func NewTaskRepository(db DBTX) *TaskRepository {
	return &TaskRepository{db: db}
}

// GetTasksDueOrOverdue returns incomplete, assigned tasks whose planned end
// is at or before now+horizon. Overdue tasks are included regardless of how
// far in the past they are. Ordered by planned_end then task id.
func (r *TaskRepository) GetTasksDueOrOverdue(ctx context.Context, now time.Time, horizon time.Duration) ([]types.TaskReminder, error) {
	rows, err := r.db.Query(ctx,
		`SELECT t.id, t.project_id, p.name, t.title, t.planned_end,
		        u.id, u.name, u.email
		 FROM tasks t
		 JOIN projects p ON p.id = t.project_id
		 JOIN users u ON u.id = t.assignee_id
		 WHERE t.status <> 'completed'
		   AND t.planned_end IS NOT NULL
		   AND t.planned_end <= $1
		 ORDER BY t.planned_end ASC, t.id ASC`,
		now.Add(horizon),
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query due tasks", err)
	}
	defer rows.Close()

	var out []types.TaskReminder
	for rows.Next() {
		var (
			t     types.TaskReminder
			email *string
		)
		if err := rows.Scan(
			&t.TaskID,
			&t.ProjectID,
			&t.ProjectName,
			&t.Title,
			&t.PlannedEnd,
			&t.AssigneeUserID,
			&t.AssigneeName,
			&email,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan due task", err)
		}
		t.AssigneeEmail = deref(email)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating due tasks", err)
	}
	return out, nil
}

// ListProjectTeam returns the users assigned to a project, ordered by user id.
func (r *TaskRepository) ListProjectTeam(ctx context.Context, projectID string) ([]types.TeamMember, error) {
	rows, err := r.db.Query(ctx,
		`SELECT u.id, u.name, u.email
		 FROM project_members pm
		 JOIN users u ON u.id = pm.user_id
		 WHERE pm.project_id = $1
		 ORDER BY u.id`,
		projectID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list project team", err)
	}
	defer rows.Close()

	var out []types.TeamMember
	for rows.Next() {
		var (
			m     types.TeamMember
			email *string
		)
		if err := rows.Scan(&m.UserID, &m.Name, &email); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan team member", err)
		}
		m.Email = deref(email)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating project team", err)
	}
	return out, nil
}

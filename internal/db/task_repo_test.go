package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"leanpulse/internal/types"
)

func TestTaskRepository_GetTasksDueOrOverdue(t *testing.T) {
	db := new(mockDBTX)
	repo := NewTaskRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	due := now.Add(12 * time.Hour)

	db.On("Query", ctx, sqlContains("t.status <> 'completed'", "t.planned_end <= $1"), []any{now.Add(24 * time.Hour)}).
		Return(newMockRows([][]any{
			{"tsk_1", "prj_1", "Line A", "Replace filter", due, "u1", "Ana", "ana@example.com"},
			{"tsk_2", "prj_1", "Line A", "Audit", due, "u2", "Bo", nil},
		}), nil)

	got, err := repo.GetTasksDueOrOverdue(ctx, now, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ana@example.com", got[0].AssigneeEmail)
	assert.Empty(t, got[1].AssigneeEmail)
	db.AssertExpectations(t)
}

func TestTaskRepository_ListProjectTeam(t *testing.T) {
	db := new(mockDBTX)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	db.On("Query", ctx, sqlContains("FROM project_members"), []any{"prj_1"}).
		Return(newMockRows([][]any{{"u1", "Ana", "ana@example.com"}}), nil)

	got, err := repo.ListProjectTeam(ctx, "prj_1")
	require.NoError(t, err)
	assert.Equal(t, []types.TeamMember{{UserID: "u1", Name: "Ana", Email: "ana@example.com"}}, got)
}

func TestTaskRepository_ListProjectTeam_QueryError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(nil, errors.New("timeout"))

	_, err := repo.ListProjectTeam(ctx, "prj_1")
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"leanpulse/internal/types"
)

func prefRow(userID string, email, slack any) []any {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []any{userID, true, true, false, email, slack, nil, true, true, false, false, ts, ts}
}

func TestPreferenceRepository_ListByCategory(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPreferenceRepository(db)
	ctx := context.Background()

	db.On("Query", ctx, sqlContains("WHERE task_reminders = TRUE", "ORDER BY user_id"), []any(nil)).
		Return(newMockRows([][]any{
			prefRow("u1", "a@example.com", "#a"),
			prefRow("u2", nil, nil),
		}), nil)

	got, err := repo.ListByCategory(ctx, types.CategoryTaskReminders)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a@example.com", got[0].EmailAddress)
	assert.Equal(t, "#a", got[0].SlackChannel)
	assert.Empty(t, got[1].EmailAddress)
	assert.Empty(t, got[1].TeamsChannel)
	db.AssertExpectations(t)
}

func TestPreferenceRepository_ListByCategory_Unknown(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPreferenceRepository(db)

	_, err := repo.ListByCategory(context.Background(), types.Category("; DROP TABLE users"))
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationInvalidCategory, appErr.Code)
	db.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
}

func TestPreferenceRepository_List_ByUser(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPreferenceRepository(db)
	ctx := context.Background()

	db.On("Query", ctx, sqlContains("WHERE user_id = $1"), []any{"u9"}).
		Return(newMockRows([][]any{prefRow("u9", "n@example.com", nil)}), nil)

	uid := "u9"
	got, err := repo.List(ctx, &uid)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u9", got[0].UserID)
}

func TestPreferenceRepository_Get_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPreferenceRepository(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"ghost"}).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.Get(ctx, "ghost")
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundPreference, appErr.Code)
	assert.Equal(t, 404, appErr.HTTPStatus())
}

func TestPreferenceRepository_Upsert(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPreferenceRepository(db)
	ctx := context.Background()
	ts := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)

	db.On("QueryRow", ctx, sqlContains("ON CONFLICT (user_id) DO UPDATE"), mock.MatchedBy(func(args []any) bool {
		// Empty addresses are stored as NULL.
		return args[0] == "u1" && args[5] == (*string)(nil)
	})).Return(&mockRow{values: []any{ts, ts}})

	p := &types.NotificationPreference{UserID: "u1", EmailEnabled: true, EmailAddress: "u1@example.com"}
	require.NoError(t, repo.Upsert(ctx, p))
	assert.Equal(t, ts, p.CreatedAt)
	db.AssertExpectations(t)
}

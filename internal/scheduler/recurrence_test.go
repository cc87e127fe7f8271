package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leanpulse/internal/types"
)

func intPtr(v int) *int { return &v }

func utc(y int, m time.Month, d, h, mi int) time.Time {
	return time.Date(y, m, d, h, mi, 0, 0, time.UTC)
}

func TestNextFire(t *testing.T) {
	daily := &types.ScheduledReport{Frequency: types.FrequencyDaily, TimeOfDay: "09:00"}
	monday := &types.ScheduledReport{Frequency: types.FrequencyWeekly, DayOfWeek: intPtr(1), TimeOfDay: "09:00"}
	sunday := &types.ScheduledReport{Frequency: types.FrequencyWeekly, DayOfWeek: intPtr(0), TimeOfDay: "18:30"}
	month31 := &types.ScheduledReport{Frequency: types.FrequencyMonthly, DayOfMonth: intPtr(31), TimeOfDay: "08:00"}
	month15 := &types.ScheduledReport{Frequency: types.FrequencyMonthly, DayOfMonth: intPtr(15), TimeOfDay: "08:00"}

	tests := []struct {
		name   string
		report *types.ScheduledReport
		after  time.Time
		want   time.Time
	}{
		{"daily later today", daily, utc(2026, 3, 2, 8, 0), utc(2026, 3, 2, 9, 0)},
		{"daily exact slot is not repeated", daily, utc(2026, 3, 2, 9, 0), utc(2026, 3, 3, 9, 0)},
		{"weekly same day before slot", monday, utc(2026, 3, 2, 8, 0), utc(2026, 3, 2, 9, 0)},
		{"weekly late tick skips to next week", monday, utc(2026, 3, 2, 9, 30), utc(2026, 3, 9, 9, 0)},
		{"weekly sunday from wednesday", sunday, utc(2026, 3, 4, 12, 0), utc(2026, 3, 8, 18, 30)},
		{"monthly 31 clamps in 30-day month", month31, utc(2026, 4, 1, 0, 0), utc(2026, 4, 30, 8, 0)},
		{"monthly 31 clamps in february", month31, utc(2026, 1, 31, 9, 0), utc(2026, 2, 28, 8, 0)},
		{"monthly 31 in leap february", month31, utc(2028, 2, 1, 0, 0), utc(2028, 2, 29, 8, 0)},
		{"monthly 31 in long month", month31, utc(2026, 3, 1, 0, 0), utc(2026, 3, 31, 8, 0)},
		{"monthly exact slot moves a month", month15, utc(2026, 3, 15, 8, 0), utc(2026, 4, 15, 8, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextFire(tt.report, tt.after, time.UTC)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextFire_NeverMovesBackward(t *testing.T) {
	prev := utc(2026, 3, 9, 9, 0)
	r := &types.ScheduledReport{Frequency: types.FrequencyWeekly, DayOfWeek: intPtr(1), TimeOfDay: "09:00", NextSendAt: &prev}

	got, err := NextFire(r, utc(2026, 3, 2, 10, 0), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, utc(2026, 3, 16, 9, 0), got)
	assert.True(t, got.After(prev))
}

func TestNextFire_FacilityTimezone(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	daily := &types.ScheduledReport{Frequency: types.FrequencyDaily, TimeOfDay: "09:00"}

	got, err := NextFire(daily, utc(2026, 3, 2, 0, 0), chicago)
	require.NoError(t, err)
	assert.Equal(t, utc(2026, 3, 2, 15, 0), got, "09:00 CST")

	// DST starts 2026-03-08; 09:00 CDT is 14:00 UTC.
	got, err = NextFire(daily, utc(2026, 3, 8, 12, 0), chicago)
	require.NoError(t, err)
	assert.Equal(t, utc(2026, 3, 8, 14, 0), got)
	assert.Equal(t, time.UTC, got.Location())
}

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		name string
		r    types.ScheduledReport
	}{
		{"unknown frequency", types.ScheduledReport{Frequency: "hourly", TimeOfDay: "09:00"}},
		{"short time", types.ScheduledReport{Frequency: types.FrequencyDaily, TimeOfDay: "9:00"}},
		{"hour out of range", types.ScheduledReport{Frequency: types.FrequencyDaily, TimeOfDay: "24:00"}},
		{"minute out of range", types.ScheduledReport{Frequency: types.FrequencyDaily, TimeOfDay: "12:60"}},
		{"weekly without day", types.ScheduledReport{Frequency: types.FrequencyWeekly, TimeOfDay: "09:00"}},
		{"weekly day out of range", types.ScheduledReport{Frequency: types.FrequencyWeekly, DayOfWeek: intPtr(7), TimeOfDay: "09:00"}},
		{"monthly without day", types.ScheduledReport{Frequency: types.FrequencyMonthly, TimeOfDay: "09:00"}},
		{"monthly day zero", types.ScheduledReport{Frequency: types.FrequencyMonthly, DayOfMonth: intPtr(0), TimeOfDay: "09:00"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchedule(&tt.r)
			var appErr *types.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, types.ErrCodeValidationInvalidSchedule, appErr.Code)

			_, err = NextFire(&tt.r, utc(2026, 3, 2, 0, 0), nil)
			assert.Error(t, err)
		})
	}

	h, m, err := ParseTimeOfDay("23:59")
	require.NoError(t, err)
	assert.Equal(t, 23, h)
	assert.Equal(t, 59, m)
}

func TestDefaultWindowStart(t *testing.T) {
	now := utc(2026, 3, 31, 9, 0)
	assert.Equal(t, utc(2026, 3, 30, 9, 0), DefaultWindowStart(types.FrequencyDaily, now))
	assert.Equal(t, utc(2026, 3, 24, 9, 0), DefaultWindowStart(types.FrequencyWeekly, now))
	assert.Equal(t, utc(2026, 3, 3, 9, 0), DefaultWindowStart(types.FrequencyMonthly, now))
}

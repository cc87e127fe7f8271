package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"leanpulse/internal/types"
)

var weekdays = []rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

func invalidSchedule(format string, args ...any) error {
	return types.NewAppError(types.ErrCodeValidationInvalidSchedule, fmt.Sprintf(format, args...), nil)
}

// ParseTimeOfDay parses "HH:MM" on a 24h clock.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, 0, invalidSchedule("time_of_day %q must be HH:MM", s)
	}
	hour, err = strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, invalidSchedule("time_of_day %q has an invalid hour", s)
	}
	minute, err = strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, invalidSchedule("time_of_day %q has an invalid minute", s)
	}
	return hour, minute, nil
}

// ValidateSchedule checks that the recurrence fields of r are consistent
// with its frequency.
func ValidateSchedule(r *types.ScheduledReport) error {
	if !r.Frequency.Valid() {
		return invalidSchedule("unknown frequency %q", r.Frequency)
	}
	if _, _, err := ParseTimeOfDay(r.TimeOfDay); err != nil {
		return err
	}
	switch r.Frequency {
	case types.FrequencyWeekly:
		if r.DayOfWeek == nil || *r.DayOfWeek < 0 || *r.DayOfWeek > 6 {
			return invalidSchedule("weekly reports require day_of_week between 0 (Sunday) and 6")
		}
	case types.FrequencyMonthly:
		if r.DayOfMonth == nil || *r.DayOfMonth < 1 || *r.DayOfMonth > 31 {
			return invalidSchedule("monthly reports require day_of_month between 1 and 31")
		}
	}
	return nil
}

// NextFire returns the first occurrence of r's recurrence in loc strictly
// after both after and r.NextSendAt (when set), so the schedule never moves
// backward and a late tick never re-fires the same slot.
//
// Monthly days past the end of a short month clamp to its last day.
func NextFire(r *types.ScheduledReport, after time.Time, loc *time.Location) (time.Time, error) {
	if err := ValidateSchedule(r); err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}

	anchor := after
	if r.NextSendAt != nil && r.NextSendAt.After(anchor) {
		anchor = *r.NextSendAt
	}

	rule, err := buildRule(r, anchor.In(loc))
	if err != nil {
		return time.Time{}, err
	}

	next := rule.After(anchor, false)
	if next.IsZero() {
		return time.Time{}, invalidSchedule("recurrence produced no occurrence after %s", anchor.Format(time.RFC3339))
	}
	return next.UTC(), nil
}

func buildRule(r *types.ScheduledReport, localAnchor time.Time) (*rrule.RRule, error) {
	hour, minute, _ := ParseTimeOfDay(r.TimeOfDay)

	y, m, d := localAnchor.Date()
	opt := rrule.ROption{
		Byhour:   []int{hour},
		Byminute: []int{minute},
		Bysecond: []int{0},
		Dtstart:  time.Date(y, m, d, 0, 0, 0, 0, localAnchor.Location()),
	}

	switch r.Frequency {
	case types.FrequencyDaily:
		opt.Freq = rrule.DAILY
	case types.FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = []rrule.Weekday{weekdays[*r.DayOfWeek]}
	case types.FrequencyMonthly:
		opt.Freq = rrule.MONTHLY
		opt.Dtstart = time.Date(y, m, 1, 0, 0, 0, 0, localAnchor.Location())
		dom := *r.DayOfMonth
		for day := min(28, dom); day <= dom; day++ {
			opt.Bymonthday = append(opt.Bymonthday, day)
		}
		opt.Bysetpos = []int{-1}
	}

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("scheduler: build recurrence: %w", err)
	}
	return rule, nil
}

// DefaultWindowStart is the report window start for a report that never
// fired: one period before now.
func DefaultWindowStart(f types.Frequency, now time.Time) time.Time {
	switch f {
	case types.FrequencyWeekly:
		return now.AddDate(0, 0, -7)
	case types.FrequencyMonthly:
		return now.AddDate(0, -1, 0)
	}
	return now.AddDate(0, 0, -1)
}

// Package scheduler computes report recurrences and fires due scheduled
// reports. It also defines the task payload routed by the scheduler
// multiplexer in cmd/scheduler.
package scheduler

import "time"

// TaskType identifies which scheduled job a tick runs.
type TaskType string

const (
	TaskScheduledReports TaskType = "scheduled_reports"
	TaskTaskReminders    TaskType = "task_reminders"
	TaskWeeklyReports    TaskType = "weekly_reports"
	TaskDailyStandups    TaskType = "daily_standups"
)

// AllTasks lists the tasks a local ticker runs on every tick.
var AllTasks = []TaskType{TaskScheduledReports, TaskTaskReminders, TaskWeeklyReports, TaskDailyStandups}

// TaskPayload is the JSON sent by an EventBridge rule:
//
//	{
//	  "task": "scheduled_reports",
//	  "reference_time": "2026-03-02T09:00:00Z"  // optional
//	}
type TaskPayload struct {
	Task TaskType `json:"task"`
	// ReferenceTime overrides "now" for manual runs and backfills.
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}

package types

import "slices"

// ChannelType identifies a delivery medium.
type ChannelType string

const (
	ChannelEmail ChannelType = "email"
	ChannelSlack ChannelType = "slack"
	ChannelTeams ChannelType = "teams"
)

// ChannelOrder is the fixed ordering used whenever destinations for several
// channels are listed or grouped.
var ChannelOrder = []ChannelType{ChannelEmail, ChannelSlack, ChannelTeams}

// Valid reports whether c is a known channel.
func (c ChannelType) Valid() bool {
	return slices.Contains(ChannelOrder, c)
}

// LogStatus is the state of a single notification log row.
type LogStatus string

const (
	LogStatusPending LogStatus = "pending"
	LogStatusSent    LogStatus = "sent"
	LogStatusFailed  LogStatus = "failed"
)

// Terminal reports whether the status is final.
func (s LogStatus) Terminal() bool {
	return s == LogStatusSent || s == LogStatusFailed
}

// Category is a per-user notification toggle.
type Category string

const (
	CategoryIncidentAlerts Category = "incident_alerts"
	CategoryTaskReminders  Category = "task_reminders"
	CategoryWeeklyReports  Category = "weekly_reports"
	CategoryDailyStandups  Category = "daily_standups"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryIncidentAlerts, CategoryTaskReminders, CategoryWeeklyReports, CategoryDailyStandups:
		return true
	}
	return false
}

// ReportType selects the layout and emphasis of a compiled report.
type ReportType string

const (
	ReportWeeklyPerformance ReportType = "weekly_performance"
	ReportMonthlyWaste      ReportType = "monthly_waste"
	ReportProjectStatus     ReportType = "project_status"
	Report5SScorecard       ReportType = "5s_scorecard"
)

// Valid reports whether r is a known report type.
func (r ReportType) Valid() bool {
	switch r {
	case ReportWeeklyPerformance, ReportMonthlyWaste, ReportProjectStatus, Report5SScorecard:
		return true
	}
	return false
}

// Frequency is the recurrence period of a scheduled report.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	return f == FrequencyDaily || f == FrequencyWeekly || f == FrequencyMonthly
}

// Severity of a waste incident.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Urgent reports whether notifications for this severity carry the urgent marker.
func (s Severity) Urgent() bool {
	return s == SeverityCritical || s == SeverityHigh
}

// Notification types written to the delivery log.
const (
	NotificationTypeWasteAlert           = "waste_alert"
	NotificationTypeWasteAlertEscalation = "waste_alert_escalation"
	NotificationTypeTaskUpcoming         = "task_reminder_upcoming"
	NotificationTypeTaskOverdue          = "task_reminder_overdue"
	NotificationTypeScheduledReport      = "scheduled_report"
	NotificationTypeCategoryDigest       = "category_digest"
)

// EventType identifies a domain event carried on the event queue.
type EventType string

const (
	EventIncidentCreated EventType = "incident.created"
)

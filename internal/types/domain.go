package types

import (
	"strings"
	"time"
)

// NotificationPreference is the per-user notification configuration.
// There is exactly one record per user; saves are upserts.
type NotificationPreference struct {
	UserID string `json:"user_id"`

	EmailEnabled bool `json:"email_enabled"`
	SlackEnabled bool `json:"slack_enabled"`
	TeamsEnabled bool `json:"teams_enabled"`

	EmailAddress string `json:"email_address,omitempty"`
	SlackChannel string `json:"slack_channel,omitempty"`
	TeamsChannel string `json:"teams_channel,omitempty"`

	IncidentAlerts bool `json:"incident_alerts"`
	TaskReminders  bool `json:"task_reminders"`
	WeeklyReports  bool `json:"weekly_reports"`
	DailyStandups  bool `json:"daily_standups"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CategoryEnabled reports whether the user opted in to the given category.
func (p *NotificationPreference) CategoryEnabled(c Category) bool {
	switch c {
	case CategoryIncidentAlerts:
		return p.IncidentAlerts
	case CategoryTaskReminders:
		return p.TaskReminders
	case CategoryWeeklyReports:
		return p.WeeklyReports
	case CategoryDailyStandups:
		return p.DailyStandups
	}
	return false
}

// Destinations returns one destination per enabled channel that has an
// address, in ChannelOrder. An enabled channel without an address is skipped.
func (p *NotificationPreference) Destinations() []Destination {
	userID := p.UserID
	candidates := []struct {
		enabled bool
		channel ChannelType
		address string
	}{
		{p.EmailEnabled, ChannelEmail, p.EmailAddress},
		{p.SlackEnabled, ChannelSlack, p.SlackChannel},
		{p.TeamsEnabled, ChannelTeams, p.TeamsChannel},
	}

	var out []Destination
	for _, c := range candidates {
		if !c.enabled || c.address == "" {
			continue
		}
		out = append(out, Destination{
			Channel:   c.channel,
			Recipient: Recipient{Address: c.address, UserID: &userID},
		})
	}
	return out
}

// Recipient is a single address on a channel, optionally owned by a user.
// System-wide recipients (e.g. a distribution list) have no UserID.
type Recipient struct {
	Address string  `json:"address"`
	UserID  *string `json:"user_id,omitempty"`
}

// Destination is a concrete (channel, recipient) pair produced by the
// recipient resolver.
type Destination struct {
	Channel ChannelType `json:"channel"`
	Recipient
}

// Key identifies a destination for deduplication. Email addresses compare
// case-insensitively; webhook channel names compare exactly.
func (d Destination) Key() string {
	addr := strings.TrimSpace(d.Address)
	if d.Channel == ChannelEmail {
		addr = strings.ToLower(addr)
	}
	return string(d.Channel) + "|" + addr
}

// Notification is one logical message to be sent to one or more recipients
// on a single channel.
type Notification struct {
	Type       string         `json:"type"`
	Channel    ChannelType    `json:"channel"`
	Recipients []Recipient    `json:"recipients"`
	Subject    string         `json:"subject,omitempty"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// OutboundMessage is the normalized payload handed to a channel sender.
type OutboundMessage struct {
	Recipient string
	Subject   string
	Content   string
	Metadata  map[string]any
}

// SendResult is the outcome reported by a channel sender.
type SendResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RecipientResult is the per-recipient outcome of a dispatch.
type RecipientResult struct {
	Recipient string `json:"recipient"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	LogID     string `json:"log_id,omitempty"`
}

// BatchResult aggregates the outcome of a dispatch. Success is the logical
// AND over all recipients.
type BatchResult struct {
	Success      bool              `json:"success"`
	PerRecipient []RecipientResult `json:"per_recipient"`
}

// SuccessCount returns the number of recipients that were delivered.
func (b *BatchResult) SuccessCount() int {
	n := 0
	for _, r := range b.PerRecipient {
		if r.Success {
			n++
		}
	}
	return n
}

// NotificationLogEntry is one row of the append-only delivery audit trail.
type NotificationLogEntry struct {
	ID               string      `json:"id"`
	UserID           *string     `json:"user_id,omitempty"`
	NotificationType string      `json:"notification_type"`
	Channel          ChannelType `json:"channel"`
	Recipient        string      `json:"recipient"`
	Subject          string      `json:"subject,omitempty"`
	Content          string      `json:"content"`
	Status           LogStatus   `json:"status"`
	SentAt           *time.Time  `json:"sent_at,omitempty"`
	ErrorMessage     *string     `json:"error_message,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

// LogUpdate moves a pending log row to its terminal state.
type LogUpdate struct {
	Status       LogStatus
	SentAt       *time.Time
	ErrorMessage *string
}

// LogFilter narrows a delivery log query. Nil or zero fields do not filter.
type LogFilter struct {
	UserID           *string
	Channel          *ChannelType
	Status           *LogStatus
	NotificationType *string
	Recipient        *string
	CreatedAfter     *time.Time
	CreatedBefore    *time.Time
	Limit            int
}

// ScheduledReport is a persisted recurrence rule plus recipient list.
type ScheduledReport struct {
	ID              string     `json:"id"`
	ProjectID       *string    `json:"project_id,omitempty"`
	ReportType      ReportType `json:"report_type"`
	Frequency       Frequency  `json:"frequency"`
	DayOfWeek       *int       `json:"day_of_week,omitempty"`
	DayOfMonth      *int       `json:"day_of_month,omitempty"`
	TimeOfDay       string     `json:"time_of_day"`
	EmailRecipients []string   `json:"email_recipients"`
	IsActive        bool       `json:"is_active"`
	LastSentAt      *time.Time `json:"last_sent_at,omitempty"`
	NextSendAt      *time.Time `json:"next_send_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ScheduledReportFilter narrows a scheduled report query.
type ScheduledReportFilter struct {
	ActiveOnly bool
	ProjectID  *string
	// DueAt selects reports whose next_send_at is NULL or not after DueAt.
	DueAt *time.Time
	Limit int
}

// ProjectMetrics is the per-project aggregate row for a report window.
// HealthScore is nil when the project has no metrics in the window.
type ProjectMetrics struct {
	ProjectID           string
	Name                string
	Status              string
	IsActive            bool
	HealthScore         *float64
	IncidentCount       int
	CostImpact          float64
	RecommendationCount int
	PotentialSavings    float64
}

// CompiledReport is the rendered content of a report.
type CompiledReport struct {
	Subject string `json:"subject"`
	Content string `json:"content"`
}

// TaskReminder is a task that is due soon or overdue, with its assignee.
type TaskReminder struct {
	TaskID         string
	ProjectID      string
	ProjectName    string
	Title          string
	PlannedEnd     time.Time
	AssigneeUserID string
	AssigneeName   string
	AssigneeEmail  string
}

// TeamMember is a user assigned to a project.
type TeamMember struct {
	UserID string
	Name   string
	Email  string
}

// IncidentEvent describes a newly created waste incident.
type IncidentEvent struct {
	IncidentID        string   `json:"incident_id" validate:"required"`
	ProjectID         string   `json:"project_id" validate:"required"`
	Severity          Severity `json:"severity" validate:"required,oneof=low medium high critical"`
	Title             string   `json:"title" validate:"required"`
	Description       string   `json:"description,omitempty"`
	WasteCategoryCode string   `json:"waste_category_code,omitempty"`
}

// DomainEvent is the envelope published to the event queue.
type DomainEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Incident   *IncidentEvent `json:"incident,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	TraceID    string         `json:"trace_id,omitempty"`
}

// TriggerSummary counts the outcome of a trigger run.
type TriggerSummary struct {
	Dispatches int `json:"dispatches"`
	Delivered  int `json:"delivered"`
	Failed     int `json:"failed"`
	Errors     int `json:"errors"`
}

// Add folds a dispatch result into the summary.
func (s *TriggerSummary) Add(res *BatchResult) {
	if res == nil {
		return
	}
	s.Dispatches++
	ok := res.SuccessCount()
	s.Delivered += ok
	s.Failed += len(res.PerRecipient) - ok
}

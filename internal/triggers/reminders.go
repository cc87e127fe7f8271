package triggers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"leanpulse/internal/notifications/recipients"
	"leanpulse/internal/types"
)

// TaskReminders notifies assignees of tasks due within 24h (upcoming) or
// already past due (overdue). Only assignees with the task_reminders toggle
// are considered; each gets one dispatch per task per enabled channel. An
// assignee with email enabled but no preference address is reached at their
// account email.
func (s *Service) TaskReminders(ctx context.Context, now time.Time) (*types.TriggerSummary, error) {
	prefs, err := s.resolver.OptedIn(ctx, types.CategoryTaskReminders)
	if err != nil {
		return nil, fmt.Errorf("TaskReminders: %w", err)
	}
	sum := &types.TriggerSummary{}
	if len(prefs) == 0 {
		return sum, nil
	}

	byUser := make(map[string]*types.NotificationPreference, len(prefs))
	for _, p := range prefs {
		byUser[p.UserID] = p
	}

	tasks, err := s.tasks.GetTasksDueOrOverdue(ctx, now, reminderHorizon)
	if err != nil {
		return nil, fmt.Errorf("TaskReminders: %w", err)
	}

	horizon := now.Add(reminderHorizon)
	for _, task := range tasks {
		pref, ok := byUser[task.AssigneeUserID]
		if !ok {
			continue
		}
		userDests := assigneeDestinations(pref, task)
		if len(userDests) == 0 {
			continue
		}

		var notifType string
		switch {
		case task.PlannedEnd.Before(now):
			notifType = types.NotificationTypeTaskOverdue
		case !task.PlannedEnd.After(horizon):
			notifType = types.NotificationTypeTaskUpcoming
		default:
			continue
		}

		s.dispatchGroups(ctx, sum, recipients.GroupByChannel(userDests), types.Notification{
			Type:    notifType,
			Subject: s.reminderSubject(task, notifType),
			Content: s.reminderContent(task, notifType, now),
			Metadata: map[string]any{
				"task_id":      task.TaskID,
				"project_id":   task.ProjectID,
				"project_name": task.ProjectName,
				"planned_end":  s.formatTime(task.PlannedEnd),
			},
		})
	}

	s.logger.Info("task reminder trigger complete",
		"tasks", len(tasks), "dispatches", sum.Dispatches, "delivered", sum.Delivered, "failed", sum.Failed)
	return sum, nil
}

func assigneeDestinations(p *types.NotificationPreference, task types.TaskReminder) []types.Destination {
	dests := p.Destinations()
	fallback := strings.TrimSpace(task.AssigneeEmail)
	if p.EmailEnabled && strings.TrimSpace(p.EmailAddress) == "" && fallback != "" {
		userID := p.UserID
		dests = append(dests, types.Destination{
			Channel:   types.ChannelEmail,
			Recipient: types.Recipient{Address: fallback, UserID: &userID},
		})
	}
	return dests
}

func (s *Service) reminderSubject(t types.TaskReminder, notifType string) string {
	if notifType == types.NotificationTypeTaskOverdue {
		return "Overdue task: " + t.Title
	}
	return "Task due soon: " + t.Title
}

func (s *Service) reminderContent(t types.TaskReminder, notifType string, now time.Time) string {
	var b strings.Builder
	if name := strings.TrimSpace(t.AssigneeName); name != "" {
		fmt.Fprintf(&b, "Hi %s,\n\n", name)
	}
	if notifType == types.NotificationTypeTaskOverdue {
		fmt.Fprintf(&b, "Task %q is overdue by %s.\n", t.Title, humanizeDuration(now.Sub(t.PlannedEnd)))
	} else {
		fmt.Fprintf(&b, "Task %q is due in %s.\n", t.Title, humanizeDuration(t.PlannedEnd.Sub(now)))
	}
	fmt.Fprintf(&b, "Project: %s\n", t.ProjectName)
	fmt.Fprintf(&b, "Planned end: %s\n", s.formatTime(t.PlannedEnd))
	return b.String()
}

// humanizeDuration renders d as hours and minutes, or days and hours beyond
// two days.
func humanizeDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	if d < time.Minute {
		return "less than a minute"
	}
	if d >= 48*time.Hour {
		days := int(d / (24 * time.Hour))
		hours := int((d % (24 * time.Hour)) / time.Hour)
		return fmt.Sprintf("%dd %dh", days, hours)
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	if hours == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

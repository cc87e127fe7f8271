package triggers

import (
	"context"
	"fmt"
	"strings"

	"leanpulse/internal/notifications/recipients"
	"leanpulse/internal/types"
)

// IncidentCreated alerts every incident_alerts subscriber on each of their
// channels. A critical incident is also emailed to every project team member
// regardless of preferences; a member already reached at the same address on
// the same channel is not notified twice.
func (s *Service) IncidentCreated(ctx context.Context, ev types.IncidentEvent) (*types.TriggerSummary, error) {
	if err := s.validate.Struct(ev); err != nil {
		return nil, invalidEvent(err)
	}
	logger := s.logger.With("incident_id", ev.IncidentID, "project_id", ev.ProjectID, "severity", string(ev.Severity))

	dests, err := s.resolver.ResolveForCategory(ctx, types.CategoryIncidentAlerts)
	if err != nil {
		return nil, fmt.Errorf("IncidentCreated: %w", err)
	}

	subject := incidentSubject(ev)
	meta := map[string]any{
		"incident_id": ev.IncidentID,
		"project_id":  ev.ProjectID,
		"severity":    string(ev.Severity),
	}
	if ev.WasteCategoryCode != "" {
		meta["waste_category"] = ev.WasteCategoryCode
	}

	sum := &types.TriggerSummary{}
	s.dispatchGroups(ctx, sum, recipients.GroupByChannel(dests), types.Notification{
		Type:     types.NotificationTypeWasteAlert,
		Subject:  subject,
		Content:  incidentContent(ev, false),
		Metadata: meta,
	})

	if ev.Severity == types.SeverityCritical {
		s.escalate(ctx, logger, sum, ev, dests, subject, meta)
	}

	logger.Info("incident alert trigger complete",
		"dispatches", sum.Dispatches, "delivered", sum.Delivered, "failed", sum.Failed, "errors", sum.Errors)
	return sum, nil
}

func (s *Service) escalate(ctx context.Context, logger types.Logger, sum *types.TriggerSummary, ev types.IncidentEvent, alerted []types.Destination, subject string, meta map[string]any) {
	team, err := s.tasks.ListProjectTeam(ctx, ev.ProjectID)
	if err != nil {
		sum.Errors++
		logger.Error("failed to load project team for escalation", "error", err.Error())
		return
	}

	var teamDests []types.Destination
	for _, m := range team {
		if strings.TrimSpace(m.Email) == "" {
			continue
		}
		userID := m.UserID
		teamDests = append(teamDests, types.Destination{
			Channel:   types.ChannelEmail,
			Recipient: types.Recipient{Address: m.Email, UserID: &userID},
		})
	}

	// Merge keeps alerted first; the tail holds only members not yet reached.
	extra := recipients.Merge(alerted, teamDests)[len(alerted):]
	if len(extra) == 0 {
		return
	}
	s.dispatchGroups(ctx, sum, recipients.GroupByChannel(extra), types.Notification{
		Type:     types.NotificationTypeWasteAlertEscalation,
		Subject:  subject,
		Content:  incidentContent(ev, true),
		Metadata: meta,
	})
}

func incidentSubject(ev types.IncidentEvent) string {
	subject := "New waste incident: " + ev.Title
	if ev.Severity.Urgent() {
		subject = "[URGENT] " + subject
	}
	return subject
}

func incidentContent(ev types.IncidentEvent, escalation bool) string {
	var b strings.Builder
	if escalation {
		b.WriteString("A critical waste incident was reported on a project you are assigned to.\n\n")
	}
	fmt.Fprintf(&b, "Incident: %s\n", ev.Title)
	fmt.Fprintf(&b, "Severity: %s\n", strings.ToUpper(string(ev.Severity)))
	fmt.Fprintf(&b, "Project: %s\n", ev.ProjectID)
	if ev.WasteCategoryCode != "" {
		fmt.Fprintf(&b, "Waste category: %s\n", ev.WasteCategoryCode)
	}
	if d := strings.TrimSpace(ev.Description); d != "" {
		b.WriteString("\n")
		b.WriteString(d)
		b.WriteString("\n")
	}
	return b.String()
}

// Package triggers turns domain events and cron ticks into notifications:
// incident alerts with critical escalation, task reminders, and category
// digests. Every dispatch is isolated; failures are counted in the returned
// summary and never abort the batch.
package triggers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"leanpulse/internal/notifications/recipients"
	"leanpulse/internal/types"
)

// reminderHorizon is how far ahead a task counts as upcoming.
const reminderHorizon = 24 * time.Hour

// Resolver resolves opted-in users and their destinations for a category.
type Resolver interface {
	ResolveForCategory(ctx context.Context, c types.Category) ([]types.Destination, error)
	OptedIn(ctx context.Context, c types.Category) ([]*types.NotificationPreference, error)
}

// TaskStore reads task and team data.
type TaskStore interface {
	GetTasksDueOrOverdue(ctx context.Context, now time.Time, horizon time.Duration) ([]types.TaskReminder, error)
	ListProjectTeam(ctx context.Context, projectID string) ([]types.TeamMember, error)
}

// ReportCompiler renders report content for a window.
type ReportCompiler interface {
	Compile(ctx context.Context, reportType types.ReportType, projectID *string, start, end time.Time) (*types.CompiledReport, error)
}

// Service runs the triggers.
type Service struct {
	resolver   Resolver
	tasks      TaskStore
	compiler   ReportCompiler
	dispatcher types.Dispatcher
	validate   *validator.Validate
	loc        *time.Location
	logger     types.Logger
}

// Config holds the dependencies of a Service.
type Config struct {
	Resolver   Resolver
	Tasks      TaskStore
	Compiler   ReportCompiler
	Dispatcher types.Dispatcher
	Location   *time.Location
	Logger     types.Logger
}

func NewService(cfg Config) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Service{
		resolver:   cfg.Resolver,
		tasks:      cfg.Tasks,
		compiler:   cfg.Compiler,
		dispatcher: cfg.Dispatcher,
		validate:   validator.New(),
		loc:        loc,
		logger:     logger,
	}
}

// dispatchGroups issues one dispatch per channel group and folds the results
// into sum.
func (s *Service) dispatchGroups(ctx context.Context, sum *types.TriggerSummary, groups []recipients.ChannelGroup, base types.Notification) {
	for _, g := range groups {
		n := base
		n.Channel = g.Channel
		n.Recipients = g.Recipients
		res, err := s.dispatcher.Dispatch(ctx, n)
		if err != nil {
			sum.Errors++
			s.logger.Error("trigger dispatch failed",
				"notification_type", n.Type, "channel", string(n.Channel), "error", err.Error())
		}
		sum.Add(res)
	}
}

func (s *Service) formatTime(t time.Time) string {
	return t.In(s.loc).Format("Mon Jan 2, 2006 15:04 MST")
}

func invalidEvent(err error) error {
	return types.NewAppError(types.ErrCodeValidationMissingField, fmt.Sprintf("invalid incident event: %v", err), err)
}

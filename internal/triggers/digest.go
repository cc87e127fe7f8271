package triggers

import (
	"context"
	"fmt"
	"time"

	"leanpulse/internal/notifications/recipients"
	"leanpulse/internal/types"
)

type digestSpec struct {
	reportType types.ReportType
	window     func(now time.Time) time.Time
}

var digests = map[types.Category]digestSpec{
	types.CategoryWeeklyReports: {types.ReportWeeklyPerformance, func(now time.Time) time.Time { return now.AddDate(0, 0, -7) }},
	types.CategoryDailyStandups: {types.ReportProjectStatus, func(now time.Time) time.Time { return now.AddDate(0, 0, -1) }},
}

// CategoryDigest compiles the category's report across all projects once and
// sends it to every opted-in destination.
func (s *Service) CategoryDigest(ctx context.Context, c types.Category, now time.Time) (*types.TriggerSummary, error) {
	dg, ok := digests[c]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidCategory,
			fmt.Sprintf("category %q has no digest", c), nil)
	}

	dests, err := s.resolver.ResolveForCategory(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("CategoryDigest: %w", err)
	}
	sum := &types.TriggerSummary{}
	if len(dests) == 0 {
		return sum, nil
	}

	compiled, err := s.compiler.Compile(ctx, dg.reportType, nil, dg.window(now), now)
	if err != nil {
		return nil, fmt.Errorf("CategoryDigest: %w", err)
	}

	s.dispatchGroups(ctx, sum, recipients.GroupByChannel(dests), types.Notification{
		Type:     types.NotificationTypeCategoryDigest,
		Subject:  compiled.Subject,
		Content:  compiled.Content,
		Metadata: map[string]any{"category": string(c), "report_type": string(dg.reportType)},
	})

	s.logger.Info("category digest trigger complete", "category", string(c),
		"dispatches", sum.Dispatches, "delivered", sum.Delivered, "failed", sum.Failed)
	return sum, nil
}

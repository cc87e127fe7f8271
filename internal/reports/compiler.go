// Package reports aggregates project, waste and recommendation metrics into
// the text content of periodic reports.
package reports

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"text/template"
	"time"

	"leanpulse/internal/types"
)

// MetricsStore reads per-project aggregates for a window.
type MetricsStore interface {
	GetProjectMetrics(ctx context.Context, projectID *string, start, end time.Time) ([]types.ProjectMetrics, error)
}

// Compiler renders reports. Output depends only on the metrics returned and
// the window bounds.
type Compiler struct {
	metrics MetricsStore
	loc     *time.Location
	tmpl    *template.Template
}

// NewCompiler formats window bounds in loc (UTC when nil).
func NewCompiler(metrics MetricsStore, loc *time.Location) *Compiler {
	if loc == nil {
		loc = time.UTC
	}
	return &Compiler{
		metrics: metrics,
		loc:     loc,
		tmpl:    template.Must(template.New("report").Funcs(templateFuncs).Parse(reportTemplate)),
	}
}

// Summary is the cross-project aggregate of a report.
type Summary struct {
	TotalProjects   int
	ActiveProjects  int
	AvgHealth       *float64
	Incidents       int
	CostImpact      float64
	Recommendations int
	Savings         float64
}

type statusCount struct {
	Status string
	Count  int
}

type reportData struct {
	Title        string
	Period       string
	Scope        string
	Summary      Summary
	StatusCounts []statusCount
	SectionTitle string
	Projects     []types.ProjectMetrics
}

type layout struct {
	title   string
	section string
	order   func(ps []types.ProjectMetrics)
	status  bool
}

var layouts = map[types.ReportType]layout{
	types.ReportWeeklyPerformance: {title: "Weekly Performance Report", section: "Project breakdown", order: byName},
	types.ReportMonthlyWaste:      {title: "Monthly Waste Report", section: "Waste by project (highest cost impact first)", order: byCostImpact},
	types.ReportProjectStatus:     {title: "Project Status Report", section: "Projects", order: byName, status: true},
	types.Report5SScorecard:       {title: "5S Scorecard", section: "Health score ranking", order: byHealth},
}

// Compile aggregates metrics for projectID (nil for all projects) over
// [start, end] and renders the layout of reportType.
func (c *Compiler) Compile(ctx context.Context, reportType types.ReportType, projectID *string, start, end time.Time) (*types.CompiledReport, error) {
	lay, ok := layouts[reportType]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidReport,
			fmt.Sprintf("unknown report type %q", reportType), nil)
	}
	if end.Before(start) {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidWindow,
			"report window end is before start", nil)
	}

	projects, err := c.metrics.GetProjectMetrics(ctx, projectID, start, end)
	if err != nil {
		return nil, fmt.Errorf("Compile: %w", err)
	}
	projects = append([]types.ProjectMetrics(nil), projects...)
	lay.order(projects)

	data := reportData{
		Title:        lay.title,
		Period:       fmt.Sprintf("%s to %s", start.In(c.loc).Format(periodLayout), end.In(c.loc).Format(periodLayout)),
		Scope:        scopeLabel(projectID, projects),
		Summary:      Summarize(projects),
		SectionTitle: lay.section,
		Projects:     projects,
	}
	if lay.status {
		data.StatusCounts = countStatuses(projects)
	}

	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("Compile: render %s: %w", reportType, err)
	}

	subject := fmt.Sprintf("%s: %s to %s", lay.title,
		start.In(c.loc).Format(time.DateOnly), end.In(c.loc).Format(time.DateOnly))
	if projectID != nil {
		subject = fmt.Sprintf("%s (%s)", subject, data.Scope)
	}

	return &types.CompiledReport{Subject: subject, Content: buf.String()}, nil
}

// Summarize folds per-project rows. The health average covers only projects
// that have a score.
func Summarize(projects []types.ProjectMetrics) Summary {
	var (
		s      Summary
		sum    float64
		scored int
	)
	for _, p := range projects {
		s.TotalProjects++
		if p.IsActive {
			s.ActiveProjects++
		}
		if p.HealthScore != nil {
			sum += *p.HealthScore
			scored++
		}
		s.Incidents += p.IncidentCount
		s.CostImpact += p.CostImpact
		s.Recommendations += p.RecommendationCount
		s.Savings += p.PotentialSavings
	}
	if scored > 0 {
		avg := sum / float64(scored)
		s.AvgHealth = &avg
	}
	return s
}

func scopeLabel(projectID *string, projects []types.ProjectMetrics) string {
	if projectID == nil {
		return "All projects"
	}
	for _, p := range projects {
		if p.ProjectID == *projectID {
			return displayName(p)
		}
	}
	return "Project " + *projectID
}

func countStatuses(projects []types.ProjectMetrics) []statusCount {
	counts := map[string]int{}
	for _, p := range projects {
		st := p.Status
		if st == "" {
			st = "unknown"
		}
		counts[st]++
	}
	out := make([]statusCount, 0, len(counts))
	for st, n := range counts {
		out = append(out, statusCount{Status: st, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out
}

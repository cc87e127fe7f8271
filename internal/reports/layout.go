package reports

import (
	"fmt"
	"sort"
	"strings"
	"text/template"

	"leanpulse/internal/types"
)

const periodLayout = "2006-01-02 15:04 MST"

const reportTemplate = `{{.Title}}
Period: {{.Period}}
Scope: {{.Scope}}

Summary
- Active projects: {{.Summary.ActiveProjects}} of {{.Summary.TotalProjects}}
- Average health score: {{score .Summary.AvgHealth}}
- Waste incidents: {{.Summary.Incidents}}
- Total cost impact: {{money .Summary.CostImpact}}
- Recommendations: {{.Summary.Recommendations}}
- Potential savings: {{money .Summary.Savings}}
{{- if .StatusCounts}}

Status overview
{{- range .StatusCounts}}
- {{.Status}}: {{.Count}}
{{- end}}
{{- end}}

{{.SectionTitle}}
{{- range $i, $p := .Projects}}
{{inc $i}}. {{name $p}} [{{status $p}}] health {{score $p.HealthScore}}, incidents {{$p.IncidentCount}}, cost {{money $p.CostImpact}}, recommendations {{$p.RecommendationCount}}, savings {{money $p.PotentialSavings}}
{{- else}}
No projects in scope.
{{- end}}
`

var templateFuncs = template.FuncMap{
	"money":  formatMoney,
	"score":  formatScore,
	"inc":    func(i int) int { return i + 1 },
	"name":   displayName,
	"status": statusLabel,
}

// formatMoney rounds only for display; sums stay unrounded.
func formatMoney(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func formatScore(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", *v)
}

func statusLabel(p types.ProjectMetrics) string {
	st := p.Status
	if st == "" {
		st = "unknown"
	}
	if !p.IsActive {
		st += ", inactive"
	}
	return st
}

func displayName(p types.ProjectMetrics) string {
	if strings.TrimSpace(p.Name) == "" {
		return p.ProjectID
	}
	return p.Name
}

func nameLess(a, b types.ProjectMetrics) bool {
	if an, bn := strings.ToLower(displayName(a)), strings.ToLower(displayName(b)); an != bn {
		return an < bn
	}
	return a.ProjectID < b.ProjectID
}

func byName(ps []types.ProjectMetrics) {
	sort.SliceStable(ps, func(i, j int) bool { return nameLess(ps[i], ps[j]) })
}

func byCostImpact(ps []types.ProjectMetrics) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].CostImpact != ps[j].CostImpact {
			return ps[i].CostImpact > ps[j].CostImpact
		}
		return nameLess(ps[i], ps[j])
	})
}

// byHealth ranks scored projects first, highest score first.
func byHealth(ps []types.ProjectMetrics) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := ps[i].HealthScore, ps[j].HealthScore
		switch {
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		case a != nil && b != nil && *a != *b:
			return *a > *b
		}
		return nameLess(ps[i], ps[j])
	})
}

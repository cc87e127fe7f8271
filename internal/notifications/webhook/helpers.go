package webhook

import (
	"fmt"
	"strings"
)

const defaultTitle = "LeanPulse Notification"

// factKeys are the metadata keys rendered as fields, in display order.
var factKeys = []struct {
	key   string
	label string
}{
	{"project_name", "Project"},
	{"severity", "Severity"},
	{"waste_category", "Waste Category"},
	{"report_type", "Report"},
	{"planned_end", "Due"},
}

type fact struct {
	label string
	value string
}

func metadataFacts(meta map[string]any) []fact {
	var out []fact
	for _, k := range factKeys {
		v, ok := meta[k.key]
		if !ok || v == nil {
			continue
		}
		s := fmt.Sprint(v)
		if s == "" {
			continue
		}
		if k.key == "severity" {
			s = capitalizeFirst(s)
		}
		out = append(out, fact{label: k.label, value: s})
	}
	return out
}

func titleOf(subject string) string {
	if strings.TrimSpace(subject) == "" {
		return defaultTitle
	}
	return subject
}

func isUrgent(subject string) bool {
	return strings.Contains(subject, "[URGENT]")
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

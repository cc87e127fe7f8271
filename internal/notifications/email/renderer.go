package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/notification.html
var templateFS embed.FS

// Renderer wraps plain-text notification content into the HTML body of the
// outgoing email. The text body is always the content unchanged.
type Renderer struct {
	tmpl     *template.Template
	fromName string
}

type htmlData struct {
	Subject    string
	Paragraphs []string
	Accent     string
	FromName   string
}

// NewRenderer parses the embedded layout.
func NewRenderer(fromName string) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/notification.html")
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to parse layout: %w", err)
	}
	return &Renderer{tmpl: tmpl, fromName: fromName}, nil
}

// RenderHTML renders subject and content. Blank lines in content separate
// paragraphs. Subjects carrying the [URGENT] marker get a red accent.
func (r *Renderer) RenderHTML(subject, content string) (string, error) {
	accent := "#2563eb"
	if strings.Contains(subject, "[URGENT]") {
		accent = "#dc2626"
	}

	var paragraphs []string
	for _, p := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, htmlData{
		Subject:    subject,
		Paragraphs: paragraphs,
		Accent:     accent,
		FromName:   r.fromName,
	}); err != nil {
		return "", fmt.Errorf("renderer: failed to render: %w", err)
	}
	return buf.String(), nil
}

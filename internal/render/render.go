// Package render merges tailored resume data into a text template.
package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"regexp"
	"text/template"

	"job_applier/internal/domain"
)

// missingFieldRe pulls the field name out of text/template's
// missingkey=error message so failures name the offending merge field.
var missingFieldRe = regexp.MustCompile(`map has no entry for key "([^"]+)"|can't evaluate field ([A-Za-z0-9_]+)`)

type Renderer struct {
	tmpl *template.Template
}

// New parses the template at path. Unknown merge fields fail at render
// time, not parse time, so a stale template surfaces per record.
func New(path string) (*Renderer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}

	tmpl, err := template.New("resume").Option("missingkey=error").Funcs(template.FuncMap{
		"join": joinStrings,
	}).Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	return &Renderer{tmpl: tmpl}, nil
}

func (r *Renderer) Render(_ context.Context, tailored *domain.TailoredResume) ([]byte, error) {
	if tailored == nil {
		return nil, fmt.Errorf("%w: nil tailored resume", domain.ErrInvalidInput)
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, tailored); err != nil {
		if m := missingFieldRe.FindStringSubmatch(err.Error()); m != nil {
			field := m[1]
			if field == "" {
				field = m[2]
			}
			return nil, fmt.Errorf("%w: %s", domain.ErrTemplateFieldMissing, field)
		}
		return nil, fmt.Errorf("execute template: %w", err)
	}
	return buf.Bytes(), nil
}

func joinStrings(sep string, items []string) string {
	var buf bytes.Buffer
	for i, it := range items {
		if i > 0 {
			buf.WriteString(sep)
		}
		buf.WriteString(it)
	}
	return buf.String()
}

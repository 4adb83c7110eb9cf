package render

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job_applier/internal/domain"
)

func writeTemplate(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resume.tmpl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func sampleResume() *domain.TailoredResume {
	return &domain.TailoredResume{
		ResumeData: domain.ResumeData{
			PersonalInfo: domain.PersonalInfo{
				Name:  "Alex Morgan",
				Title: "Software Engineer",
				Email: "alex@example.com",
			},
			Summary: "Backend engineer.",
			Skills: map[string][]string{
				"Languages": {"Go", "SQL"},
			},
			Experience: []domain.Experience{
				{
					Role:             "Engineer",
					Company:          "Acme",
					Duration:         "2022 - Present",
					Responsibilities: []string{"Built services."},
				},
			},
			Education: []domain.Education{
				{Degree: "BSc", Institution: "University"},
			},
		},
	}
}

func TestRender(t *testing.T) {
	path := writeTemplate(t, "# {{.PersonalInfo.Name}}\n\n{{.Summary}}\n{{join \", \" (index .Skills \"Languages\")}}")

	r, err := New(path)
	require.NoError(t, err)

	out, err := r.Render(context.Background(), sampleResume())
	require.NoError(t, err)
	assert.Contains(t, string(out), "# Alex Morgan")
	assert.Contains(t, string(out), "Backend engineer.")
	assert.Contains(t, string(out), "Go, SQL")
}

func TestRender_DefaultTemplate(t *testing.T) {
	r, err := New("../../assets/resume_template.tmpl")
	require.NoError(t, err)

	out, err := r.Render(context.Background(), sampleResume())
	require.NoError(t, err)
	assert.Contains(t, string(out), "# Alex Morgan")
	assert.Contains(t, string(out), "## Experience")
	assert.Contains(t, string(out), "Engineer — Acme")
}

func TestRender_MissingFieldNamed(t *testing.T) {
	path := writeTemplate(t, "{{.Skills.Frameworks}}")

	r, err := New(path)
	require.NoError(t, err)

	_, err = r.Render(context.Background(), sampleResume())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTemplateFieldMissing)
	assert.Contains(t, err.Error(), "Frameworks")
}

func TestRender_NilInput(t *testing.T) {
	path := writeTemplate(t, "static")
	r, err := New(path)
	require.NoError(t, err)

	_, err = r.Render(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNew_BadTemplate(t *testing.T) {
	path := writeTemplate(t, "{{.Unclosed")
	_, err := New(path)
	assert.Error(t, err)
}

func TestNew_MissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope.tmpl"))
	assert.Error(t, err)
}

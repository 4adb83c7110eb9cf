package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job_applier/internal/domain"
)

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Go Engineer", CleanText("  Go\n\tEngineer  "))
	assert.Equal(t, "", CleanText("   "))
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "Build APIs in Go", StripHTML("<p>Build <b>APIs</b> in Go</p>"))
	assert.Equal(t, "no markup", StripHTML("no markup"))
}

func TestAbsoluteURL(t *testing.T) {
	assert.Equal(t, "https://example.com/jobs/1", AbsoluteURL("https://example.com/api", "/jobs/1"))
	assert.Equal(t, "https://other.com/x", AbsoluteURL("https://example.com", "https://other.com/x"))
	assert.Equal(t, "", AbsoluteURL("https://example.com", "  "))
}

func TestAnnualizeSalary(t *testing.T) {
	tests := []struct {
		period   string
		amount   float64
		expected float64
	}{
		{"hour", 50, 104000},
		{"day", 500, 130000},
		{"week", 1000, 52000},
		{"month", 5000, 60000},
		{"year", 80000, 80000},
		{"", 80000, 80000},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			assert.Equal(t, tt.expected, AnnualizeSalary(tt.amount, tt.period))
		})
	}
}

func TestSalaryRange_ZeroMapsToNil(t *testing.T) {
	lo, hi := SalaryRange(0, 90000, "year")
	assert.Nil(t, lo)
	require.NotNil(t, hi)
	assert.Equal(t, 90000.0, *hi)

	lo, hi = SalaryRange(0, 0, "year")
	assert.Nil(t, lo)
	assert.Nil(t, hi)
}

func TestRequire(t *testing.T) {
	valid := &domain.Posting{Title: "Go Engineer", Company: "Acme", URL: "https://x/1"}
	assert.NoError(t, Require(valid))

	missing := &domain.Posting{Title: "Go Engineer"}
	err := Require(missing)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedRecord)
	assert.Contains(t, err.Error(), "company")
	assert.Contains(t, err.Error(), "url")
}

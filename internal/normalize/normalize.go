// Package normalize holds the field-cleaning helpers shared by the
// per-source adapters.
package normalize

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"job_applier/internal/domain"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	tagRe        = regexp.MustCompile(`<[^>]*>`)
)

// CleanText collapses runs of whitespace and trims the result.
func CleanText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// StripHTML removes markup from source descriptions, then cleans whitespace.
func StripHTML(s string) string {
	return CleanText(tagRe.ReplaceAllString(s, " "))
}

// AbsoluteURL resolves href against base when the source hands back a
// relative link.
func AbsoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() {
		return u.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	return b.ResolveReference(u).String()
}

// Salary periods some sources report instead of annual figures.
const (
	hoursPerYear  = 2080
	weeksPerYear  = 52
	monthsPerYear = 12
	daysPerYear   = 260
)

// AnnualizeSalary converts a salary figure to an annual amount based on the
// source-reported period. Unknown periods are assumed annual.
func AnnualizeSalary(amount float64, period string) float64 {
	switch strings.ToLower(strings.TrimSpace(period)) {
	case "hour", "hourly", "ph":
		return amount * hoursPerYear
	case "day", "daily":
		return amount * daysPerYear
	case "week", "weekly":
		return amount * weeksPerYear
	case "month", "monthly":
		return amount * monthsPerYear
	default:
		return amount
	}
}

// SalaryRange annualizes an optional min/max pair. Zero values map to nil.
func SalaryRange(min, max float64, period string) (*float64, *float64) {
	var lo, hi *float64
	if min > 0 {
		v := AnnualizeSalary(min, period)
		lo = &v
	}
	if max > 0 {
		v := AnnualizeSalary(max, period)
		hi = &v
	}
	return lo, hi
}

// Require validates the fields every posting must carry. The pipeline skips
// records failing this check instead of aborting the batch.
func Require(p *domain.Posting) error {
	var missing []string
	if p.Title == "" {
		missing = append(missing, "title")
	}
	if p.Company == "" {
		missing = append(missing, "company")
	}
	if p.URL == "" {
		missing = append(missing, "url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrMalformedRecord, strings.Join(missing, ", "))
	}
	return nil
}

package pipeline

import (
	"strings"

	"job_applier/internal/domain"
)

// Criteria decides which discovered postings are worth applying to.
// Matching is side-effect-free so the filter pass can re-run every cycle.
type Criteria struct {
	Keywords         []string
	ExcludedKeywords []string
	Locations        []string
	SalaryFloor      float64
}

// Matches reports whether a posting passes the criteria.
func (c Criteria) Matches(p *domain.Posting) bool {
	text := strings.ToLower(p.Title + " " + p.Description)

	for _, kw := range c.ExcludedKeywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return false
		}
	}

	if len(c.Keywords) > 0 && !containsAny(text, c.Keywords) {
		return false
	}

	if len(c.Locations) > 0 {
		loc := strings.ToLower(p.Location)
		// A posting that advertises remote work matches regardless of the
		// listed office location.
		if !containsAny(loc, c.Locations) && !strings.Contains(loc, "remote") && !strings.Contains(text, "remote") {
			return false
		}
	}

	if c.SalaryFloor > 0 {
		// Postings without salary data pass the floor; filtering them out
		// would discard most listings.
		if p.SalaryMax != nil && *p.SalaryMax < c.SalaryFloor {
			return false
		}
		if p.SalaryMax == nil && p.SalaryMin != nil && *p.SalaryMin < c.SalaryFloor {
			return false
		}
	}

	return true
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(haystack, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

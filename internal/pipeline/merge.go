package pipeline

import "job_applier/internal/domain"

// mergePosting folds a new sighting into an existing record. Fields win by
// completeness, never by write order: a value present in only one source
// must survive the merge. Status is never touched here.
func mergePosting(rec *domain.ApplicationRecord, p *domain.Posting) {
	rec.AddSource(p.SourceName)

	if rec.Title == "" {
		rec.Title = p.Title
	}
	if rec.Company == "" {
		rec.Company = p.Company
	}
	if rec.Location == "" {
		rec.Location = p.Location
	}
	if rec.URL == "" {
		rec.URL = p.URL
	}
	// Descriptions vary in completeness across boards; keep the fuller one.
	if len(p.Description) > len(rec.Description) {
		rec.Description = p.Description
	}
	if rec.SalaryMin == nil && p.SalaryMin != nil {
		rec.SalaryMin = p.SalaryMin
	}
	if rec.SalaryMax == nil && p.SalaryMax != nil {
		rec.SalaryMax = p.SalaryMax
	}
	if rec.PostedAt == nil && p.PostedAt != nil {
		rec.PostedAt = p.PostedAt
	}
}

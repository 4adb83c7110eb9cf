package domain

import "time"

// Posting is the canonical representation of one job listing after
// normalization. SourceName/ExternalID are unique per source only;
// Fingerprint is the true primary key across sources.
type Posting struct {
	SourceName  string
	ExternalID  string
	Fingerprint string
	Title       string
	Company     string
	Location    string
	SalaryMin   *float64 // annual
	SalaryMax   *float64
	Description string
	URL         string
	PostedAt    *time.Time
	SourcesSeen []string
}

// ApplicationRecord is the per-fingerprint row tracking the application
// lifecycle. Records are never physically deleted; terminal states are
// retained for history.
type ApplicationRecord struct {
	Posting

	Status           Status
	ResumeVariantRef *string
	TailoredResume   *string // tailored resume payload, set once tailoring succeeded
	AttemptCount     int
	LastError        *string
	Ambiguous        bool // fingerprint match was fuzzy and contested, needs manual review
	Version          int64
	CreatedAt        time.Time
	LastUpdatedAt    time.Time
}

// SeenBy reports whether sourceName already contributed to this record.
func (p *Posting) SeenBy(sourceName string) bool {
	for _, s := range p.SourcesSeen {
		if s == sourceName {
			return true
		}
	}
	return false
}

// AddSource unions sourceName into SourcesSeen.
func (p *Posting) AddSource(sourceName string) {
	if !p.SeenBy(sourceName) {
		p.SourcesSeen = append(p.SourcesSeen, sourceName)
	}
}

// Package store defines the durable table contract the pipeline and
// lifecycle engine write through. Implementations live in the postgres and
// sheet subpackages.
package store

//go:generate mockgen -source=store.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"job_applier/internal/domain"
)

// Filter narrows a Query. Zero fields match everything.
type Filter struct {
	Statuses  []domain.Status
	Source    string
	Ambiguous *bool
}

// RecordStore is the single source of truth for application records.
// Upsert performs an optimistic-concurrency check against Version: a stale
// write fails with domain.ErrStoreConflict and the caller re-reads and
// retries. Get returns domain.ErrNotFound for unknown fingerprints.
type RecordStore interface {
	Get(ctx context.Context, fingerprint string) (*domain.ApplicationRecord, error)
	Upsert(ctx context.Context, rec *domain.ApplicationRecord) error
	Query(ctx context.Context, f Filter) ([]domain.ApplicationRecord, error)
}

// Matches reports whether rec passes the filter.
func (f Filter) Matches(rec *domain.ApplicationRecord) bool {
	if f.Source != "" && !rec.SeenBy(f.Source) {
		return false
	}
	if f.Ambiguous != nil && rec.Ambiguous != *f.Ambiguous {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if rec.Status == s {
			return true
		}
	}
	return false
}

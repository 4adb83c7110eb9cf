package pipeline

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"encoding/json"

	"job_applier/internal/domain"
)

// Source is one job board: a search client plus the normalizer adapter for
// its record shape. Search failures are per-source and never abort the run.
type Source interface {
	ID() string
	Name() string
	Search(ctx context.Context, criteria domain.SearchCriteria) ([]json.RawMessage, error)
	Normalize(raw json.RawMessage) (domain.Posting, error)
}

// Publisher emits status-change events for downstream consumers. A nil
// publisher disables publishing.
type Publisher interface {
	PublishStatus(ctx context.Context, rec *domain.ApplicationRecord, from domain.Status) error
	Close() error
}

package lifecycle

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"job_applier/internal/domain"
)

// TailoringGateway produces posting-specific resume content. Failures map
// onto the domain taxonomy: ErrRateLimited is retryable, ErrServiceError
// and ErrInvalidInput are not.
type TailoringGateway interface {
	Tailor(ctx context.Context, base *domain.ResumeData, posting *domain.Posting) (*domain.TailoredResume, error)
}

// DocumentRenderer merges tailored resume data into the configured template.
// A merge field without data fails with domain.ErrTemplateFieldMissing.
type DocumentRenderer interface {
	Render(ctx context.Context, tailored *domain.TailoredResume) ([]byte, error)
}

// Publisher emits status-change events. A nil publisher disables publishing.
type Publisher interface {
	PublishStatus(ctx context.Context, rec *domain.ApplicationRecord, from domain.Status) error
	Close() error
}

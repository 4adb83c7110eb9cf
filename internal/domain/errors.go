package domain

import "errors"

var (
	// ErrMalformedRecord marks a raw source record missing required fields.
	// The pipeline skips the record and continues the batch.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrSourceUnavailable marks a whole source batch as failed for this run.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrRateLimited is retryable with backoff up to the configured budget.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceError is a non-retryable collaborator failure.
	ErrServiceError = errors.New("service error")

	// ErrInvalidInput means the collaborator rejected the request payload.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTemplateFieldMissing means a referenced merge field has no data.
	ErrTemplateFieldMissing = errors.New("template field missing")

	// ErrStoreConflict is an optimistic-concurrency failure. Callers re-read
	// and retry the upsert.
	ErrStoreConflict = errors.New("store conflict")

	// ErrNotFound means no record exists for the fingerprint.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidTransition means the requested status move is not on the
	// lifecycle graph.
	ErrInvalidTransition = errors.New("invalid status transition")
)

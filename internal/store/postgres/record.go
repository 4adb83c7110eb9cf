// Package postgres implements the record store on PostgreSQL with
// optimistic concurrency: every committed write bumps the row version and a
// stale version fails the upsert.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"job_applier/internal/domain"
	"job_applier/internal/store"
)

type RecordStore struct {
	db *sqlx.DB
}

func NewRecordStore(db *sqlx.DB) *RecordStore {
	return &RecordStore{db: db}
}

type recordRow struct {
	Fingerprint      string         `db:"fingerprint"`
	SourceName       string         `db:"source_name"`
	ExternalID       string         `db:"external_id"`
	Title            string         `db:"title"`
	Company          string         `db:"company"`
	Location         string         `db:"location"`
	SalaryMin        *float64       `db:"salary_min"`
	SalaryMax        *float64       `db:"salary_max"`
	Description      string         `db:"description"`
	URL              string         `db:"url"`
	PostedAt         *time.Time     `db:"posted_at"`
	SourcesSeen      pq.StringArray `db:"sources_seen"`
	Status           string         `db:"status"`
	ResumeVariantRef *string        `db:"resume_variant_ref"`
	TailoredResume   *string        `db:"tailored_resume"`
	AttemptCount     int            `db:"attempt_count"`
	LastError        *string        `db:"last_error"`
	Ambiguous        bool           `db:"ambiguous"`
	Version          int64          `db:"version"`
	CreatedAt        time.Time      `db:"created_at"`
	LastUpdatedAt    time.Time      `db:"last_updated_at"`
}

func (r recordRow) toDomain() domain.ApplicationRecord {
	return domain.ApplicationRecord{
		Posting: domain.Posting{
			SourceName:  r.SourceName,
			ExternalID:  r.ExternalID,
			Fingerprint: r.Fingerprint,
			Title:       r.Title,
			Company:     r.Company,
			Location:    r.Location,
			SalaryMin:   r.SalaryMin,
			SalaryMax:   r.SalaryMax,
			Description: r.Description,
			URL:         r.URL,
			PostedAt:    r.PostedAt,
			SourcesSeen: r.SourcesSeen,
		},
		Status:           domain.Status(r.Status),
		ResumeVariantRef: r.ResumeVariantRef,
		TailoredResume:   r.TailoredResume,
		AttemptCount:     r.AttemptCount,
		LastError:        r.LastError,
		Ambiguous:        r.Ambiguous,
		Version:          r.Version,
		CreatedAt:        r.CreatedAt,
		LastUpdatedAt:    r.LastUpdatedAt,
	}
}

func (s *RecordStore) Get(ctx context.Context, fingerprint string) (*domain.ApplicationRecord, error) {
	var row recordRow
	query := `SELECT * FROM applications WHERE fingerprint = $1`

	err := s.db.GetContext(ctx, &row, query, fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec := row.toDomain()
	return &rec, nil
}

// Upsert inserts a new record (Version 0) or updates an existing one
// guarded by its version. The committed version is written back into rec.
func (s *RecordStore) Upsert(ctx context.Context, rec *domain.ApplicationRecord) error {
	if rec.Version == 0 {
		return s.insert(ctx, rec)
	}
	return s.update(ctx, rec)
}

func (s *RecordStore) insert(ctx context.Context, rec *domain.ApplicationRecord) error {
	query := `
		INSERT INTO applications (
			fingerprint, source_name, external_id, title, company, location,
			salary_min, salary_max, description, url, posted_at, sources_seen,
			status, resume_variant_ref, tailored_resume, attempt_count,
			last_error, ambiguous, version, created_at, last_updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, 1, $19, $20
		)
		ON CONFLICT (fingerprint) DO NOTHING
		RETURNING version`

	var version int64
	err := s.db.QueryRowContext(ctx, query,
		rec.Fingerprint,
		rec.SourceName,
		rec.ExternalID,
		rec.Title,
		rec.Company,
		rec.Location,
		rec.SalaryMin,
		rec.SalaryMax,
		rec.Description,
		rec.URL,
		rec.PostedAt,
		pq.Array(rec.SourcesSeen),
		string(rec.Status),
		rec.ResumeVariantRef,
		rec.TailoredResume,
		rec.AttemptCount,
		rec.LastError,
		rec.Ambiguous,
		rec.CreatedAt,
		rec.LastUpdatedAt,
	).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		// A concurrent run inserted this fingerprint first.
		return domain.ErrStoreConflict
	}
	if err != nil {
		return err
	}

	rec.Version = version
	return nil
}

func (s *RecordStore) update(ctx context.Context, rec *domain.ApplicationRecord) error {
	query := `
		UPDATE applications SET
			source_name = $3, external_id = $4, title = $5, company = $6,
			location = $7, salary_min = $8, salary_max = $9, description = $10,
			url = $11, posted_at = $12, sources_seen = $13, status = $14,
			resume_variant_ref = $15, tailored_resume = $16, attempt_count = $17,
			last_error = $18, ambiguous = $19, last_updated_at = $20,
			version = applications.version + 1
		WHERE fingerprint = $1 AND version = $2
		RETURNING version`

	var version int64
	err := s.db.QueryRowContext(ctx, query,
		rec.Fingerprint,
		rec.Version,
		rec.SourceName,
		rec.ExternalID,
		rec.Title,
		rec.Company,
		rec.Location,
		rec.SalaryMin,
		rec.SalaryMax,
		rec.Description,
		rec.URL,
		rec.PostedAt,
		pq.Array(rec.SourcesSeen),
		string(rec.Status),
		rec.ResumeVariantRef,
		rec.TailoredResume,
		rec.AttemptCount,
		rec.LastError,
		rec.Ambiguous,
		rec.LastUpdatedAt,
	).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrStoreConflict
	}
	if err != nil {
		return err
	}

	rec.Version = version
	return nil
}

func (s *RecordStore) Query(ctx context.Context, f store.Filter) ([]domain.ApplicationRecord, error) {
	var (
		conds []string
		args  []interface{}
	)

	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		args = append(args, pq.Array(statuses))
		conds = append(conds, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if f.Source != "" {
		args = append(args, f.Source)
		conds = append(conds, fmt.Sprintf("$%d = ANY(sources_seen)", len(args)))
	}
	if f.Ambiguous != nil {
		args = append(args, *f.Ambiguous)
		conds = append(conds, fmt.Sprintf("ambiguous = $%d", len(args)))
	}

	query := `SELECT * FROM applications`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at"

	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	records := make([]domain.ApplicationRecord, len(rows))
	for i, row := range rows {
		records[i] = row.toDomain()
	}
	return records, nil
}

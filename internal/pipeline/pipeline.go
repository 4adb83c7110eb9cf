// Package pipeline aggregates postings from all configured sources,
// establishes their canonical identity, merges them into the store and
// applies the filter criteria.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"job_applier/internal/domain"
	"job_applier/internal/identity"
	"job_applier/internal/store"
)

// maxConflictRetries bounds the re-read-and-retry loop on optimistic
// concurrency failures.
const maxConflictRetries = 3

type Pipeline struct {
	sources   []Source
	store     store.RecordStore
	resolver  *identity.Resolver
	criteria  Criteria
	search    domain.SearchCriteria
	publisher Publisher
	logger    *slog.Logger
}

func New(
	sources []Source,
	st store.RecordStore,
	resolver *identity.Resolver,
	criteria Criteria,
	search domain.SearchCriteria,
	publisher Publisher,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		sources:   sources,
		store:     st,
		resolver:  resolver,
		criteria:  criteria,
		search:    search,
		publisher: publisher,
		logger:    logger.With("component", "pipeline"),
	}
}

// Run fetches all sources concurrently, ingests every batch and re-applies
// the filter criteria across the store. A failing source is reported and
// skipped; only a store failure aborts the run.
func (pl *Pipeline) Run(ctx context.Context) (*domain.RunReport, error) {
	startTime := time.Now()
	report := &domain.RunReport{
		RunID:      uuid.NewString(),
		SourceErrs: make(map[string]string),
	}

	pl.logger.Info("starting ingest run", "run_id", report.RunID, "sources", len(pl.sources))

	// Fuzzy candidates are indexed once per run.
	pl.resolver.Reset()

	type fetchResult struct {
		raws []json.RawMessage
		err  error
	}
	results := make([]fetchResult, len(pl.sources))

	// Fetches run in parallel; store writes stay on this goroutine so all
	// merges for a fingerprint are serialized through a single writer.
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range pl.sources {
		g.Go(func() error {
			raws, err := src.Search(gctx, pl.search)
			results[i] = fetchResult{raws: raws, err: err}
			return nil
		})
	}
	_ = g.Wait()

	for i, src := range pl.sources {
		res := results[i]
		if res.err != nil {
			pl.logger.Error("source fetch failed", "source", src.Name(), "error", res.err)
			report.SourceErrs[src.Name()] = fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, res.err).Error()
		}
		// A source may return a partial batch alongside its error.
		if len(res.raws) == 0 && res.err != nil {
			continue
		}

		ingest, err := pl.Ingest(ctx, res.raws, src)
		if err != nil {
			return report, fmt.Errorf("ingest %s: %w", src.ID(), err)
		}
		report.Ingests = append(report.Ingests, ingest)
	}

	if err := pl.reevaluate(ctx, report); err != nil {
		return report, fmt.Errorf("re-evaluate filter: %w", err)
	}

	report.Duration = time.Since(startTime)

	pl.logger.Info("ingest run completed",
		"run_id", report.RunID,
		"inserted", report.Inserted(),
		"merged", report.Merged(),
		"promoted", report.Promoted,
		"record_errors", report.RecordErrors(),
		"source_errors", len(report.SourceErrs),
		"duration", report.Duration,
	)

	return report, nil
}

// Ingest normalizes, fingerprints and merges one source's raw batch.
// Malformed records are skipped and reported; a store failure other than a
// retried conflict is fatal.
func (pl *Pipeline) Ingest(ctx context.Context, raws []json.RawMessage, src Source) (domain.IngestReport, error) {
	report := domain.IngestReport{
		SourceName: src.Name(),
		Fetched:    len(raws),
	}

	for _, raw := range raws {
		out, err := pl.ingestOne(ctx, src, raw)
		if err != nil {
			if errors.Is(err, domain.ErrMalformedRecord) {
				pl.logger.Warn("skipping malformed record", "source", src.Name(), "error", err)
				report.Errors = append(report.Errors, domain.RecordError{
					SourceName: src.Name(),
					Reason:     err.Error(),
				})
				continue
			}
			return report, err
		}

		if out.inserted {
			report.Inserted++
		} else {
			report.Merged++
		}
		switch out.status {
		case domain.StatusEligible:
			report.Eligible++
		case domain.StatusFilteredOut:
			report.Filtered++
		}
	}

	pl.logger.Info("batch ingested",
		"source", src.Name(),
		"fetched", report.Fetched,
		"inserted", report.Inserted,
		"merged", report.Merged,
		"eligible", report.Eligible,
		"filtered", report.Filtered,
		"errors", len(report.Errors),
	)

	return report, nil
}

type ingestOutcome struct {
	inserted bool
	status   domain.Status
}

func (pl *Pipeline) ingestOne(ctx context.Context, src Source, raw json.RawMessage) (ingestOutcome, error) {
	var out ingestOutcome

	p, err := src.Normalize(raw)
	if err != nil {
		return out, err
	}
	p.Fingerprint = identity.Fingerprint(&p)

	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		rec, ambiguous, err := pl.resolver.Resolve(ctx, pl.store, &p)
		if err != nil {
			return out, err
		}

		now := time.Now().UTC()
		var from domain.Status

		if rec == nil {
			rec = &domain.ApplicationRecord{
				Posting:   p,
				Status:    domain.StatusDiscovered,
				CreatedAt: now,
			}
			rec.SourcesSeen = []string{p.SourceName}
			out.inserted = true
		} else {
			from = rec.Status
			mergePosting(rec, &p)
			if ambiguous {
				rec.Ambiguous = true
			}
			out.inserted = false
		}

		pl.applyFilter(rec)
		rec.LastUpdatedAt = now

		err = pl.store.Upsert(ctx, rec)
		if errors.Is(err, domain.ErrStoreConflict) {
			// Another writer got there first: re-read and redo the merge.
			out = ingestOutcome{}
			continue
		}
		if err != nil {
			return out, err
		}

		out.status = rec.Status
		if out.inserted {
			pl.resolver.Note(rec)
		}
		pl.publish(ctx, rec, from)
		return out, nil
	}

	return out, domain.ErrStoreConflict
}

// applyFilter assigns the filter decision. Only DISCOVERED and FILTERED_OUT
// rows are eligible for (re-)evaluation; an ELIGIBLE row is never demoted,
// so re-running with unchanged criteria is a no-op.
func (pl *Pipeline) applyFilter(rec *domain.ApplicationRecord) bool {
	switch rec.Status {
	case domain.StatusDiscovered:
		if pl.criteria.Matches(&rec.Posting) {
			rec.Status = domain.StatusEligible
		} else {
			rec.Status = domain.StatusFilteredOut
		}
		return true
	case domain.StatusFilteredOut:
		if pl.criteria.Matches(&rec.Posting) {
			rec.Status = domain.StatusEligible
			return true
		}
	}
	return false
}

// reevaluate re-runs the filter over stored rows so a criteria change can
// promote previously filtered postings.
func (pl *Pipeline) reevaluate(ctx context.Context, report *domain.RunReport) error {
	rows, err := pl.store.Query(ctx, store.Filter{
		Statuses: []domain.Status{domain.StatusDiscovered, domain.StatusFilteredOut},
	})
	if err != nil {
		return err
	}

	for i := range rows {
		rec := &rows[i]
		from := rec.Status
		if !pl.applyFilter(rec) {
			continue
		}
		rec.LastUpdatedAt = time.Now().UTC()

		err := pl.store.Upsert(ctx, rec)
		if errors.Is(err, domain.ErrStoreConflict) {
			// The ingest loop already rewrote this row in the meantime.
			continue
		}
		if err != nil {
			return err
		}

		if from == domain.StatusFilteredOut && rec.Status == domain.StatusEligible {
			report.Promoted++
		}
		pl.publish(ctx, rec, from)
	}

	return nil
}

func (pl *Pipeline) publish(ctx context.Context, rec *domain.ApplicationRecord, from domain.Status) {
	if pl.publisher == nil || rec.Status == from {
		return
	}
	if err := pl.publisher.PublishStatus(ctx, rec, from); err != nil {
		pl.logger.Error("publish status event failed", "fingerprint", rec.Fingerprint, "error", err)
	}
}

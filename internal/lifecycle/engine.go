// Package lifecycle drives each application record through its state
// machine: eligible postings get a tailored resume, tailored resumes get a
// rendered document, and explicit operations handle retry and submission.
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"job_applier/internal/config"
	"job_applier/internal/domain"
	"job_applier/internal/store"
)

type Engine struct {
	store     store.RecordStore
	tailor    TailoringGateway
	renderer  DocumentRenderer
	publisher Publisher
	resume    *domain.ResumeData
	retry     Policy
	locks     *keyedMutex
	logger    *slog.Logger
	cfg       config.LifecycleConfig
}

func NewEngine(
	st store.RecordStore,
	tailor TailoringGateway,
	renderer DocumentRenderer,
	publisher Publisher,
	resume *domain.ResumeData,
	retry Policy,
	cfg config.LifecycleConfig,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		store:     st,
		tailor:    tailor,
		renderer:  renderer,
		publisher: publisher,
		resume:    resume,
		retry:     retry,
		locks:     newKeyedMutex(),
		logger:    logger.With("component", "lifecycle"),
		cfg:       cfg,
	}
}

// Run executes one tailoring pass then one rendering pass over the store,
// each across a bounded worker pool. Per-record failures land in the report;
// only a store failure is returned.
func (e *Engine) Run(ctx context.Context, report *domain.RunReport) error {
	if err := e.tailorPass(ctx, report); err != nil {
		return fmt.Errorf("tailoring pass: %w", err)
	}
	if err := e.renderPass(ctx, report); err != nil {
		return fmt.Errorf("rendering pass: %w", err)
	}

	e.logger.Info("lifecycle run completed",
		"tailored", report.Tailored,
		"generated", report.Generated,
		"failed", report.Failed,
	)
	return nil
}

func (e *Engine) tailorPass(ctx context.Context, report *domain.RunReport) error {
	// TAILORING rows are picked up again for crash recovery.
	rows, err := e.store.Query(ctx, store.Filter{
		Statuses: []domain.Status{domain.StatusEligible, domain.StatusTailoring},
	})
	if err != nil {
		return err
	}

	var tailored, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrent)
	for i := range rows {
		fingerprint := rows[i].Fingerprint
		g.Go(func() error {
			ok, err := e.processTailoring(gctx, fingerprint)
			if err != nil {
				e.logger.Error("tailoring step failed", "fingerprint", fingerprint, "error", err)
				failed.Add(1)
				return nil
			}
			if ok {
				tailored.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Tailored += int(tailored.Load())
	report.Failed += int(failed.Load())
	return nil
}

// processTailoring advances one record from ELIGIBLE through TAILORING to
// TAILORED. The gateway call is deduped: a persisted payload means a
// previous run already succeeded and only the state write is missing.
func (e *Engine) processTailoring(ctx context.Context, fingerprint string) (bool, error) {
	unlock := e.locks.Lock(fingerprint)
	defer unlock()

	rec, err := e.store.Get(ctx, fingerprint)
	if err != nil {
		return false, err
	}
	if rec.Status != domain.StatusEligible && rec.Status != domain.StatusTailoring {
		return false, nil
	}

	if rec.TailoredResume != nil {
		return true, e.advance(ctx, rec, domain.StatusTailored)
	}

	if rec.Status == domain.StatusEligible {
		if err := e.advance(ctx, rec, domain.StatusTailoring); err != nil {
			return false, err
		}
	}

	var result *domain.TailoredResume
	attempts, err := e.retry.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		defer cancel()

		t, tailorErr := e.tailor.Tailor(callCtx, e.resume, &rec.Posting)
		if tailorErr != nil {
			return tailorErr
		}
		result = t
		return nil
	})
	if err != nil {
		return false, e.fail(ctx, rec, attempts, err)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return false, e.fail(ctx, rec, attempts, fmt.Errorf("encode tailored resume: %w", err))
	}

	body := string(payload)
	rec.TailoredResume = &body
	rec.AttemptCount += attempts - 1 // rate-limited attempts preceding the success
	if err := e.advance(ctx, rec, domain.StatusTailored); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) renderPass(ctx context.Context, report *domain.RunReport) error {
	rows, err := e.store.Query(ctx, store.Filter{
		Statuses: []domain.Status{domain.StatusTailored},
	})
	if err != nil {
		return err
	}

	var generated, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrent)
	for i := range rows {
		fingerprint := rows[i].Fingerprint
		g.Go(func() error {
			ok, err := e.processRendering(gctx, fingerprint)
			if err != nil {
				e.logger.Error("rendering step failed", "fingerprint", fingerprint, "error", err)
				failed.Add(1)
				return nil
			}
			if ok {
				generated.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Generated += int(generated.Load())
	report.Failed += int(failed.Load())
	return nil
}

// processRendering advances one record from TAILORED to GENERATED. An
// already-set variant ref means the document exists and only the state
// write is missing.
func (e *Engine) processRendering(ctx context.Context, fingerprint string) (bool, error) {
	unlock := e.locks.Lock(fingerprint)
	defer unlock()

	rec, err := e.store.Get(ctx, fingerprint)
	if err != nil {
		return false, err
	}
	if rec.Status != domain.StatusTailored {
		return false, nil
	}

	if rec.ResumeVariantRef != nil {
		return true, e.advance(ctx, rec, domain.StatusGenerated)
	}

	if rec.TailoredResume == nil {
		return false, e.fail(ctx, rec, 1, errors.New("tailored payload missing"))
	}
	var tailored domain.TailoredResume
	if err := json.Unmarshal([]byte(*rec.TailoredResume), &tailored); err != nil {
		return false, e.fail(ctx, rec, 1, fmt.Errorf("decode tailored resume: %w", err))
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	doc, err := e.renderer.Render(callCtx, &tailored)
	cancel()
	if err != nil {
		return false, e.fail(ctx, rec, 1, err)
	}

	ref, err := e.writeDocument(rec, doc)
	if err != nil {
		return false, e.fail(ctx, rec, 1, err)
	}

	rec.ResumeVariantRef = &ref
	if err := e.advance(ctx, rec, domain.StatusGenerated); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) writeDocument(rec *domain.ApplicationRecord, doc []byte) (string, error) {
	if err := os.MkdirAll(e.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	name := fmt.Sprintf("resume_%s.md", uuid.NewString())
	path := filepath.Join(e.cfg.OutputDir, name)
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	return path, nil
}

// Retry moves a FAILED record back to ELIGIBLE. The attempt count is kept so
// the retry budget is a cumulative cutoff; a record past it is terminal.
func (e *Engine) Retry(ctx context.Context, fingerprint string) error {
	unlock := e.locks.Lock(fingerprint)
	defer unlock()

	rec, err := e.store.Get(ctx, fingerprint)
	if err != nil {
		return err
	}
	if rec.Status != domain.StatusFailed {
		return fmt.Errorf("%w: retry from %s", domain.ErrInvalidTransition, rec.Status)
	}
	if rec.AttemptCount >= e.cfg.RetryBudget {
		return fmt.Errorf("retry budget exhausted: %d attempts", rec.AttemptCount)
	}
	return e.advance(ctx, rec, domain.StatusEligible)
}

// MarkSubmitted records that the application for a generated resume went
// out. Submission itself stays a manual act.
func (e *Engine) MarkSubmitted(ctx context.Context, fingerprint string) error {
	unlock := e.locks.Lock(fingerprint)
	defer unlock()

	rec, err := e.store.Get(ctx, fingerprint)
	if err != nil {
		return err
	}
	return e.advance(ctx, rec, domain.StatusSubmitted)
}

// advance performs a validated transition and commits it. On an optimistic
// conflict the row is re-read and the transition re-applied on the fresh
// copy; a row another writer already moved out of the source state wins the
// race and the stale write is abandoned.
func (e *Engine) advance(ctx context.Context, rec *domain.ApplicationRecord, next domain.Status) error {
	from := rec.Status
	if err := rec.Transition(next); err != nil {
		return err
	}
	rec.LastUpdatedAt = time.Now().UTC()

	err := e.store.Upsert(ctx, rec)
	if errors.Is(err, domain.ErrStoreConflict) {
		err = e.retryAdvance(ctx, rec, from, next)
	}
	if err != nil {
		return err
	}

	e.logger.Info("status transition", "fingerprint", rec.Fingerprint, "from", from, "to", next)
	e.publish(ctx, rec, from)
	return nil
}

// retryAdvance redoes a conflicted transition against the current row. Only
// the lifecycle-owned fields carry over from the stale copy; posting fields a
// concurrent ingest committed stay intact.
func (e *Engine) retryAdvance(ctx context.Context, rec *domain.ApplicationRecord, from, next domain.Status) error {
	fresh, err := e.store.Get(ctx, rec.Fingerprint)
	if err != nil {
		return err
	}
	if fresh.Status != from {
		return fmt.Errorf("%w: %s already moved from %s to %s",
			domain.ErrStoreConflict, rec.Fingerprint, from, fresh.Status)
	}
	if err := fresh.Transition(next); err != nil {
		return err
	}
	fresh.TailoredResume = rec.TailoredResume
	fresh.ResumeVariantRef = rec.ResumeVariantRef
	fresh.AttemptCount = rec.AttemptCount
	fresh.LastError = rec.LastError
	fresh.LastUpdatedAt = rec.LastUpdatedAt

	if err := e.store.Upsert(ctx, fresh); err != nil {
		return err
	}
	*rec = *fresh
	return nil
}

// fail is the terminal handling of a step error: attempts are added to the
// persistent count and the cause recorded.
func (e *Engine) fail(ctx context.Context, rec *domain.ApplicationRecord, attempts int, cause error) error {
	rec.AttemptCount += attempts
	msg := cause.Error()
	rec.LastError = &msg

	if err := e.advance(ctx, rec, domain.StatusFailed); err != nil {
		return err
	}
	return fmt.Errorf("record failed after %d attempts: %w", rec.AttemptCount, cause)
}

func (e *Engine) publish(ctx context.Context, rec *domain.ApplicationRecord, from domain.Status) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishStatus(ctx, rec, from); err != nil {
		e.logger.Error("publish status event failed", "fingerprint", rec.Fingerprint, "error", err)
	}
}

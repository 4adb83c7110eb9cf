package sheet

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job_applier/internal/domain"
	"job_applier/internal/store"
	"job_applier/testdata/utils"
)

func testRecord(fingerprint string) *domain.ApplicationRecord {
	posted := time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC)
	return &domain.ApplicationRecord{
		Posting: domain.Posting{
			SourceName:  "Reed",
			ExternalID:  "12345",
			Fingerprint: fingerprint,
			Title:       "Senior Go Engineer",
			Company:     "Acme",
			Location:    "London",
			SalaryMin:   utils.Ptr(70000.0),
			SalaryMax:   utils.Ptr(90000.0),
			Description: "Build Go services.",
			URL:         "https://reed/12345",
			PostedAt:    &posted,
			SourcesSeen: []string{"Reed", "Adzuna"},
		},
		Status:        domain.StatusEligible,
		AttemptCount:  1,
		Ambiguous:     true,
		CreatedAt:     time.Date(2026, 8, 16, 10, 0, 0, 0, time.UTC),
		LastUpdatedAt: time.Date(2026, 8, 16, 11, 0, 0, 0, time.UTC),
	}
}

func TestOpen_CreatesWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "applications.xlsx")

	st, err := Open(path)
	require.NoError(t, err)

	rows, err := st.Query(context.Background(), store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.FileExists(t, path)
}

func TestUpsertAndGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "applications.xlsx")
	st, err := Open(path)
	require.NoError(t, err)

	ctx := context.Background()
	rec := testRecord("fp-1")

	require.NoError(t, st.Upsert(ctx, rec))
	assert.Equal(t, int64(1), rec.Version)

	got, err := st.Get(ctx, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, "Senior Go Engineer", got.Title)
	assert.Equal(t, []string{"Reed", "Adzuna"}, got.SourcesSeen)
	assert.True(t, got.Ambiguous)
	require.NotNil(t, got.SalaryMin)
	assert.Equal(t, 70000.0, *got.SalaryMin)
}

func TestGet_NotFound(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "applications.xlsx"))
	require.NoError(t, err)

	_, err = st.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpsert_VersionConflict(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "applications.xlsx"))
	require.NoError(t, err)

	ctx := context.Background()
	rec := testRecord("fp-2")
	require.NoError(t, st.Upsert(ctx, rec))

	stale := testRecord("fp-2")
	stale.Version = 0 // insert attempt against an existing row
	assert.ErrorIs(t, st.Upsert(ctx, stale), domain.ErrStoreConflict)

	stale.Version = 99
	assert.ErrorIs(t, st.Upsert(ctx, stale), domain.ErrStoreConflict)

	// The matching version succeeds and bumps.
	rec.Status = domain.StatusTailoring
	require.NoError(t, st.Upsert(ctx, rec))
	assert.Equal(t, int64(2), rec.Version)
}

func TestReopen_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "applications.xlsx")
	ctx := context.Background()

	st, err := Open(path)
	require.NoError(t, err)

	rec := testRecord("fp-3")
	rec.TailoredResume = utils.Ptr(`{"summary":"tailored"}`)
	rec.ResumeVariantRef = utils.Ptr("generated_resumes/resume_abc.md")
	rec.LastError = utils.Ptr("rate limited")
	require.NoError(t, st.Upsert(ctx, rec))

	// A fresh open must see everything the first handle wrote.
	st2, err := Open(path)
	require.NoError(t, err)

	got, err := st2.Get(ctx, "fp-3")
	require.NoError(t, err)
	assert.Equal(t, rec.Title, got.Title)
	assert.Equal(t, rec.Status, got.Status)
	assert.Equal(t, int64(1), got.Version)
	require.NotNil(t, got.TailoredResume)
	assert.JSONEq(t, `{"summary":"tailored"}`, *got.TailoredResume)
	require.NotNil(t, got.ResumeVariantRef)
	assert.Equal(t, "generated_resumes/resume_abc.md", *got.ResumeVariantRef)
	require.NotNil(t, got.PostedAt)
	assert.True(t, got.PostedAt.Equal(*rec.PostedAt))
	assert.Equal(t, 1, got.AttemptCount)
}

func TestQuery_Filters(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "applications.xlsx"))
	require.NoError(t, err)

	ctx := context.Background()

	eligible := testRecord("fp-a")
	require.NoError(t, st.Upsert(ctx, eligible))

	failed := testRecord("fp-b")
	failed.Status = domain.StatusFailed
	failed.SourcesSeen = []string{"Adzuna"}
	failed.Ambiguous = false
	require.NoError(t, st.Upsert(ctx, failed))

	rows, err := st.Query(ctx, store.Filter{Statuses: []domain.Status{domain.StatusFailed}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "fp-b", rows[0].Fingerprint)

	rows, err = st.Query(ctx, store.Filter{Source: "Reed"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "fp-a", rows[0].Fingerprint)

	rows, err = st.Query(ctx, store.Filter{Ambiguous: utils.Ptr(true)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "fp-a", rows[0].Fingerprint)

	rows, err = st.Query(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

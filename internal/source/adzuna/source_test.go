package adzuna

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job_applier/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestSource(baseURL string) *Source {
	return New(Config{
		BaseURL:        baseURL,
		AppID:          "test-id",
		AppKey:         "test-key",
		Country:        "gb",
		PageSize:       50,
		Timeout:        time.Second,
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}, testLogger())
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gb/search/1", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "test-id", q.Get("app_id"))
		assert.Equal(t, "test-key", q.Get("app_key"))
		assert.Equal(t, "golang", q.Get("what"))
		assert.Equal(t, "London", q.Get("where"))
		assert.Equal(t, "50", q.Get("results_per_page"))
		assert.Equal(t, "60000", q.Get("salary_min"))

		_, _ = w.Write([]byte(`{"count":2,"results":[{"id":1},{"id":2}]}`))
	}))
	defer srv.Close()

	src := newTestSource(srv.URL)
	raws, err := src.Search(context.Background(), domain.SearchCriteria{
		Keywords:    []string{"golang"},
		Locations:   []string{"London"},
		SalaryFloor: 60000,
	})

	require.NoError(t, err)
	assert.Len(t, raws, 2)
}

func TestSearch_RetriesOnServerError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"count":1,"results":[{"id":1}]}`))
	}))
	defer srv.Close()

	src := newTestSource(srv.URL)
	raws, err := src.Search(context.Background(), domain.SearchCriteria{Keywords: []string{"golang"}})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, raws, 1)
}

func TestSearch_FailsAfterRetryBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := newTestSource(srv.URL)
	_, err := src.Search(context.Background(), domain.SearchCriteria{Keywords: []string{"golang"}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestNormalize(t *testing.T) {
	raw := json.RawMessage(`{
		"id": 4321,
		"title": "  Senior   Go Engineer ",
		"company": {"display_name": "Acme Ltd"},
		"location": {"display_name": "London, UK"},
		"description": "<p>Build <b>Go</b> services</p>",
		"redirect_url": "https://adzuna.example/j/4321",
		"salary_min": 70000,
		"salary_max": 90000,
		"created": "2026-08-15T09:00:00Z"
	}`)

	src := newTestSource("https://api.example")
	p, err := src.Normalize(raw)

	require.NoError(t, err)
	assert.Equal(t, SourceName, p.SourceName)
	assert.Equal(t, "4321", p.ExternalID)
	assert.Equal(t, "Senior Go Engineer", p.Title)
	assert.Equal(t, "Acme Ltd", p.Company)
	assert.Equal(t, "London, UK", p.Location)
	assert.Equal(t, "Build Go services", p.Description)
	assert.Equal(t, "https://adzuna.example/j/4321", p.URL)
	require.NotNil(t, p.SalaryMin)
	assert.Equal(t, 70000.0, *p.SalaryMin)
	require.NotNil(t, p.PostedAt)
	assert.Equal(t, time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC), p.PostedAt.UTC())
}

func TestNormalize_MissingFields(t *testing.T) {
	raw := json.RawMessage(`{"id": 1, "title": "Go Engineer"}`)

	src := newTestSource("https://api.example")
	_, err := src.Normalize(raw)

	assert.ErrorIs(t, err, domain.ErrMalformedRecord)
}

func TestNormalize_BadJSON(t *testing.T) {
	src := newTestSource("https://api.example")
	_, err := src.Normalize(json.RawMessage(`{not json`))

	assert.ErrorIs(t, err, domain.ErrMalformedRecord)
}

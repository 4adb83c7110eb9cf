package adzuna

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"job_applier/internal/domain"
	"job_applier/internal/normalize"
)

const (
	SourceID   = "adzuna"
	SourceName = "Adzuna"
)

// Config holds Adzuna source configuration.
type Config struct {
	BaseURL        string
	AppID          string
	AppKey         string
	Country        string
	PageSize       int
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Source is the Adzuna search client and normalizer adapter.
type Source struct {
	httpClient     *http.Client
	baseURL        string
	appID          string
	appKey         string
	country        string
	pageSize       int
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		baseURL:        cfg.BaseURL,
		appID:          cfg.AppID,
		appKey:         cfg.AppKey,
		country:        cfg.Country,
		pageSize:       cfg.PageSize,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("source", SourceID),
	}
}

func (s *Source) ID() string {
	return SourceID
}

func (s *Source) Name() string {
	return SourceName
}

// Search runs one query per keyword/location pair and returns the raw
// result objects for the pipeline to normalize.
func (s *Source) Search(ctx context.Context, criteria domain.SearchCriteria) ([]json.RawMessage, error) {
	locations := criteria.Locations
	if len(locations) == 0 {
		locations = []string{""}
	}

	var raws []json.RawMessage
	for _, keyword := range criteria.Keywords {
		for _, loc := range locations {
			resp, err := s.search(ctx, keyword, loc, criteria.SalaryFloor)
			if err != nil {
				return raws, fmt.Errorf("search %q in %q: %w", keyword, loc, err)
			}
			raws = append(raws, resp.Results...)

			s.logger.Debug("fetched results",
				"keyword", keyword,
				"location", loc,
				"count", len(resp.Results),
			)
		}
	}

	return raws, nil
}

func (s *Source) search(ctx context.Context, keyword, location string, salaryFloor float64) (*searchResponse, error) {
	params := url.Values{}
	params.Set("app_id", s.appID)
	params.Set("app_key", s.appKey)
	params.Set("what", keyword)
	params.Set("results_per_page", strconv.Itoa(s.pageSize))
	params.Set("content-type", "application/json")
	if location != "" {
		params.Set("where", location)
	}
	if salaryFloor > 0 {
		params.Set("salary_min", strconv.Itoa(int(salaryFloor)))
	}

	endpoint := fmt.Sprintf("%s/%s/search/1?%s", s.baseURL, s.country, params.Encode())

	var resp *searchResponse
	var err error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		resp, err = s.doRequest(ctx, endpoint)
		if err == nil {
			return resp, nil
		}

		if attempt == s.maxAttempts {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", s.maxAttempts, err)
}

func (s *Source) doRequest(ctx context.Context, endpoint string) (*searchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "JobApplier/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &searchResp, nil
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}

// Normalize maps one raw Adzuna result into the canonical posting schema.
func (s *Source) Normalize(raw json.RawMessage) (domain.Posting, error) {
	var j job
	if err := json.Unmarshal(raw, &j); err != nil {
		return domain.Posting{}, fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
	}

	p := domain.Posting{
		SourceName:  SourceName,
		ExternalID:  j.ID.String(),
		Title:       normalize.CleanText(j.Title),
		Company:     normalize.CleanText(j.Company.DisplayName),
		Location:    normalize.CleanText(j.Location.DisplayName),
		Description: normalize.StripHTML(j.Description),
		URL:         normalize.AbsoluteURL(s.baseURL, j.RedirectURL),
	}
	// Adzuna reports annual figures.
	p.SalaryMin, p.SalaryMax = normalize.SalaryRange(j.SalaryMin, j.SalaryMax, "year")

	if j.Created != "" {
		if t, err := time.Parse(time.RFC3339, j.Created); err == nil {
			p.PostedAt = &t
		} else {
			s.logger.Warn("failed to parse created date", "external_id", p.ExternalID, "created", j.Created)
		}
	}

	if err := normalize.Require(&p); err != nil {
		return domain.Posting{}, err
	}

	return p, nil
}

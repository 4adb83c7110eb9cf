package tailor

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job_applier/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testClient(baseURL string) *Client {
	return NewClient(Config{BaseURL: baseURL, APIKey: "test-key", Model: "test-model"}, testLogger())
}

func basePosting() (*domain.ResumeData, *domain.Posting) {
	base := &domain.ResumeData{
		PersonalInfo: domain.PersonalInfo{Name: "Alex Morgan"},
		Summary:      "Backend engineer.",
	}
	posting := &domain.Posting{
		Fingerprint: "fp-1",
		Title:       "Go Engineer",
		Company:     "Acme",
		URL:         "https://example/1",
		Description: "Write Go.",
	}
	return base, posting
}

func chatReply(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestTailor_Success(t *testing.T) {
	tailoredJSON := `{"personal_info":{"name":"Alex Morgan"},"summary":"Tailored for Acme."}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "Go Engineer at Acme")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatReply(tailoredJSON)))
	}))
	defer srv.Close()

	base, posting := basePosting()
	got, err := testClient(srv.URL).Tailor(context.Background(), base, posting)

	require.NoError(t, err)
	assert.Equal(t, "Tailored for Acme.", got.Summary)
	assert.Equal(t, "fp-1", got.Metadata.Fingerprint)
	assert.Equal(t, "Acme", got.Metadata.Company)
}

func TestTailor_StripsMarkdownFence(t *testing.T) {
	fenced := "```json\n{\"summary\":\"Fenced.\"}\n```"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(chatReply(fenced)))
	}))
	defer srv.Close()

	base, posting := basePosting()
	got, err := testClient(srv.URL).Tailor(context.Background(), base, posting)

	require.NoError(t, err)
	assert.Equal(t, "Fenced.", got.Summary)
}

func TestTailor_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		expected error
	}{
		{"rate limited", http.StatusTooManyRequests, domain.ErrRateLimited},
		{"bad request", http.StatusBadRequest, domain.ErrInvalidInput},
		{"unprocessable", http.StatusUnprocessableEntity, domain.ErrInvalidInput},
		{"server error", http.StatusInternalServerError, domain.ErrServiceError},
		{"bad gateway", http.StatusBadGateway, domain.ErrServiceError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			base, posting := basePosting()
			_, err := testClient(srv.URL).Tailor(context.Background(), base, posting)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestTailor_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	base, posting := basePosting()
	_, err := testClient(srv.URL).Tailor(context.Background(), base, posting)
	assert.ErrorIs(t, err, domain.ErrServiceError)
}

func TestTailor_MalformedReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(chatReply("not json at all")))
	}))
	defer srv.Close()

	base, posting := basePosting()
	_, err := testClient(srv.URL).Tailor(context.Background(), base, posting)
	assert.ErrorIs(t, err, domain.ErrServiceError)
}

func TestStripMarkdownFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripMarkdownFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripMarkdownFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripMarkdownFence(`{"a":1}`))
}

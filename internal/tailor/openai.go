// Package tailor is the client for the resume-tailoring service, an
// OpenAI-compatible chat-completions endpoint.
package tailor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"job_applier/internal/domain"
)

// Config holds tailoring gateway configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		// Per-call timeouts come from the caller's context.
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		logger:     logger.With("component", "tailor"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Tailor sends the base resume and the posting to the model and parses the
// reply back into the resume schema.
func (c *Client) Tailor(ctx context.Context, base *domain.ResumeData, posting *domain.Posting) (*domain.TailoredResume, error) {
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("%w: encode base resume: %v", domain.ErrInvalidInput, err)
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(string(baseJSON), posting)},
		},
		Temperature: 0.3,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrServiceError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrServiceError, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status 429", domain.ErrRateLimited)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrInvalidInput, resp.StatusCode, truncate(body))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrServiceError, resp.StatusCode, truncate(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrServiceError, err)
	}
	if chatResp.Error != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrServiceError, chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", domain.ErrServiceError)
	}

	cleaned := stripMarkdownFence(chatResp.Choices[0].Message.Content)

	var tailored domain.TailoredResume
	if err := json.Unmarshal([]byte(cleaned), &tailored); err != nil {
		return nil, fmt.Errorf("%w: parse tailored resume: %v", domain.ErrServiceError, err)
	}

	tailored.Metadata = domain.TailoringMetadata{
		Fingerprint: posting.Fingerprint,
		JobTitle:    posting.Title,
		Company:     posting.Company,
		JobURL:      posting.URL,
	}

	c.logger.Debug("resume tailored", "fingerprint", posting.Fingerprint, "company", posting.Company)
	return &tailored, nil
}

const systemPrompt = `You are an expert ATS-friendly resume writer.
I will provide a base resume in JSON format and a target job posting.

Task:
1. Keep the JSON structure exactly the same. Key names must not change. Keep company names, durations and education exactly as they are.
2. Rewrite the summary and the responsibility bullet points to emphasize the skills and keywords the posting asks for. Do not invent experience.
3. Drop skills and projects with no relevance to the posting.
4. Return only the raw JSON object, no markdown fences.`

func userPrompt(baseJSON string, posting *domain.Posting) string {
	return fmt.Sprintf(
		"Base Resume (JSON):\n%s\n\nTarget posting:\n%s at %s (%s)\n\nJob Description:\n%s\n\nOutput the tailored resume in exactly the same JSON structure.",
		baseJSON, posting.Title, posting.Company, posting.Location, posting.Description,
	)
}

// stripMarkdownFence removes a ```json fence when the model wraps its reply
// despite the instructions.
func stripMarkdownFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(b []byte) string {
	const max = 256
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}

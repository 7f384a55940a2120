// Package analyzer asks a chat model to explain a detection verdict in
// prose. The analysis is advisory; scores and severity are computed
// before it runs and are never changed by it.
package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/veriscan/veriscan/internal/clients/base"
	"github.com/veriscan/veriscan/internal/errdefs"
)

const (
	// ServiceName identifies this client in errors and logs.
	ServiceName = "analyzer"

	// DefaultTimeout is the per-call deadline when none is configured.
	DefaultTimeout = 60 * time.Second
)

// Analysis is the model's reading of a verdict.
type Analysis struct {
	Explanation        string   `json:"explanation"`
	SuspiciousSegments []string `json:"suspicious_segments,omitempty"`
	Confidence         float64  `json:"confidence"`
}

// MatchSummary is the slice of a verdict handed to the model.
type MatchSummary struct {
	InputExcerpt   string  `json:"input_excerpt"`
	MatchedExcerpt string  `json:"matched_excerpt"`
	SourceTitle    string  `json:"source_title"`
	Similarity     float64 `json:"similarity"`
}

// Client talks to an Ollama-compatible chat endpoint.
type Client struct {
	httpClient *base.HTTPClient
	model      string
}

// Config holds the client configuration.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	APIKey  string
}

// NewClient creates an analyzer client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		httpClient: base.NewHTTPClient(ServiceName, base.Options{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		}),
		model: cfg.Model,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

const systemPrompt = `You are an academic integrity reviewer. You receive a
plagiarism percentage, a severity label, and the strongest matched passages.
Explain the finding in plain English for an instructor. Respond with a JSON
object: {"explanation": string, "suspicious_segments": [string], "confidence": number between 0 and 1}.
Do not restate the raw scores; interpret them.`

// Analyze produces a prose explanation for a finished verdict. The
// percentage and severity passed in are final; a failed or malformed
// analysis surfaces as an error and the caller drops it.
func (c *Client) Analyze(ctx context.Context, percentage float64, severity string, matches []MatchSummary) (*Analysis, error) {
	payload, err := sonic.MarshalString(struct {
		Percentage float64        `json:"plagiarism_percentage"`
		Severity   string         `json:"severity"`
		Matches    []MatchSummary `json:"matches"`
	}{percentage, severity, matches})
	if err != nil {
		return nil, errdefs.New(errdefs.KindInternal, "analyzer.analyze", err)
	}

	var resp chatResponse
	err = c.httpClient.Post(ctx, "/api/chat", chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: payload},
		},
		Stream: false,
		Format: "json",
	}, &resp)
	if err != nil {
		if errdefs.KindOf(err) == errdefs.KindDeadlineExceeded {
			return nil, errdefs.New(errdefs.KindDeadlineExceeded, "analyzer.analyze", err)
		}
		return nil, errdefs.New(errdefs.KindUnavailable, "analyzer.analyze", err)
	}

	var analysis Analysis
	content := strings.TrimSpace(resp.Message.Content)
	if err := sonic.UnmarshalString(content, &analysis); err != nil {
		return nil, errdefs.Newf(errdefs.KindInternal, "analyzer.analyze",
			"malformed model response: %v", err)
	}
	if analysis.Confidence < 0 {
		analysis.Confidence = 0
	}
	if analysis.Confidence > 1 {
		analysis.Confidence = 1
	}
	return &analysis, nil
}

// Health probes the chat service.
func (c *Client) Health(ctx context.Context) error {
	var resp struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := c.httpClient.Get(ctx, "/api/tags", nil, &resp); err != nil {
		return errdefs.New(errdefs.KindUnavailable, "analyzer.health", err)
	}
	for _, m := range resp.Models {
		if strings.Contains(m.Name, c.model) {
			return nil
		}
	}
	return errdefs.New(errdefs.KindUnavailable, "analyzer.health",
		fmt.Errorf("model %q not available", c.model))
}

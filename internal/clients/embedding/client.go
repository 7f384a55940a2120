// Package embedding provides a client for the embedding model service.
// Texts are embedded in bounded batches; within one call every unique
// text is embedded exactly once.
package embedding

import (
	"context"
	"strings"
	"time"

	"github.com/veriscan/veriscan/internal/clients/base"
	"github.com/veriscan/veriscan/internal/errdefs"
)

const (
	// ServiceName identifies this client in errors and logs.
	ServiceName = "embedding"

	// DefaultBatchSize bounds the number of texts per upstream call.
	DefaultBatchSize = 32

	// DefaultTimeout is the per-call deadline when none is configured.
	DefaultTimeout = 60 * time.Second
)

// Embedder generates dense vectors for text.
type Embedder interface {
	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Client talks to an Ollama-compatible embedding endpoint.
type Client struct {
	httpClient *base.HTTPClient
	model      string
	dims       int
	batchSize  int
}

// Compile-time check that Client implements Embedder.
var _ Embedder = (*Client)(nil)

// Config holds the client configuration.
type Config struct {
	BaseURL   string
	Model     string
	Dims      int
	BatchSize int
	Timeout   time.Duration
	APIKey    string
}

// NewClient creates an embedding client.
func NewClient(cfg Config) *Client {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		httpClient: base.NewHTTPClient(ServiceName, base.Options{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		}),
		model:     cfg.Model,
		dims:      cfg.Dims,
		batchSize: cfg.BatchSize,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
	// Embedding is the legacy single-vector response shape.
	Embedding []float32 `json:"embedding,omitempty"`
}

// EmbedBatch embeds all texts and returns vectors in input order.
// Duplicate texts are embedded once and the vector reused, so scoring
// stays internally consistent even though the model itself is not
// deterministic across calls.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	unique := make([]string, 0, len(texts))
	index := make(map[string]int, len(texts))
	for _, t := range texts {
		if _, seen := index[t]; !seen {
			index[t] = len(unique)
			unique = append(unique, t)
		}
	}

	vectors := make([][]float32, 0, len(unique))
	for start := 0; start < len(unique); start += c.batchSize {
		end := start + c.batchSize
		if end > len(unique) {
			end = len(unique)
		}
		batch, err := c.embed(ctx, unique[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vectors[index[t]]
	}
	return out, nil
}

func (c *Client) embed(ctx context.Context, batch []string) ([][]float32, error) {
	var resp embedResponse
	err := c.httpClient.Post(ctx, "/api/embed", embedRequest{
		Model: c.model,
		Input: batch,
	}, &resp)
	if err != nil {
		return nil, classify(err)
	}

	vectors := resp.Embeddings
	if len(vectors) == 0 && len(resp.Embedding) > 0 {
		vectors = [][]float32{resp.Embedding}
	}

	if len(vectors) != len(batch) {
		return nil, errdefs.Newf(errdefs.KindInternal, "embedding.embed",
			"expected %d vectors, got %d", len(batch), len(vectors))
	}
	for i, v := range vectors {
		if c.dims > 0 && len(v) != c.dims {
			return nil, errdefs.Newf(errdefs.KindInternal, "embedding.embed",
				"vector %d has dimension %d, want %d", i, len(v), c.dims)
		}
	}
	return vectors, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Health probes the embedding service and verifies the configured
// model is available.
func (c *Client) Health(ctx context.Context) error {
	var resp tagsResponse
	if err := c.httpClient.Get(ctx, "/api/tags", nil, &resp); err != nil {
		return classify(err)
	}
	for _, m := range resp.Models {
		if strings.Contains(m.Name, c.model) {
			return nil
		}
	}
	return errdefs.Newf(errdefs.KindUnavailable, "embedding.health",
		"model %q not available", c.model)
}

// classify maps transport failures to the shared error taxonomy. The
// base client has already exhausted its retries by the time an error
// reaches this point.
func classify(err error) error {
	if ctxErr := contextKind(err); ctxErr != nil {
		return ctxErr
	}
	return errdefs.New(errdefs.KindUnavailable, "embedding", err)
}

func contextKind(err error) error {
	switch errdefs.KindOf(err) {
	case errdefs.KindDeadlineExceeded:
		return errdefs.New(errdefs.KindDeadlineExceeded, "embedding", err)
	default:
		return nil
	}
}

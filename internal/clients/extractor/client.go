// Package extractor submits PDF bytes to the document extraction
// service and polls until the parse finishes.
package extractor

import (
	"context"
	"fmt"
	"time"

	"github.com/veriscan/veriscan/internal/clients/base"
	"github.com/veriscan/veriscan/internal/errdefs"
)

const (
	// ServiceName identifies this client in errors and logs.
	ServiceName = "extractor"

	// DefaultTimeout bounds a single HTTP call, not the whole parse.
	DefaultTimeout = 2 * time.Minute

	// pollInterval is the delay between status checks.
	pollInterval = 2 * time.Second

	// maxPolls bounds how long a parse may stay in progress.
	maxPolls = 150
)

// Parse statuses reported by the extraction service.
const (
	StatusProcessing = "processing"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
)

// Segment is one classified region of an extracted page.
type Segment struct {
	Class    string `json:"class"`
	Text     string `json:"text"`
	Markdown string `json:"markdown"`
	Page     int    `json:"page"`
}

// Result is the final output of a parse.
type Result struct {
	Title    string    `json:"title"`
	Pages    int       `json:"pages"`
	Segments []Segment `json:"segments"`
}

// Client talks to the PDF extraction service.
type Client struct {
	httpClient *base.HTTPClient
}

// Config holds the client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewClient creates an extractor client.
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
	}
}

type parseResponse struct {
	UID string `json:"uid"`
}

type statusResponse struct {
	Status   string  `json:"status"`
	Progress int     `json:"progress"`
	Detail   string  `json:"detail"`
	Result   *Result `json:"result"`
}

// Extract submits the PDF and blocks until the parse completes, the
// context ends, or the poll budget runs out.
func (c *Client) Extract(ctx context.Context, pdf []byte) (*Result, error) {
	if len(pdf) == 0 {
		return nil, errdefs.Newf(errdefs.KindInvalidArgument, "extractor.extract", "empty document")
	}

	var submitted parseResponse
	err := c.httpClient.PostBytes(ctx, "/v1/parse", pdf, "application/pdf", &submitted)
	if err != nil {
		return nil, classify("extractor.extract", err)
	}
	if submitted.UID == "" {
		return nil, errdefs.Newf(errdefs.KindInternal, "extractor.extract", "parse accepted without uid")
	}

	return c.poll(ctx, submitted.UID)
}

func (c *Client) poll(ctx context.Context, uid string) (*Result, error) {
	op := "extractor.poll"
	for i := 0; i < maxPolls; i++ {
		var status statusResponse
		endpoint := fmt.Sprintf("/v1/parse/%s/status", uid)
		if err := c.httpClient.Get(ctx, endpoint, nil, &status); err != nil {
			return nil, classify(op, err)
		}

		switch status.Status {
		case StatusSuccess:
			if status.Result == nil {
				return nil, errdefs.Newf(errdefs.KindInternal, op, "parse %s finished without result", uid)
			}
			return status.Result, nil
		case StatusFailed:
			return nil, errdefs.Newf(errdefs.KindInternal, op, "parse %s failed: %s", uid, status.Detail)
		case StatusProcessing:
		default:
			return nil, errdefs.Newf(errdefs.KindInternal, op, "parse %s: unknown status %q", uid, status.Status)
		}

		select {
		case <-ctx.Done():
			return nil, errdefs.New(errdefs.KindDeadlineExceeded, op, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
	return nil, errdefs.Newf(errdefs.KindDeadlineExceeded, op, "parse %s did not finish in time", uid)
}

// Health probes the extraction service.
func (c *Client) Health(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.httpClient.Get(ctx, "/health", nil, &resp); err != nil {
		return errdefs.New(errdefs.KindUnavailable, "extractor.health", err)
	}
	return nil
}

func classify(op string, err error) error {
	if errdefs.KindOf(err) == errdefs.KindDeadlineExceeded {
		return errdefs.New(errdefs.KindDeadlineExceeded, op, err)
	}
	return errdefs.New(errdefs.KindUnavailable, op, err)
}

// Package base provides the shared HTTP client used by all service
// clients: consistent timeouts, retry with exponential backoff, and
// classified errors.
package base

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Retry defaults. Attempts counts the first call, so 3 attempts means
// two retries with exponential backoff in between.
const (
	DefaultAttempts     = 3
	DefaultRetryWait    = 500 * time.Millisecond
	DefaultRetryMaxWait = 5 * time.Second
)

// ClientError represents an HTTP client operation failure with context.
type ClientError struct {
	Op         string // the operation that failed
	Service    string // the service name
	StatusCode int    // HTTP status code, when applicable
	Err        error  // the underlying error
}

func (e *ClientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("client: %s %s failed with status %d: %v",
			e.Service, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("client: %s %s failed: %v", e.Service, e.Op, e.Err)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// NewClientError creates a ClientError for transport failures.
func NewClientError(service, op string, err error) *ClientError {
	return &ClientError{Op: op, Service: service, Err: err}
}

// NewHTTPError creates a ClientError for non-success status codes.
func NewHTTPError(service, op string, statusCode int, body string) *ClientError {
	return &ClientError{
		Op:         op,
		Service:    service,
		StatusCode: statusCode,
		Err:        fmt.Errorf("HTTP %d: %s", statusCode, body),
	}
}

// Options configures an HTTPClient.
type Options struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	Attempts int
}

// HTTPClient wraps resty with the standard configuration shared by all
// external service clients.
type HTTPClient struct {
	client  *resty.Client
	service string
}

// NewHTTPClient creates a client that retries transient failures
// (transport errors and 5xx responses) with exponential backoff.
func NewHTTPClient(service string, opts Options) *HTTPClient {
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(opts.Timeout).
		SetRetryCount(attempts - 1).
		SetRetryWaitTime(DefaultRetryWait).
		SetRetryMaxWaitTime(DefaultRetryMaxWait)

	if opts.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+opts.APIKey)
	}

	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() >= 500
	})

	return &HTTPClient{
		client:  client,
		service: service,
	}
}

// Post performs a POST request and decodes the JSON response into
// result.
func (h *HTTPClient) Post(ctx context.Context, endpoint string, body any, result any) error {
	resp, err := h.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(result).
		Post(endpoint)

	if err != nil {
		return NewClientError(h.service, "POST "+endpoint, err)
	}
	if resp.StatusCode() != 200 {
		return NewHTTPError(h.service, "POST "+endpoint, resp.StatusCode(), resp.String())
	}
	return nil
}

// Get performs a GET request with optional query parameters.
func (h *HTTPClient) Get(ctx context.Context, endpoint string, params map[string]string, result any) error {
	req := h.client.R().SetContext(ctx).SetResult(result)
	for k, v := range params {
		req.SetQueryParam(k, v)
	}

	resp, err := req.Get(endpoint)
	if err != nil {
		return NewClientError(h.service, "GET "+endpoint, err)
	}
	if resp.StatusCode() != 200 {
		return NewHTTPError(h.service, "GET "+endpoint, resp.StatusCode(), resp.String())
	}
	return nil
}

// PostBytes performs a POST with a raw body, for binary uploads.
func (h *HTTPClient) PostBytes(ctx context.Context, endpoint string, body []byte, contentType string, result any) error {
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(body).
		SetResult(result).
		Post(endpoint)

	if err != nil {
		return NewClientError(h.service, "POST "+endpoint, err)
	}
	if resp.StatusCode() != 200 {
		return NewHTTPError(h.service, "POST "+endpoint, resp.StatusCode(), resp.String())
	}
	return nil
}

// IsRetryableError reports whether an error is worth retrying at a
// higher level: network failures and 5xx responses.
func IsRetryableError(err error) bool {
	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		return false
	}
	return clientErr.StatusCode >= 500 || clientErr.StatusCode == 0
}

// Package provider is an HTTP client for a People Data Labs style bulk person enrichment API.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rpattn/leadstream/internal/domain"
)

const (
	// DefaultBaseURL is the base URL for the enrichment API.
	DefaultBaseURL = "https://api.peopledatalabs.com/v5"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 5

	// DefaultBatchSize is the largest number of items sent in one request.
	DefaultBatchSize = 100

	bulkPath = "/person/bulk"
)

// Client calls the bulk person enrichment endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	batchSize  int
	httpClient *http.Client
	logger     *zap.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithLogger sets a logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			burst := max(int(requestsPerSecond), 1)
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
		}
	}
}

// WithBatchSize caps how many items go into one HTTP request.
func WithBatchSize(size int) ClientOption {
	return func(c *Client) {
		if size > 0 {
			c.batchSize = size
		}
	}
}

// NewClient creates a new enrichment API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		apiKey:    apiKey,
		batchSize: DefaultBatchSize,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger:  zap.NewNop(),
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BulkEnrich sends items in chunks and returns every response item. A failed chunk stops
// the call with a *domain.ProviderError; items answered by earlier chunks are returned with it.
func (c *Client) BulkEnrich(ctx context.Context, items []RequestItem) ([]ResponseItem, error) {
	if len(items) == 0 {
		return nil, nil
	}

	out := make([]ResponseItem, 0, len(items))
	for start := 0; start < len(items); start += c.batchSize {
		end := min(start+c.batchSize, len(items))
		chunk, err := c.post(ctx, items[start:end])
		if err != nil {
			c.logger.Warn("enrichment chunk failed",
				zap.Int("answered", len(out)),
				zap.Int("unanswered", len(items)-start),
				zap.Error(err),
			)
			return out, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, items []RequestItem) ([]ResponseItem, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &domain.ProviderError{Err: fmt.Errorf("rate limiter: %w", err)}
	}

	body, err := json.Marshal(bulkRequest{Requests: items})
	if err != nil {
		return nil, fmt.Errorf("failed to encode bulk request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+bulkPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.ProviderError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("enrichment provider request",
		zap.String("url", c.baseURL+bulkPath),
		zap.Int("items", len(items)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, &domain.ProviderError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var result []ResponseItem
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &domain.ProviderError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return result, nil
}

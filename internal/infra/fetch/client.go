package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/partners/internal/core/domain"
	"github.com/vietddude/partners/internal/metrics"
)

// DefaultTimeout bounds a single attempt against one candidate.
const DefaultTimeout = 10 * time.Second

// Config holds client settings.
type Config struct {
	Timeout time.Duration
	Retry   RetryConfig

	// OnStatus receives a human-readable line before each retry round.
	// It is purely observational.
	OnStatus func(msg string)

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// DefaultConfig returns the 10s attempt timeout and 1s/2s/4s backoff.
func DefaultConfig() Config {
	return Config{
		Timeout: DefaultTimeout,
		Retry:   DefaultRetryConfig,
	}
}

// Client performs requests against an ordered list of candidates.
type Client struct {
	endpoints []*Endpoint
	timeout   time.Duration
	retry     RetryConfig
	onStatus  func(string)
	log       *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client for the given candidates, primary first.
func NewClient(candidates []string, cfg Config) (*Client, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.InitialDelay <= 0 {
		cfg.Retry.InitialDelay = DefaultRetryConfig.InitialDelay
	}
	if cfg.Retry.BackoffMultiple <= 0 {
		cfg.Retry.BackoffMultiple = DefaultRetryConfig.BackoffMultiple
	}
	if cfg.Retry.MaxRetries < 0 {
		cfg.Retry.MaxRetries = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		timeout:  cfg.Timeout,
		retry:    cfg.Retry,
		onStatus: cfg.OnStatus,
		log:      logger.With("component", "fetch"),
		sleep:    sleepContext,
	}
	seen := make(map[string]bool, len(candidates))
	for _, u := range candidates {
		n := normalizeURL(u)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		c.endpoints = append(c.endpoints, NewEndpoint(n, cfg.HTTPClient))
	}
	if len(c.endpoints) == 0 {
		return nil, ErrNoCandidates
	}
	return c, nil
}

// Endpoints returns the candidates in order.
func (c *Client) Endpoints() []*Endpoint {
	out := make([]*Endpoint, len(c.endpoints))
	copy(out, c.endpoints)
	return out
}

// Primary returns the base URL used for writes.
func (c *Client) Primary() string {
	return c.endpoints[0].BaseURL()
}

// Do executes the request with fallback and retry.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retry.Backoff(attempt - 1)
			c.status(fmt.Sprintf("Retrying (%d/%d) in %s...", attempt, c.retry.MaxRetries, delay))
			metrics.FetchRetriesTotal.Inc()
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		resp, err := c.tryCandidates(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if Classify(err) == ActionFatal {
			return nil, err
		}
		c.log.Warn("All candidates failed",
			"method", req.method(), "path", req.Path,
			"attempt", attempt+1, "error", err)
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.retry.MaxRetries+1, lastErr)
}

// DoJSON executes the request and decodes the JSON response into out.
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// tryCandidates walks the candidates in order. Writes only ever reach the
// primary so a mutation is never applied to two backing stores.
func (c *Client) tryCandidates(ctx context.Context, req Request) (*Response, error) {
	endpoints := c.endpoints
	if req.IsWrite() {
		endpoints = endpoints[:1]
	}

	var lastErr error
	for _, ep := range endpoints {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := ep.Do(attemptCtx, req)
		cancel()
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		if Classify(err) == ActionFatal {
			return nil, err
		}
		c.log.Debug("Candidate failed", "url", ep.BaseURL(), "path", req.Path, "error", err)
	}
	return nil, lastErr
}

func (c *Client) status(msg string) {
	c.log.Info(msg)
	if c.onStatus != nil {
		c.onStatus(msg)
	}
}

// ProbeResult is the outcome of a health probe against one candidate.
type ProbeResult struct {
	URL     string
	OK      bool
	Latency time.Duration
	Err     error
}

// Probe sends GET /health to every candidate once, without retry.
func (c *Client) Probe(ctx context.Context) []ProbeResult {
	results := make([]ProbeResult, 0, len(c.endpoints))
	for _, ep := range c.endpoints {
		start := time.Now()
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := ep.Do(attemptCtx, Get("/health"))
		cancel()

		res := ProbeResult{URL: ep.BaseURL(), Latency: time.Since(start), Err: err}
		if err == nil {
			var report domain.HealthReport
			if derr := resp.Decode(&report); derr != nil {
				res.Err = derr
			} else {
				res.OK = report.OK
			}
		}
		results = append(results, res)
	}
	return results
}

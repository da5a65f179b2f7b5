package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/partners/internal/metrics"
)

// HealthStatus represents the observed health of a candidate.
type HealthStatus struct {
	Available     bool
	Latency       time.Duration
	ErrorRate     float64
	LastSuccessAt time.Time
	LastFailureAt time.Time
}

// Endpoint is one candidate base URL.
type Endpoint struct {
	name       string
	baseURL    string
	httpClient *http.Client

	mu           sync.RWMutex
	health       HealthStatus
	totalLatency time.Duration
	successCount int
	failureCount int
	requestCount int
}

// NewEndpoint creates a candidate for baseURL. The per-attempt timeout is
// applied by the caller through the request context.
func NewEndpoint(baseURL string, httpClient *http.Client) *Endpoint {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	name := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		name = u.Host
	}
	return &Endpoint{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		health: HealthStatus{
			Available:     true,
			LastSuccessAt: time.Now(),
		},
	}
}

// GetName returns the host used as metrics label.
func (e *Endpoint) GetName() string {
	return e.name
}

// BaseURL returns the normalized base URL.
func (e *Endpoint) BaseURL() string {
	return e.baseURL
}

// GetHealth returns the endpoint's health status.
func (e *Endpoint) GetHealth() HealthStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.health
}

// Close releases idle connections.
func (e *Endpoint) Close() {
	e.httpClient.CloseIdleConnections()
}

func (e *Endpoint) url(req Request) string {
	path := req.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := e.baseURL + path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	return u
}

// Do sends a single attempt. Non-2xx responses come back as *StatusError.
func (e *Endpoint) Do(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	target := e.url(req)
	metrics.FetchAttemptsTotal.WithLabelValues(e.name, req.method()).Inc()

	body, err := req.encodeBody()
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method(), target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vals := range req.Header {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get("X-Request-ID") == "" {
		httpReq.Header.Set("X-Request-ID", uuid.NewString())
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, e.fail(e.transportError(ctx, target, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, e.fail(e.transportError(ctx, target, err))
	}

	latency := time.Since(start)
	metrics.FetchLatency.WithLabelValues(e.name, req.method()).Observe(latency.Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, e.fail(newStatusError(resp.StatusCode, data, target))
	}

	e.recordSuccess(latency)
	return &Response{
		Status:   resp.StatusCode,
		Header:   resp.Header,
		Body:     data,
		Endpoint: e.baseURL,
	}, nil
}

// transportError converts an attempt-deadline abort into ErrTimeout so it is
// indistinguishable from a network failure for the retry logic.
func (e *Endpoint) transportError(ctx context.Context, target string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, target)
	}
	return fmt.Errorf("request %s: %v", target, err)
}

func (e *Endpoint) fail(err error) error {
	metrics.FetchErrorsTotal.WithLabelValues(e.name, errorType(err)).Inc()
	e.recordFailure()
	return err
}

func (e *Endpoint) recordSuccess(latency time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.successCount++
	e.requestCount++
	e.totalLatency += latency
	e.health.LastSuccessAt = time.Now()
	e.health.Available = true

	if e.requestCount > 0 {
		e.health.ErrorRate = float64(e.failureCount) / float64(e.requestCount)
	}
	if e.successCount > 0 {
		e.health.Latency = e.totalLatency / time.Duration(e.successCount)
	}
}

func (e *Endpoint) recordFailure() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.failureCount++
	e.requestCount++
	e.health.LastFailureAt = time.Now()

	if e.requestCount > 0 {
		e.health.ErrorRate = float64(e.failureCount) / float64(e.requestCount)
	}

	if e.health.ErrorRate > 0.5 {
		e.health.Available = false
	}
}

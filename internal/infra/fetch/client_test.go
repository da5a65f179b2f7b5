package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vietddude/partners/internal/core/domain"
)

// countingServer wraps a handler and counts hits.
type countingServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newCountingServer(t *testing.T, h http.HandlerFunc) *countingServer {
	t.Helper()
	cs := &countingServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.hits.Add(1)
		h(w, r)
	}))
	t.Cleanup(cs.Close)
	return cs
}

func jsonHandler(status int, body any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func hangingHandler(w http.ResponseWriter, r *http.Request) {
	select {
	case <-r.Context().Done():
	case <-time.After(5 * time.Second):
	}
}

func newTestClient(t *testing.T, urls []string, maxRetries int) (*Client, *[]time.Duration) {
	t.Helper()
	c, err := NewClient(urls, Config{
		Timeout: 100 * time.Millisecond,
		Retry: RetryConfig{
			MaxRetries:      maxRetries,
			InitialDelay:    time.Second,
			MaxDelay:        4 * time.Second,
			BackoffMultiple: 2,
		},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	var slept []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return c, &slept
}

var sampleSheet = domain.SheetData{
	Headers: []string{"Name"},
	Data:    []map[string]any{{"Name": "X"}},
	RawRows: [][]any{{"X"}},
}

func TestClient_FallbackAfterTimeout(t *testing.T) {
	a := newCountingServer(t, hangingHandler)
	b := newCountingServer(t, jsonHandler(http.StatusOK, sampleSheet))

	c, _ := newTestClient(t, []string{a.URL, b.URL}, 0)

	var got domain.SheetData
	if err := c.DoJSON(context.Background(), Get("/sheets/s1/Partners"), &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(sampleSheet, got); diff != "" {
		t.Errorf("sheet mismatch (-want +got):\n%s", diff)
	}
	if total := a.hits.Load() + b.hits.Load(); total != 2 {
		t.Errorf("expected 2 network calls, got %d", total)
	}
}

func TestClient_ClientErrorShortCircuits(t *testing.T) {
	a := newCountingServer(t, jsonHandler(http.StatusNotFound, domain.ErrorBody{Error: "not_found"}))
	b := newCountingServer(t, jsonHandler(http.StatusOK, sampleSheet))

	c, slept := newTestClient(t, []string{a.URL, b.URL}, 3)

	_, err := c.Do(context.Background(), Get("/sheets/missing"))
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "not_found" {
		t.Errorf("expected message not_found, got %q", err.Error())
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusNotFound {
		t.Errorf("expected StatusError 404, got %#v", err)
	}
	if a.hits.Load() != 1 || b.hits.Load() != 0 {
		t.Errorf("expected hits a=1 b=0, got a=%d b=%d", a.hits.Load(), b.hits.Load())
	}
	if len(*slept) != 0 {
		t.Errorf("client errors must not be retried, slept %v", *slept)
	}
}

func TestClient_BadRequestBodyMessage(t *testing.T) {
	a := newCountingServer(t, jsonHandler(http.StatusBadRequest, domain.ErrorBody{Error: "invalid cell"}))
	b := newCountingServer(t, jsonHandler(http.StatusOK, sampleSheet))

	c, _ := newTestClient(t, []string{a.URL, b.URL}, 1)

	_, err := c.Do(context.Background(), Get("/sheets/s1"))
	if err == nil || err.Error() != "invalid cell" {
		t.Fatalf("expected invalid cell, got %v", err)
	}
	if b.hits.Load() != 0 {
		t.Errorf("fallback contacted after 400")
	}
}

func TestClient_SyntheticMessageWithoutBody(t *testing.T) {
	a := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	c, _ := newTestClient(t, []string{a.URL}, 0)

	_, err := c.Do(context.Background(), Get("/sheets/s1"))
	if err == nil || err.Error() != "HTTP 403" {
		t.Fatalf("expected HTTP 403, got %v", err)
	}
}

func TestClient_WriteNeverFallsBack(t *testing.T) {
	a := newCountingServer(t, jsonHandler(http.StatusInternalServerError, domain.ErrorBody{Error: "boom"}))
	b := newCountingServer(t, jsonHandler(http.StatusOK, domain.WriteResult{OK: true}))

	methods := []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}
	for _, m := range methods {
		t.Run(m, func(t *testing.T) {
			a.hits.Store(0)
			b.hits.Store(0)
			c, _ := newTestClient(t, []string{a.URL, b.URL}, 0)

			_, err := c.Do(context.Background(), NewWrite(m, "/sheets/s1/Tab/row", domain.RowAppend{Values: []string{"x"}}))
			if err == nil {
				t.Fatal("expected error from primary")
			}
			if a.hits.Load() != 1 {
				t.Errorf("expected 1 call to primary, got %d", a.hits.Load())
			}
			if b.hits.Load() != 0 {
				t.Errorf("write reached fallback %d times", b.hits.Load())
			}
		})
	}
}

func TestClient_RetriesWithBackoff(t *testing.T) {
	var n atomic.Int32
	a := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1) < 4 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		jsonHandler(http.StatusOK, domain.SheetMeta{Sheets: []domain.SheetTab{{ID: 1, Title: "A"}}})(w, r)
	})

	var statuses []string
	c, slept := newTestClient(t, []string{a.URL}, 3)
	c.onStatus = func(msg string) { statuses = append(statuses, msg) }

	var meta domain.SheetMeta
	if err := c.DoJSON(context.Background(), Get("/sheets/s1"), &meta); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if diff := cmp.Diff(want, *slept); diff != "" {
		t.Errorf("backoff mismatch (-want +got):\n%s", diff)
	}
	if len(statuses) != 3 {
		t.Errorf("expected 3 status lines, got %v", statuses)
	}
	if a.hits.Load() != 4 {
		t.Errorf("expected 4 calls, got %d", a.hits.Load())
	}
}

func TestClient_ExhaustionReturnsLastError(t *testing.T) {
	a := newCountingServer(t, jsonHandler(http.StatusServiceUnavailable, domain.ErrorBody{Error: "a down"}))
	b := newCountingServer(t, jsonHandler(http.StatusInternalServerError, domain.ErrorBody{Error: "b down"}))

	c, _ := newTestClient(t, []string{a.URL, b.URL}, 2)

	_, err := c.Do(context.Background(), Get("/sheets/s1"))
	var se *StatusError
	if !errors.As(err, &se) || se.Message != "b down" {
		t.Fatalf("expected last error b down, got %v", err)
	}
	if a.hits.Load() != 3 || b.hits.Load() != 3 {
		t.Errorf("expected 3 calls each, got a=%d b=%d", a.hits.Load(), b.hits.Load())
	}
}

func TestClient_CancelledContextStops(t *testing.T) {
	a := newCountingServer(t, jsonHandler(http.StatusBadGateway, nil))
	c, _ := newTestClient(t, []string{a.URL}, 5)
	c.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	c.onStatus = func(string) { cancel() }

	_, err := c.Do(ctx, Get("/sheets/s1"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if a.hits.Load() != 1 {
		t.Errorf("expected 1 call, got %d", a.hits.Load())
	}
}

func TestClient_QueryAndBody(t *testing.T) {
	a := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sheets/s1/Tab/cell" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("refresh") != "true" {
			t.Errorf("expected refresh=true, got %q", r.URL.RawQuery)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID")
		}
		var body domain.CellUpdate
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Cell != "B2" || body.Value != "v" {
			t.Errorf("unexpected body %+v", body)
		}
		jsonHandler(http.StatusOK, domain.WriteResult{OK: true})(w, r)
	})
	c, _ := newTestClient(t, []string{a.URL + "/"}, 0)

	req := NewWrite(http.MethodPut, "sheets/s1/Tab/cell", domain.CellUpdate{Cell: "B2", Value: "v"}).
		WithQuery("refresh", "true")
	var res domain.WriteResult
	if err := c.DoJSON(context.Background(), req, &res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OK {
		t.Error("expected ok")
	}
}

func TestClient_Probe(t *testing.T) {
	a := newCountingServer(t, jsonHandler(http.StatusOK, domain.HealthReport{OK: true}))
	b := newCountingServer(t, jsonHandler(http.StatusServiceUnavailable, domain.HealthReport{OK: false, Error: "db down"}))

	c, _ := newTestClient(t, []string{a.URL, b.URL}, 3)
	res := c.Probe(context.Background())
	if len(res) != 2 {
		t.Fatalf("expected 2 results, got %d", len(res))
	}
	if !res[0].OK || res[0].Err != nil {
		t.Errorf("expected first candidate healthy, got %+v", res[0])
	}
	if res[1].OK || res[1].Err == nil {
		t.Errorf("expected second candidate unhealthy, got %+v", res[1])
	}
	if b.hits.Load() != 1 {
		t.Errorf("probe must not retry, got %d calls", b.hits.Load())
	}
}

func TestNewClient_NoCandidates(t *testing.T) {
	if _, err := NewClient(nil, DefaultConfig()); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("expected ErrNoCandidates, got %v", err)
	}
	if _, err := NewClient([]string{" ", ""}, DefaultConfig()); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("expected ErrNoCandidates for blank urls, got %v", err)
	}
}

// Package fetch provides a resilient HTTP client for the partners backend.
//
// This package offers:
//   - An ordered list of candidate base URLs (primary first)
//   - Per-attempt timeouts via context cancellation
//   - Fallback to the next candidate on transient failures (5xx, network, timeout)
//   - Immediate failure on client errors (4xx)
//   - Outer retry with exponential backoff
//   - Writes pinned to the primary candidate
//
// # Quick Start
//
//	urls := fetch.BuildCandidates(fetch.CandidateConfig{
//	    Primary:   os.Getenv("PORTAL_API_URL"),
//	    Fallbacks: cfg.Backend.Fallbacks,
//	})
//	client, err := fetch.NewClient(urls, fetch.DefaultConfig())
//
//	var meta domain.SheetMeta
//	err = client.DoJSON(ctx, fetch.Get("/sheets/"+id), &meta)
package fetch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Request describes one logical call against the backend.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header

	// Body is JSON-encoded when non-nil.
	Body any
}

// Get creates a GET request for path.
func Get(path string) Request {
	return Request{Method: http.MethodGet, Path: path}
}

// NewWrite creates a write request with a JSON body.
func NewWrite(method, path string, body any) Request {
	return Request{Method: method, Path: path, Body: body}
}

// WithQuery returns a copy of the request with key=value added to the query.
func (r Request) WithQuery(key, value string) Request {
	q := url.Values{}
	for k, v := range r.Query {
		q[k] = append([]string(nil), v...)
	}
	q.Set(key, value)
	r.Query = q
	return r
}

// IsWrite reports whether the request mutates backend state.
func (r Request) IsWrite() bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

func (r Request) encodeBody() (io.Reader, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := json.Marshal(r.Body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return bytes.NewReader(data), nil
}

// Response is a successful (2xx) backend response.
type Response struct {
	Status   int
	Header   http.Header
	Body     []byte
	Endpoint string
}

// Decode unmarshals the JSON body into out.
func (r *Response) Decode(out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("parse response from %s: %w", r.Endpoint, err)
	}
	return nil
}

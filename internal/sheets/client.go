// Package sheets is the typed client of the sheets backend and the cached,
// stale-while-revalidate reader built on it.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/vietddude/partners/internal/core/domain"
	"github.com/vietddude/partners/internal/infra/fetch"
)

var (
	// ErrMalformedResponse is returned when a 2xx body lacks the expected fields.
	ErrMalformedResponse = errors.New("malformed response from sheets backend")

	// ErrNotAcknowledged is returned when a write answers without ok=true.
	ErrNotAcknowledged = errors.New("sheets backend did not acknowledge the write")
)

// Client calls the sheets REST API through a resilient fetch client.
type Client struct {
	http *fetch.Client
}

// NewClient wraps f.
func NewClient(f *fetch.Client) *Client {
	return &Client{http: f}
}

// Fetch exposes the underlying fetch client.
func (c *Client) Fetch() *fetch.Client {
	return c.http
}

func spreadsheetPath(id string) string {
	return "/sheets/" + url.PathEscape(id)
}

func sheetPath(id, name string) string {
	return spreadsheetPath(id) + "/" + url.PathEscape(name)
}

func readRequest(path string, refresh bool) fetch.Request {
	req := fetch.Get(path)
	if refresh {
		req = req.WithQuery("refresh", "true")
	}
	return req
}

// ListSheets returns the tabs of a spreadsheet. refresh asks the backend to
// skip its own cache.
func (c *Client) ListSheets(ctx context.Context, spreadsheetID string, refresh bool) (*domain.SheetMeta, error) {
	var meta domain.SheetMeta
	if err := c.http.DoJSON(ctx, readRequest(spreadsheetPath(spreadsheetID), refresh), &meta); err != nil {
		return nil, err
	}
	if !meta.Valid() {
		return nil, fmt.Errorf("list sheets %s: %w", spreadsheetID, ErrMalformedResponse)
	}
	return &meta, nil
}

// GetSheet returns the values of one tab.
func (c *Client) GetSheet(
	ctx context.Context,
	spreadsheetID, sheetName string,
	refresh bool,
) (*domain.SheetData, error) {
	var data domain.SheetData
	if err := c.http.DoJSON(ctx, readRequest(sheetPath(spreadsheetID, sheetName), refresh), &data); err != nil {
		return nil, err
	}
	if !data.Valid() {
		return nil, fmt.Errorf("get sheet %s/%s: %w", spreadsheetID, sheetName, ErrMalformedResponse)
	}
	return &data, nil
}

// UpdateCell sets one cell addressed in A1 notation.
func (c *Client) UpdateCell(ctx context.Context, spreadsheetID, sheetName, cell, value string) error {
	req := fetch.NewWrite(http.MethodPut, sheetPath(spreadsheetID, sheetName)+"/cell",
		domain.CellUpdate{Cell: cell, Value: value})
	return c.write(ctx, req)
}

// AppendRow appends values as a new last row.
func (c *Client) AppendRow(ctx context.Context, spreadsheetID, sheetName string, values []string) error {
	if values == nil {
		values = []string{}
	}
	req := fetch.NewWrite(http.MethodPost, sheetPath(spreadsheetID, sheetName)+"/row",
		domain.RowAppend{Values: values})
	return c.write(ctx, req)
}

// DeleteRow removes the raw row at rowIndex (0 is the header row).
func (c *Client) DeleteRow(ctx context.Context, spreadsheetID, sheetName string, rowIndex int) error {
	req := fetch.NewWrite(http.MethodDelete,
		sheetPath(spreadsheetID, sheetName)+"/row/"+strconv.Itoa(rowIndex), nil)
	return c.write(ctx, req)
}

func (c *Client) write(ctx context.Context, req fetch.Request) error {
	var res domain.WriteResult
	if err := c.http.DoJSON(ctx, req, &res); err != nil {
		return err
	}
	if !res.OK {
		return ErrNotAcknowledged
	}
	return nil
}

// Health probes every candidate once.
func (c *Client) Health(ctx context.Context) []fetch.ProbeResult {
	return c.http.Probe(ctx)
}

package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vietddude/partners/internal/core/domain"
	"github.com/vietddude/partners/internal/core/resource"
	"github.com/vietddude/partners/internal/infra/cache"
)

// ReaderConfig configures a Reader.
type ReaderConfig struct {
	Logger *slog.Logger

	// OnChange observes every resource state change.
	OnChange func(key string, t resource.Transition)
}

// Reader serves sheet reads from the client cache tier and keeps them fresh.
// Writes go straight to the backend and then reload the affected resources.
type Reader struct {
	api      *Client
	cache    *cache.Cache
	log      *slog.Logger
	onChange func(string, resource.Transition)

	mu     sync.Mutex
	metas  map[string]*resource.Resource[*domain.SheetMeta]
	sheets map[string]*resource.Resource[*domain.SheetData]
}

// NewReader creates a reader over api and the client cache c.
func NewReader(api *Client, c *cache.Cache, cfg ReaderConfig) *Reader {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		api:      api,
		cache:    c,
		log:      logger.With("component", "sheets"),
		onChange: cfg.OnChange,
		metas:    make(map[string]*resource.Resource[*domain.SheetMeta]),
		sheets:   make(map[string]*resource.Resource[*domain.SheetData]),
	}
}

// API returns the underlying client.
func (r *Reader) API() *Client {
	return r.api
}

func options[T any](r *Reader, key string) resource.Options[T] {
	opts := resource.Options[T]{Logger: r.log}
	if r.onChange != nil {
		opts.OnChange = func(t resource.Transition, _ resource.Snapshot[T]) {
			r.onChange(key, t)
		}
	}
	return opts
}

// Meta returns the resource holding a spreadsheet's tab list.
func (r *Reader) Meta(spreadsheetID string) *resource.Resource[*domain.SheetMeta] {
	key := MetaKey(spreadsheetID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.metas[key]; ok {
		return res
	}
	res := resource.New(key, r.cache,
		func(ctx context.Context, bypass bool) (*domain.SheetMeta, error) {
			return r.api.ListSheets(ctx, spreadsheetID, bypass)
		},
		options[*domain.SheetMeta](r, key))
	r.metas[key] = res
	return res
}

// Sheet returns the resource holding one tab's values.
func (r *Reader) Sheet(spreadsheetID, sheetName string) *resource.Resource[*domain.SheetData] {
	key := DataKey(spreadsheetID, sheetName)

	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.sheets[key]; ok {
		return res
	}
	res := resource.New(key, r.cache,
		func(ctx context.Context, bypass bool) (*domain.SheetData, error) {
			return r.api.GetSheet(ctx, spreadsheetID, sheetName, bypass)
		},
		options[*domain.SheetData](r, key))
	r.sheets[key] = res
	return res
}

// UpdateCell writes one cell, then reloads the tab bypassing every cache.
func (r *Reader) UpdateCell(
	ctx context.Context,
	spreadsheetID, sheetName, cell, value string,
) (resource.Snapshot[*domain.SheetData], error) {
	if err := r.api.UpdateCell(ctx, spreadsheetID, sheetName, cell, value); err != nil {
		return r.Sheet(spreadsheetID, sheetName).Snapshot(), fmt.Errorf("update %s!%s: %w", sheetName, cell, err)
	}
	return r.afterWrite(ctx, spreadsheetID, sheetName), nil
}

// AppendRow appends a row, then reloads the tab.
func (r *Reader) AppendRow(
	ctx context.Context,
	spreadsheetID, sheetName string,
	values []string,
) (resource.Snapshot[*domain.SheetData], error) {
	if err := r.api.AppendRow(ctx, spreadsheetID, sheetName, values); err != nil {
		return r.Sheet(spreadsheetID, sheetName).Snapshot(), fmt.Errorf("append row to %s: %w", sheetName, err)
	}
	return r.afterWrite(ctx, spreadsheetID, sheetName), nil
}

// DeleteRow removes a raw row, then reloads the tab.
func (r *Reader) DeleteRow(
	ctx context.Context,
	spreadsheetID, sheetName string,
	rowIndex int,
) (resource.Snapshot[*domain.SheetData], error) {
	if err := r.api.DeleteRow(ctx, spreadsheetID, sheetName, rowIndex); err != nil {
		return r.Sheet(spreadsheetID, sheetName).Snapshot(), fmt.Errorf("delete row %d of %s: %w", rowIndex, sheetName, err)
	}
	return r.afterWrite(ctx, spreadsheetID, sheetName), nil
}

func (r *Reader) afterWrite(ctx context.Context, spreadsheetID, sheetName string) resource.Snapshot[*domain.SheetData] {
	key := DataKey(spreadsheetID, sheetName)
	if err := r.cache.Invalidate(ctx, key); err != nil {
		r.log.Warn("Failed to invalidate sheet cache", "key", key, "error", err)
	}
	return r.Sheet(spreadsheetID, sheetName).Load(ctx, true)
}

// InvalidateSpreadsheet drops the cached tab list and every cached tab and
// returns how many entries were removed.
func (r *Reader) InvalidateSpreadsheet(ctx context.Context, spreadsheetID string) (int, error) {
	n, err := r.cache.InvalidatePrefix(ctx, SpreadsheetPrefix(spreadsheetID))
	if err != nil {
		return n, err
	}
	removed, err := r.cache.Remove(ctx, MetaKey(spreadsheetID))
	if err != nil {
		return n, err
	}
	if removed {
		n++
	}
	return n, nil
}

// Close stops every background refresh.
func (r *Reader) Close() {
	r.mu.Lock()
	metas := make([]*resource.Resource[*domain.SheetMeta], 0, len(r.metas))
	for _, res := range r.metas {
		metas = append(metas, res)
	}
	sheets := make([]*resource.Resource[*domain.SheetData], 0, len(r.sheets))
	for _, res := range r.sheets {
		sheets = append(sheets, res)
	}
	r.mu.Unlock()

	for _, res := range metas {
		res.Close()
	}
	for _, res := range sheets {
		res.Close()
	}
}

package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/vietddude/partners/internal/core/domain"
	"github.com/vietddude/partners/internal/infra/cache"
	"github.com/vietddude/partners/internal/sheets"
)

// param returns a path parameter with percent-escapes decoded, so tab names
// containing "/" or spaces round-trip.
func param(c echo.Context, name string) string {
	v := c.Param(name)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func (s *Server) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), defaultHealthTimeout)
	defer cancel()

	report := domain.HealthReport{OK: true, Source: s.source.Name()}
	if err := s.source.Ping(ctx); err != nil {
		report.OK = false
		report.Error = err.Error()
		return c.JSON(http.StatusServiceUnavailable, report)
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) listSheets(c echo.Context) error {
	id := param(c, "id")
	return readThrough(s, c, id, sheets.MetaKey(id), func(ctx context.Context) (*domain.SheetMeta, error) {
		return s.source.ListSheets(ctx, id)
	})
}

func (s *Server) getSheet(c echo.Context) error {
	id, name := param(c, "id"), param(c, "name")
	return readThrough(s, c, id, sheets.DataKey(id, name), func(ctx context.Context) (*domain.SheetData, error) {
		rows, err := s.source.ReadValues(ctx, id, name)
		if err != nil {
			return nil, err
		}
		return domain.NewSheetData(rows), nil
	})
}

func (s *Server) epoch(spreadsheetID string) uint64 {
	s.epochMu.Lock()
	defer s.epochMu.Unlock()
	return s.epochs[spreadsheetID]
}

// store caches v unless spreadsheetID was written since epoch was taken.
func store[T any](ctx context.Context, s *Server, spreadsheetID, key string, epoch uint64, v T) {
	s.epochMu.Lock()
	defer s.epochMu.Unlock()
	if s.epochs[spreadsheetID] != epoch {
		s.log.Debug("Dropped fill older than a write", "key", key)
		return
	}
	if _, err := cache.Put(ctx, s.cache, key, v); err != nil {
		s.log.Warn("Failed to fill cache", "key", key, "error", err)
	}
}

// readThrough answers from the server cache unless ?refresh=true, and fills
// it from the source on a miss. Concurrent fills of one key within one write
// epoch share a single source read; a refresh always reads the source itself.
func readThrough[T any](
	s *Server,
	c echo.Context,
	spreadsheetID, key string,
	load func(context.Context) (T, error),
) error {
	ctx := c.Request().Context()
	header := c.Response().Header()
	epoch := s.epoch(spreadsheetID)

	fill := func() (any, error) {
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fillTimeout)
		defer cancel()

		v, err := load(fillCtx)
		if err != nil {
			return nil, err
		}
		store(fillCtx, s, spreadsheetID, key, epoch, v)
		return v, nil
	}

	var (
		v   any
		err error
	)
	if c.QueryParam("refresh") == "true" {
		header.Set(HeaderCache, "bypass")
		v, err = fill()
	} else {
		if hit, _, ok := cache.Get[T](ctx, s.cache, key); ok {
			header.Set(HeaderCache, "hit")
			return c.JSON(http.StatusOK, hit)
		}
		header.Set(HeaderCache, "miss")
		v, err, _ = s.fills.Do(key+"@"+strconv.FormatUint(epoch, 10), fill)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (s *Server) updateCell(c echo.Context) error {
	var body domain.CellUpdate
	if err := c.Bind(&body); err != nil {
		return err
	}
	ref, err := domain.ParseCellRef(body.Cell)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	id, name := param(c, "id"), param(c, "name")
	if err := s.source.UpdateCell(c.Request().Context(), id, name, ref, body.Value); err != nil {
		return err
	}
	return s.written(c, id)
}

func (s *Server) appendRow(c echo.Context) error {
	var body domain.RowAppend
	if err := c.Bind(&body); err != nil {
		return err
	}
	if body.Values == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "values is required")
	}

	id, name := param(c, "id"), param(c, "name")
	if err := s.source.AppendRow(c.Request().Context(), id, name, body.Values); err != nil {
		return err
	}
	return s.written(c, id)
}

func (s *Server) deleteRow(c echo.Context) error {
	index, err := strconv.Atoi(strings.TrimSpace(c.Param("index")))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid row index "+strconv.Quote(c.Param("index")))
	}

	id, name := param(c, "id"), param(c, "name")
	if err := s.source.DeleteRow(c.Request().Context(), id, name, index); err != nil {
		return err
	}
	return s.written(c, id)
}

// written drops every cached tab of the spreadsheet after a mutation. The
// epoch is bumped first so fills that read before the write cannot refill.
func (s *Server) written(c echo.Context, spreadsheetID string) error {
	s.epochMu.Lock()
	s.epochs[spreadsheetID]++
	s.epochMu.Unlock()

	prefix := sheets.SpreadsheetPrefix(spreadsheetID)
	n, err := s.cache.InvalidatePrefix(c.Request().Context(), prefix)
	if err != nil {
		s.log.Warn("Failed to invalidate cache", "prefix", prefix, "error", err)
	} else {
		s.log.Debug("Invalidated spreadsheet cache", "prefix", prefix, "count", n)
	}
	return c.JSON(http.StatusOK, domain.WriteResult{OK: true})
}

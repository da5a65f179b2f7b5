// Package gateway serves the sheets REST API over a SheetSource with a
// server-side TTL cache tier in front of reads.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"

	"github.com/vietddude/partners/internal/core/domain"
	"github.com/vietddude/partners/internal/infra/cache"
	"github.com/vietddude/partners/internal/infra/storage"
	"github.com/vietddude/partners/internal/metrics"
)

// HeaderCache reports how a read was served: hit, miss or bypass.
const HeaderCache = "X-Cache"

const (
	defaultFillTimeout   = 30 * time.Second
	defaultHealthTimeout = 3 * time.Second
	shutdownTimeout      = 10 * time.Second
)

// Config holds gateway settings.
type Config struct {
	Logger *slog.Logger

	// FillTimeout bounds a source read that fills the cache. The fill is
	// detached from the request so one cancelled client does not fail the
	// others waiting on it.
	FillTimeout time.Duration
}

// Server is the sheets gateway.
type Server struct {
	echo   *echo.Echo
	source storage.SheetSource
	cache  *cache.Cache
	fills  singleflight.Group
	log    *slog.Logger

	// epochs counts writes per spreadsheet. A fill caches its result only if
	// no write happened since it started; epochMu also orders that check
	// against the bump in written.
	epochMu sync.Mutex
	epochs  map[string]uint64

	fillTimeout time.Duration
}

// NewServer creates a gateway over source with the server cache tier c.
func NewServer(source storage.SheetSource, c *cache.Cache, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FillTimeout <= 0 {
		cfg.FillTimeout = defaultFillTimeout
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:        e,
		source:      source,
		cache:       c,
		epochs:      make(map[string]uint64),
		log:         logger.With("component", "gateway"),
		fillTimeout: cfg.FillTimeout,
	}

	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(s.observe)

	e.GET("/health", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	g := e.Group("/sheets")
	g.GET("/:id", s.listSheets)
	g.GET("/:id/:name", s.getSheet)
	g.PUT("/:id/:name/cell", s.updateCell)
	g.POST("/:id/:name/row", s.appendRow)
	g.DELETE("/:id/:name/row/:index", s.deleteRow)

	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Gateway listening", "addr", addr, "source", s.source.Name())
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info("Shutting down gateway")
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("gateway shutdown: %w", err)
		}
		return nil
	}
}

// observe logs every request and records gateway metrics.
func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			// Let the error handler write the response so the status is known.
			c.Error(err)
		}

		req := c.Request()
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		status := c.Response().Status
		elapsed := time.Since(start)

		metrics.GatewayRequestsTotal.WithLabelValues(route, req.Method, strconv.Itoa(status)).Inc()
		metrics.GatewayLatency.WithLabelValues(route, req.Method).Observe(elapsed.Seconds())

		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.log.Log(req.Context(), level, "Request",
			"method", req.Method,
			"uri", req.URL.RequestURI(),
			"status", status,
			"cache", c.Response().Header().Get(HeaderCache),
			"latency", elapsed,
			"request_id", req.Header.Get("X-Request-ID"),
		)
		return nil
	}
}

// handleError writes every failure as {"error": "..."}.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed", "uri", c.Request().URL.RequestURI(), "error", err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, domain.ErrorBody{Error: msg})
	}
	if err != nil {
		s.log.Warn("Failed to write error response", "error", err)
	}
}

func errorStatus(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		if he.Internal != nil {
			return he.Code, fmt.Sprintf("%v: %v", he.Message, he.Internal)
		}
		return he.Code, fmt.Sprint(he.Message)
	case errors.Is(err, storage.ErrSpreadsheetNotFound), errors.Is(err, storage.ErrSheetNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, storage.ErrRowOutOfRange), errors.Is(err, storage.ErrCellOutOfRange):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

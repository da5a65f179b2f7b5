package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/vietddude/partners/internal/core/config"
	"github.com/vietddude/partners/internal/core/resource"
	"github.com/vietddude/partners/internal/infra/cache"
	"github.com/vietddude/partners/internal/infra/fetch"
	"github.com/vietddude/partners/internal/sheets"
)

// stderr receives status lines so stdout stays machine-readable.
var stderr io.Writer = os.Stderr

// newFetchClient builds the resilient client from the backend section.
func newFetchClient(cfg *config.AppConfig) (*fetch.Client, error) {
	candidates := fetch.BuildCandidates(fetch.CandidateConfig{
		Primary:   cfg.Backend.Primary,
		Fallbacks: cfg.Backend.Fallbacks,
		Broken:    cfg.Backend.Broken,
	})
	slog.Debug("Backend candidates", "urls", candidates)

	retry := fetch.DefaultRetryConfig
	retry.MaxRetries = cfg.Backend.MaxRetries
	return fetch.NewClient(candidates, fetch.Config{
		Timeout: cfg.Backend.Timeout,
		Retry:   retry,
		OnStatus: func(msg string) {
			_, _ = fmt.Fprintln(stderr, msg)
		},
	})
}

// newReader wires the fetch client and the client cache tier.
func newReader(cfg *config.AppConfig) (*sheets.Reader, *cache.Cache, error) {
	f, err := newFetchClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	c, err := openClientCache(cfg)
	if err != nil {
		return nil, nil, err
	}
	r := sheets.NewReader(sheets.NewClient(f), c, sheets.ReaderConfig{
		OnChange: func(key string, t resource.Transition) {
			slog.Debug("Resource state", "key", key, "from", t.From, "to", t.To)
		},
	})
	return r, c, nil
}

func openClientCache(cfg *config.AppConfig) (*cache.Cache, error) {
	backend, err := cache.OpenBackend(cfg.Cache.Client, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to open client cache: %w", err)
	}
	return cache.New(backend, cache.Config{
		TTL:  cfg.Cache.Client.TTL,
		Tier: "client",
	}), nil
}

// age formats how long ago t was, for "cached 2m ago" lines.
func age(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return time.Since(t).Round(time.Second).String() + " ago"
}

// Package cache provides a TTL cache of JSON payload envelopes over
// interchangeable key-value backends.
//
// Every value is stored as an envelope:
//
//	{"data": ..., "updatedAt": <unix ms>, "expiresAt": <unix ms>}
//
// An envelope is never returned once now > expiresAt; it is deleted on that
// read. Undecodable or shape-invalid envelopes are deleted and reported as a
// miss, never as an error.
//
// Backends:
//   - MemoryBackend: process-lifetime map (server tier)
//   - SQLiteBackend: file-backed persistent store (client tier)
//   - RedisBackend: shared store for several gateway processes
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/partners/internal/metrics"
)

const (
	// DefaultClientTTL is the freshness window of the client tier.
	DefaultClientTTL = 5 * time.Minute

	// DefaultServerTTL is the freshness window of the gateway tier.
	DefaultServerTTL = 60 * time.Second
)

// Backend is a raw key-value store. Implementations must make a single Set
// atomic per key so readers never observe a torn value.
type Backend interface {
	// Get returns the stored bytes and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key. ttl > 0 lets the backend drop the key on
	// its own once the envelope has expired.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Keys lists keys starting with prefix. An empty prefix lists everything.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Name identifies the backend in logs.
	Name() string

	Close() error
}

// Envelope wraps a cached payload with its freshness timestamps.
type Envelope struct {
	Data      json.RawMessage `json:"data"`
	UpdatedAt int64           `json:"updatedAt"`
	ExpiresAt int64           `json:"expiresAt"`
}

// Updated returns UpdatedAt as a time.
func (e *Envelope) Updated() time.Time {
	return time.UnixMilli(e.UpdatedAt)
}

// Expires returns ExpiresAt as a time.
func (e *Envelope) Expires() time.Time {
	return time.UnixMilli(e.ExpiresAt)
}

func (e *Envelope) valid() bool {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return false
	}
	return e.UpdatedAt > 0 && e.ExpiresAt >= e.UpdatedAt
}

// Config holds cache settings.
type Config struct {
	TTL time.Duration

	// Tier labels metrics and logs ("client" or "server").
	Tier string

	// Clock overrides time.Now, for tests.
	Clock  func() time.Time
	Logger *slog.Logger
}

// Cache is a TTL cache over a Backend.
type Cache struct {
	backend Backend
	ttl     time.Duration
	tier    string
	now     func() time.Time
	log     *slog.Logger
}

// New creates a cache over backend.
func New(backend Backend, cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultClientTTL
	}
	if cfg.Tier == "" {
		cfg.Tier = "client"
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		backend: backend,
		ttl:     cfg.TTL,
		tier:    cfg.Tier,
		now:     cfg.Clock,
		log:     logger.With("component", "cache", "tier", cfg.Tier, "backend", backend.Name()),
	}
}

// TTL returns the configured freshness window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Lookup returns the live envelope stored under key.
func (c *Cache) Lookup(ctx context.Context, key string) (*Envelope, bool) {
	raw, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.log.Warn("Cache read failed", "key", key, "error", err)
		metrics.CacheLookupsTotal.WithLabelValues(c.tier, "error").Inc()
		return nil, false
	}
	if !ok {
		metrics.CacheLookupsTotal.WithLabelValues(c.tier, "miss").Inc()
		return nil, false
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || !env.valid() {
		c.evict(ctx, key, "corrupt")
		return nil, false
	}
	if c.now().UnixMilli() > env.ExpiresAt {
		c.evict(ctx, key, "expired")
		return nil, false
	}

	metrics.CacheLookupsTotal.WithLabelValues(c.tier, "hit").Inc()
	return &env, true
}

// Store writes data under key, overwriting any prior value.
func (c *Cache) Store(ctx context.Context, key string, data any) (*Envelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal cache payload: %w", err)
	}

	now := c.now()
	env := &Envelope{
		Data:      payload,
		UpdatedAt: now.UnixMilli(),
		ExpiresAt: now.Add(c.ttl).UnixMilli(),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal cache envelope: %w", err)
	}
	if err := c.backend.Set(ctx, key, raw, c.ttl); err != nil {
		return nil, fmt.Errorf("cache write %s: %w", key, err)
	}
	return env, nil
}

// Invalidate removes one key.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if err := c.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("cache delete %s: %w", key, err)
	}
	metrics.CacheInvalidationsTotal.WithLabelValues(c.tier).Inc()
	return nil
}

// Remove deletes key and reports whether it was stored.
func (c *Cache) Remove(ctx context.Context, key string) (bool, error) {
	_, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	return true, c.Invalidate(ctx, key)
}

// InvalidatePrefix removes every key starting with prefix and returns the count.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := c.backend.Keys(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("cache list %q: %w", prefix, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := c.backend.Delete(ctx, keys...); err != nil {
		return 0, fmt.Errorf("cache delete %q: %w", prefix, err)
	}
	metrics.CacheInvalidationsTotal.WithLabelValues(c.tier).Add(float64(len(keys)))
	c.log.Debug("Invalidated cache prefix", "prefix", prefix, "count", len(keys))
	return len(keys), nil
}

// Reset drops every entry.
func (c *Cache) Reset(ctx context.Context) error {
	_, err := c.InvalidatePrefix(ctx, "")
	return err
}

// Close closes the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}

func (c *Cache) evict(ctx context.Context, key, reason string) {
	metrics.CacheLookupsTotal.WithLabelValues(c.tier, reason).Inc()
	if err := c.backend.Delete(ctx, key); err != nil {
		c.log.Warn("Cache eviction failed", "key", key, "reason", reason, "error", err)
		return
	}
	c.log.Debug("Evicted cache entry", "key", key, "reason", reason)
}

// validator is implemented by payloads that can check their own shape.
type validator interface {
	Valid() bool
}

// Get reads and decodes the payload stored under key.
func Get[T any](ctx context.Context, c *Cache, key string) (T, *Envelope, bool) {
	var zero T
	env, ok := c.Lookup(ctx, key)
	if !ok {
		return zero, nil, false
	}

	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		c.evict(ctx, key, "corrupt")
		return zero, nil, false
	}
	if !validPayload(&v) {
		c.evict(ctx, key, "corrupt")
		return zero, nil, false
	}
	return v, env, true
}

// validPayload applies Valid for both value and pointer payload types.
func validPayload[T any](v *T) bool {
	if vv, ok := any(v).(validator); ok {
		return vv.Valid()
	}
	if vv, ok := any(*v).(validator); ok {
		return vv.Valid()
	}
	return true
}

// Put stores v under key.
func Put[T any](ctx context.Context, c *Cache, key string, v T) (*Envelope, error) {
	return c.Store(ctx, key, v)
}

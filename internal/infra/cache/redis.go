package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	// Prefix namespaces every key, e.g. "partners:".
	Prefix string `yaml:"prefix"`
}

// RedisBackend stores entries in Redis with native key expiry, so it can be
// shared by several gateway processes.
type RedisBackend struct {
	rdb          *redis.Client
	prefix       string
	owned        bool
	queryTimeout time.Duration
}

// NewRedisBackend connects to Redis and verifies the connection.
func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	b := NewRedisBackendFromClient(rdb, cfg.Prefix)
	b.owned = true
	return b, nil
}

// NewRedisBackendFromClient wraps an existing client. The caller keeps
// ownership of the client; Close is a no-op.
func NewRedisBackendFromClient(rdb *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{
		rdb:          rdb,
		prefix:       prefix,
		queryTimeout: DefaultQueryTimeout,
	}
}

func (r *RedisBackend) Name() string { return "redis" }

func (r *RedisBackend) key(k string) string {
	return r.prefix + k
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	val, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get failed: %w", err)
	}
	return val, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	if ttl < 0 {
		ttl = 0
	}
	if err := r.rdb.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	if err := r.rdb.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("del failed: %w", err)
	}
	return nil
}

func (r *RedisBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	pattern := escapeGlob(r.key(prefix)) + "*"
	var keys []string
	iter := r.rdb.Scan(ctx, 0, pattern, 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	return keys, nil
}

// Close closes the connection when the backend created it.
func (r *RedisBackend) Close() error {
	if !r.owned {
		return nil
	}
	return r.rdb.Close()
}

// escapeGlob escapes the characters Redis MATCH treats as pattern syntax.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}

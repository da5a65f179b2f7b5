package cache

import (
	"fmt"
	"time"
)

// Backend kinds accepted in configuration.
const (
	KindMemory = "memory"
	KindSQLite = "sqlite"
	KindRedis  = "redis"
)

// TierConfig configures one cache tier.
type TierConfig struct {
	Backend string        `yaml:"backend"` // memory, sqlite, redis
	Path    string        `yaml:"path"`    // sqlite file
	TTL     time.Duration `yaml:"ttl"`
	Sweep   time.Duration `yaml:"sweep_interval"`
}

// OpenBackend builds the backend selected by cfg.
func OpenBackend(cfg TierConfig, redisCfg RedisConfig) (Backend, error) {
	switch cfg.Backend {
	case "", KindMemory:
		return NewMemoryBackend(cfg.Sweep), nil
	case KindSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite cache backend requires a path")
		}
		return NewSQLiteBackend(cfg.Path, cfg.Sweep)
	case KindRedis:
		if redisCfg.URL == "" {
			return nil, fmt.Errorf("redis cache backend requires redis.url")
		}
		return NewRedisBackend(redisCfg)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

package config

import (
	"time"

	"github.com/vietddude/partners/internal/infra/cache"
	"github.com/vietddude/partners/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig      `yaml:"server"`
	Backend  BackendConfig     `yaml:"backend"`
	Cache    CacheConfig       `yaml:"cache"`
	Redis    cache.RedisConfig `yaml:"redis"`
	Logging  LoggingConfig     `yaml:"logging"`
	Database postgres.Config   `yaml:"database"`
}

// ServerConfig holds gateway HTTP server settings.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	Source   string `yaml:"source"`    // memory, postgres
	SeedFile string `yaml:"seed_file"` // YAML spreadsheets loaded at startup
}

// BackendConfig lists the sheets backends a client may contact.
type BackendConfig struct {
	Primary    string        `yaml:"primary"`
	Fallbacks  []string      `yaml:"fallbacks"`
	Broken     []string      `yaml:"broken"` // known-unreachable deployments
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// CacheConfig holds both cache tiers.
type CacheConfig struct {
	Client cache.TierConfig `yaml:"client"`
	Server cache.TierConfig `yaml:"server"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

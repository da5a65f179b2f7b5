package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/partners/internal/infra/cache"
)

// EnvPrimaryURL overrides backend.primary when set.
const EnvPrimaryURL = "PORTAL_API_URL"

const (
	defaultPort       = 8080
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to defaults otherwise.
func LoadOrDefault(path string) (*AppConfig, error) {
	if path != "" {
		cfg, err := Load(path)
		if err == nil || !errors.Is(err, os.ErrNotExist) {
			return cfg, err
		}
	}
	cfg := &AppConfig{}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills unset fields and applies environment overrides.
func (c *AppConfig) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.Source == "" {
		if c.Database.URL != "" {
			c.Server.Source = "postgres"
		} else {
			c.Server.Source = "memory"
		}
	}

	if url := os.Getenv(EnvPrimaryURL); url != "" {
		c.Backend.Primary = url
	}
	if c.Backend.Primary == "" {
		c.Backend.Primary = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = defaultTimeout
	}
	if c.Backend.MaxRetries < 0 {
		c.Backend.MaxRetries = 0
	} else if c.Backend.MaxRetries == 0 {
		c.Backend.MaxRetries = defaultMaxRetries
	}

	if c.Cache.Client.Backend == "" {
		c.Cache.Client.Backend = cache.KindSQLite
	}
	if c.Cache.Client.Backend == cache.KindSQLite && c.Cache.Client.Path == "" {
		c.Cache.Client.Path = defaultClientCachePath()
	}
	if c.Cache.Client.TTL <= 0 {
		c.Cache.Client.TTL = cache.DefaultClientTTL
	}

	if c.Cache.Server.Backend == "" {
		c.Cache.Server.Backend = cache.KindMemory
	}
	if c.Cache.Server.TTL <= 0 {
		c.Cache.Server.TTL = cache.DefaultServerTTL
	}
	if c.Cache.Server.Sweep <= 0 {
		c.Cache.Server.Sweep = time.Minute
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func defaultClientCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "partners", "cache.db")
}

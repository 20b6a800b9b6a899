package queryscope

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config defines service configuration.
type Config struct {
	// HTTP configures the HTTP API server.
	HTTP HTTPConfig `yaml:"http"`

	// Auth configures HTTP API authentication.
	// If Enabled is false, no authentication is required.
	Auth AuthConfig `yaml:"auth"`

	// History configures persistent query history.
	// If Enabled is false, queries are not recorded.
	History HistoryConfig `yaml:"history"`

	// Catalog configures the example query catalog.
	Catalog CatalogConfig `yaml:"catalog"`
}

// HTTPConfig groups HTTP server settings.
type HTTPConfig struct {
	// ListenAddr is the address the API server binds to.
	// Default: ":8428".
	ListenAddr string `yaml:"listen_addr"`

	// MaxBodyBytes is the maximum allowed request body size.
	// Default: 1MB.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// AuthConfig groups API authentication settings.
type AuthConfig struct {
	// Enabled turns on API key authentication.
	Enabled bool `yaml:"enabled"`

	// HashedAPIKeys is the list of accepted API keys, each stored as a
	// bcrypt hash. Plaintext keys never appear in configuration.
	HashedAPIKeys []string `yaml:"hashed_api_keys"`

	// ExcludePaths lists request paths served without authentication.
	// The health endpoint is always excluded.
	ExcludePaths []string `yaml:"exclude_paths"`
}

// HistoryConfig groups query history settings.
type HistoryConfig struct {
	// Enabled turns on history recording.
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file for history storage.
	// Default: "queryscope.db".
	Path string `yaml:"path"`

	// MaxEntries is the number of history rows to retain. Older rows are
	// pruned as new ones arrive. Default: 1000.
	MaxEntries int `yaml:"max_entries"`
}

// CatalogConfig groups example catalog settings.
type CatalogConfig struct {
	// Paths lists YAML files with additional example queries, loaded on
	// top of the built-in set.
	Paths []string `yaml:"paths"`
}

// DefaultConfig returns a configuration with sensible defaults: an open
// API server on :8428 with history recording enabled.
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			ListenAddr:   ":8428",
			MaxBodyBytes: 1 << 20,
		},
		History: HistoryConfig{
			Enabled:    true,
			Path:       "queryscope.db",
			MaxEntries: 1000,
		},
	}
}

// LoadConfig reads a YAML configuration file, applying defaults for any
// setting the file leaves out.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.HTTP.ListenAddr == "" {
		cfg.HTTP.ListenAddr = ":8428"
	}
	if cfg.HTTP.MaxBodyBytes <= 0 {
		cfg.HTTP.MaxBodyBytes = 1 << 20
	}
	if cfg.History.Path == "" {
		cfg.History.Path = "queryscope.db"
	}
	if cfg.History.MaxEntries <= 0 {
		cfg.History.MaxEntries = 1000
	}

	return cfg, nil
}

// Package config provides configuration management for the OPERA layer service.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the complete application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig    `envPrefix:"SERVER_"`
	CMR       CMRConfig       `envPrefix:"CMR_"`
	Earthdata EarthdataConfig `envPrefix:"EARTHDATA_"`
	Service   ServiceConfig   `envPrefix:"SERVICE_"`
	Search    SearchConfig    `envPrefix:"SEARCH_"`
	Cache     CacheConfig     `envPrefix:"CACHE_"`
	Update    UpdateConfig    `envPrefix:"UPDATE_"`
	Settings  SettingsConfig  `envPrefix:"SETTINGS_"`
	Logging   LoggingConfig   `envPrefix:"LOG_"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// CMRConfig contains NASA CMR API client configuration.
type CMRConfig struct {
	BaseURL  string        `env:"BASE_URL" envDefault:"https://cmr.earthdata.nasa.gov/search"`
	Provider string        `env:"PROVIDER" envDefault:"POCLOUD"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// EarthdataConfig contains Earthdata Login (URS) configuration.
type EarthdataConfig struct {
	URSBaseURL      string        `env:"URS_BASE_URL" envDefault:"https://urs.earthdata.nasa.gov"`
	CredentialsFile string        `env:"CREDENTIALS_FILE" envDefault:""` // defaults to ~/.netrc when empty
	Timeout         time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// ServiceConfig contains service metadata configuration.
type ServiceConfig struct {
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	Title       string `env:"TITLE" envDefault:"NASA OPERA Layer Service"`
	Description string `env:"DESCRIPTION" envDefault:"Search and layer service for NASA OPERA data products"`
	ProductsDir string `env:"PRODUCTS_DIR" envDefault:""` // optional directory of product definition JSON files
}

// SearchConfig contains search limits and result-cache configuration.
type SearchConfig struct {
	DefaultMaxResults int           `env:"DEFAULT_MAX_RESULTS" envDefault:"50"`
	MaxResultsCap     int           `env:"MAX_RESULTS_CAP" envDefault:"500"`
	CacheSize         int           `env:"CACHE_SIZE" envDefault:"128"`
	CacheTTL          time.Duration `env:"CACHE_TTL" envDefault:"5m"`
}

// CacheConfig contains raster asset cache configuration.
type CacheConfig struct {
	Dir string `env:"DIR" envDefault:""` // defaults to <tmp>/opera_cache when empty
}

// UpdateConfig contains update-checker configuration.
type UpdateConfig struct {
	FeedBaseURL string        `env:"FEED_BASE_URL" envDefault:"https://api.github.com"`
	RepoOwner   string        `env:"REPO_OWNER" envDefault:"opengeos"`
	RepoName    string        `env:"REPO_NAME" envDefault:"qgis-nasa-opera-plugin"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"15s"`
}

// SettingsConfig contains user settings persistence configuration.
type SettingsConfig struct {
	File string `env:"FILE" envDefault:""` // defaults to <user config dir>/opera-layer-service/settings.json
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// Load parses configuration from environment variables.
// It returns an error if required fields are missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}

	opts := env.Options{
		RequiredIfNoDef: true,
	}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive, got %s", c.Server.ReadTimeout)
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive, got %s", c.Server.WriteTimeout)
	}

	if c.CMR.BaseURL == "" {
		return fmt.Errorf("CMR base URL is required")
	}

	if c.CMR.Timeout <= 0 {
		return fmt.Errorf("CMR timeout must be positive, got %s", c.CMR.Timeout)
	}

	if c.Search.DefaultMaxResults < 1 {
		return fmt.Errorf("default max results must be at least 1, got %d", c.Search.DefaultMaxResults)
	}

	if c.Search.MaxResultsCap < c.Search.DefaultMaxResults {
		return fmt.Errorf("max results cap (%d) must be at least the default max results (%d)",
			c.Search.MaxResultsCap, c.Search.DefaultMaxResults)
	}

	if c.Search.CacheSize < 1 {
		return fmt.Errorf("search cache size must be at least 1, got %d", c.Search.CacheSize)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log format must be json or text, got %q", c.Logging.Format)
	}

	return nil
}

// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file read when none is given.
const DefaultPath = "inventorius.yaml"

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Database DatabaseConfig `yaml:"database"`
	Activity ActivityConfig `yaml:"activity"`
	TLS      TLSConfig      `yaml:"tls"`
	Docs     DocsConfig     `yaml:"docs"`
	Demo     DemoConfig     `yaml:"demo"`
}

// ServerConfig configures the rendering shell's HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	Dev          bool          `yaml:"dev"`       // Development banner, no page caching
	NoClient     bool          `yaml:"no_client"` // Omit the client script from pages
	Open         bool          `yaml:"open"`      // Open a browser once serving
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// APIConfig configures the inventory API backend.
type APIConfig struct {
	URL         string            `yaml:"url"`
	Timeout     time.Duration     `yaml:"timeout"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	WaitTimeout time.Duration     `yaml:"wait_timeout"` // How long serve waits for the backend at boot
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// DatabaseConfig configures the local database holding the activity log
// and the ACME cache.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite"
	DSN    string `yaml:"dsn"`
}

// ActivityConfig configures the local log of mutations made through the shell.
type ActivityConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Retention time.Duration `yaml:"retention"`
	Recent    int           `yaml:"recent"` // Entries shown on the home page
}

// TLSConfig configures automatic certificates.
type TLSConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Email    string   `yaml:"email"`
	Staging  bool     `yaml:"staging"`
	Domains  []string `yaml:"domains"`
	HTTPAddr string   `yaml:"http_addr"` // Listener for http-01 challenges and redirects
}

// DocsConfig configures the Swagger UI for the inventory API.
type DocsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DemoConfig serves an in-process inventory API instead of a remote one.
type DemoConfig struct {
	Enabled bool `yaml:"enabled"`
	Seed    bool `yaml:"seed"` // Populate with sample bins, SKUs and batches
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	INVENTORIUS_API_URL          - Inventory API base URL (default: http://127.0.0.1:8081)
//	INVENTORIUS_API_TIMEOUT      - Per-request timeout (default: 10s)
//	INVENTORIUS_SERVER_HOST      - Server host (default: 0.0.0.0)
//	INVENTORIUS_SERVER_PORT      - Server port (default: 8080)
//	INVENTORIUS_DEV              - Development rendering
//	INVENTORIUS_NOCLIENT         - Omit the client script
//	INVENTORIUS_LOG_LEVEL        - Log level: debug, info, warn, error (default: info)
//	INVENTORIUS_LOG_FORMAT       - Log format: json or console (default: json)
//	INVENTORIUS_METRICS_ENABLED  - Enable /metrics endpoint
//	INVENTORIUS_DATABASE_DSN     - SQLite file (default: inventorius.db)
//	INVENTORIUS_ACTIVITY_ENABLED - Record mutations made through the shell
//	INVENTORIUS_TLS_EMAIL        - ACME account email; enables TLS
//	INVENTORIUS_TLS_DOMAINS      - Comma separated allowed hosts
//	INVENTORIUS_DOCS_ENABLED     - Serve Swagger UI at /docs
//	INVENTORIUS_DEMO             - Serve the in-process demo API
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback loads path when it exists and falls back to the
// environment otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies INVENTORIUS_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("INVENTORIUS_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("INVENTORIUS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("INVENTORIUS_DEV"); v != "" {
		cfg.Server.Dev = parseBool(v)
	}
	if v := os.Getenv("INVENTORIUS_NOCLIENT"); v != "" {
		cfg.Server.NoClient = parseBool(v)
	}

	// API configuration
	if v := os.Getenv("INVENTORIUS_API_URL"); v != "" {
		cfg.API.URL = v
	}
	if v := os.Getenv("INVENTORIUS_API_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.API.Timeout = d
		}
	}

	// Logging configuration
	if v := os.Getenv("INVENTORIUS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("INVENTORIUS_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("INVENTORIUS_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("INVENTORIUS_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}

	// Database and activity configuration
	if v := os.Getenv("INVENTORIUS_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("INVENTORIUS_ACTIVITY_ENABLED"); v != "" {
		cfg.Activity.Enabled = parseBool(v)
	}

	// TLS configuration
	if v := os.Getenv("INVENTORIUS_TLS_EMAIL"); v != "" {
		cfg.TLS.Enabled = true
		cfg.TLS.Email = v
	}
	if v := os.Getenv("INVENTORIUS_TLS_DOMAINS"); v != "" {
		cfg.TLS.Domains = splitList(v)
	}

	// Docs and demo
	if v := os.Getenv("INVENTORIUS_DOCS_ENABLED"); v != "" {
		cfg.Docs.Enabled = parseBool(v)
	}
	if v := os.Getenv("INVENTORIUS_DEMO"); v != "" {
		cfg.Demo.Enabled = parseBool(v)
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.API.URL == "" {
		cfg.API.URL = "http://127.0.0.1:8081"
	}
	cfg.API.URL = strings.TrimSuffix(cfg.API.URL, "/")
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 10 * time.Second
	}
	if cfg.API.WaitTimeout == 0 {
		cfg.API.WaitTimeout = 30 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "inventorius.db"
	}
	if cfg.Activity.Retention == 0 {
		cfg.Activity.Retention = 30 * 24 * time.Hour
	}
	if cfg.Activity.Recent == 0 {
		cfg.Activity.Recent = 10
	}

	if cfg.TLS.HTTPAddr == "" {
		cfg.TLS.HTTPAddr = ":80"
	}
}

// Validate reports every problem with cfg at once.
func Validate(cfg *Config) error {
	var result *multierror.Error

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port))
	}

	if !cfg.Demo.Enabled {
		u, err := url.Parse(cfg.API.URL)
		switch {
		case err != nil:
			result = multierror.Append(result, fmt.Errorf("api.url: %w", err))
		case u.Scheme != "http" && u.Scheme != "https":
			result = multierror.Append(result, fmt.Errorf("api.url must be an http or https URL, got %q", cfg.API.URL))
		case u.Host == "":
			result = multierror.Append(result, fmt.Errorf("api.url must include a host, got %q", cfg.API.URL))
		}
	}
	if cfg.API.Timeout < 0 {
		result = multierror.Append(result, fmt.Errorf("api.timeout must not be negative"))
	}

	if _, err := zerolog.ParseLevel(cfg.Logging.Level); err != nil || cfg.Logging.Level == "" {
		result = multierror.Append(result, fmt.Errorf("logging.level must be one of: debug, info, warn, error, got %q", cfg.Logging.Level))
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "console" {
		result = multierror.Append(result, fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format))
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		result = multierror.Append(result, fmt.Errorf("metrics.path must start with '/', got %q", cfg.Metrics.Path))
	}

	if cfg.NeedsDatabase() {
		if cfg.Database.Driver != "sqlite" {
			result = multierror.Append(result, fmt.Errorf("database.driver must be 'sqlite', got %q", cfg.Database.Driver))
		}
		if cfg.Database.DSN == "" {
			result = multierror.Append(result, fmt.Errorf("database.dsn is required"))
		}
	}
	if cfg.Activity.Recent < 0 {
		result = multierror.Append(result, fmt.Errorf("activity.recent must not be negative"))
	}

	if cfg.TLS.Enabled && cfg.TLS.Email == "" {
		result = multierror.Append(result, fmt.Errorf("tls.email is required when tls is enabled"))
	}

	return result.ErrorOrNil()
}

// NeedsDatabase reports whether any enabled feature stores data locally.
func (c *Config) NeedsDatabase() bool {
	return c.Activity.Enabled || c.TLS.Enabled
}

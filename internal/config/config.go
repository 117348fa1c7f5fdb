// Package config provides YAML-based configuration for the release panel:
// the upstream repository, the catalog service endpoint, polling cadence,
// and storage/logging settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Sentinel errors for configuration validation
var (
	ErrRepositoryRequired     = errors.New("repository is required")
	ErrInvalidRepository      = errors.New("repository must be in format 'owner/repo'")
	ErrCatalogBaseURLRequired = errors.New("catalog base_url is required")
)

// Defaults applied when the corresponding field is absent or malformed.
const (
	defaultPollInterval   = 2 * time.Second
	defaultRequestTimeout = 10 * time.Second
	defaultDatabasePath   = "cdpanel.db"
	defaultLogLevel       = "info"
	defaultLogFormat      = "text"
	defaultLogFile        = "cdpanel.log"
)

// Config represents the top-level configuration structure.
type Config struct {
	Repository string        `yaml:"repository"`
	Catalog    CatalogConfig `yaml:"catalog"`
	Timing     TimingConfig  `yaml:"timing"`
	Storage    StorageConfig `yaml:"storage"`
	Log        LogConfig     `yaml:"log"`
}

// CatalogConfig points at the catalog service.
type CatalogConfig struct {
	BaseURL    string `yaml:"base_url"`
	OfferingID string `yaml:"offering_id"`
}

// TimingConfig carries the panel cadences as duration strings.
type TimingConfig struct {
	PollInterval   string `yaml:"poll_interval"`
	RequestTimeout string `yaml:"request_timeout"`
}

// StorageConfig locates the session database.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Repository) == "" {
		return ErrRepositoryRequired
	}
	if _, _, err := c.OwnerRepo(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Catalog.BaseURL) == "" {
		return ErrCatalogBaseURLRequired
	}
	return nil
}

// OwnerRepo splits the repository into owner and name.
func (c *Config) OwnerRepo() (owner, repo string, err error) {
	parts := strings.Split(c.Repository, "/")
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return "", "", fmt.Errorf("%w: got %s", ErrInvalidRepository, c.Repository)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}

// PollInterval parses and returns the branch poll cadence.
func (c *Config) PollInterval() time.Duration {
	return parseDuration(c.Timing.PollInterval, defaultPollInterval)
}

// RequestTimeout parses and returns the stuck-request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return parseDuration(c.Timing.RequestTimeout, defaultRequestTimeout)
}

// DatabasePath returns the session database location.
func (c *Config) DatabasePath() string {
	if strings.TrimSpace(c.Storage.DatabasePath) == "" {
		return defaultDatabasePath
	}
	return c.Storage.DatabasePath
}

// LogLevel returns the configured log level.
func (c *Config) LogLevel() string {
	if strings.TrimSpace(c.Log.Level) == "" {
		return defaultLogLevel
	}
	return c.Log.Level
}

// LogFormat returns the configured log format.
func (c *Config) LogFormat() string {
	if strings.TrimSpace(c.Log.Format) == "" {
		return defaultLogFormat
	}
	return c.Log.Format
}

// LogFile returns the log file path for interactive commands.
func (c *Config) LogFile() string {
	if strings.TrimSpace(c.Log.File) == "" {
		return defaultLogFile
	}
	return c.Log.File
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

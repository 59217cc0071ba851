// Package config manages application configuration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Config holds all application configuration for catalog ingestion runs.
type Config struct {
	// APIKey is the YouTube Data API key. Required; there is no default
	// and a missing key is a fatal startup error.
	APIKey string `json:"api_key"`
	// ChannelID is the YouTube channel whose catalog is ingested.
	ChannelID string `json:"channel_id"`

	// MaxResults bounds both the search page size and the detail/playlist-item
	// batch size. The API caps this at 50.
	MaxResults int `json:"max_results"`
	// MaxPages bounds the number of search pages processed in one run.
	// Pagination resumes from the persisted token on the next run.
	MaxPages int `json:"max_pages"`
	// LockTimeout is the age after which an in-progress run lock is
	// considered stale and overridden.
	LockTimeout time.Duration `json:"lock_timeout"`
	// BatchSize is the maximum number of upserts per store commit.
	BatchSize int `json:"batch_size"`

	// MongoURI is the connection string for the document store.
	MongoURI string `json:"mongo_uri"`
	// Database is the Mongo database name.
	Database string `json:"database"`

	// ListenAddr is the bind address for the trigger HTTP server.
	ListenAddr string `json:"listen_addr"`

	// QuotaDailyLimit is the platform's daily quota budget in units.
	QuotaDailyLimit int `json:"quota_daily_limit"`
	// QuotaReserve is the number of units kept in reserve; operations that
	// would dip into the reserve are denied.
	QuotaReserve int `json:"quota_reserve"`

	// HTTPTimeout is the per-request timeout for platform calls.
	HTTPTimeout time.Duration `json:"http_timeout"`
}

// DefaultConfig returns configuration with safe defaults.
// APIKey and ChannelID have no defaults and must be provided.
func DefaultConfig() *Config {
	return &Config{
		MaxResults:      50,
		MaxPages:        3,
		LockTimeout:     30 * time.Minute,
		BatchSize:       500,
		MongoURI:        "mongodb://localhost:27017",
		Database:        "ytcatalog",
		ListenAddr:      ":8080",
		QuotaDailyLimit: 10000,
		QuotaReserve:    0,
		HTTPTimeout:     30 * time.Second,
	}
}

// Load loads configuration from environment variables, config file, and applies defaults.
// Priority: env vars > config file > defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.loadFromFile(); err != nil {
		// Config file is optional
		if !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "load config file")
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile attempts to load config from ytcatalog.json in the current
// directory or the user config directory.
func (c *Config) loadFromFile() error {
	paths := []string{
		"ytcatalog.json",
		filepath.Join(os.Getenv("HOME"), ".config", "ytcatalog", "ytcatalog.json"),
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}

		if err := json.Unmarshal(data, c); err != nil {
			return errors.Wrapf(err, "parse %s", path)
		}
		return nil
	}

	return os.ErrNotExist
}

// loadFromEnv overrides config with environment variables.
func (c *Config) loadFromEnv() {
	if v := os.Getenv("YTCATALOG_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("YTCATALOG_CHANNEL_ID"); v != "" {
		c.ChannelID = v
	}
	if v := os.Getenv("YTCATALOG_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxResults = n
		}
	}
	if v := os.Getenv("YTCATALOG_MAX_PAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxPages = n
		}
	}
	if v := os.Getenv("YTCATALOG_LOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.LockTimeout = d
		}
	}
	if v := os.Getenv("YTCATALOG_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.BatchSize = n
		}
	}
	if v := os.Getenv("YTCATALOG_MONGO_URI"); v != "" {
		c.MongoURI = v
	}
	if v := os.Getenv("YTCATALOG_DATABASE"); v != "" {
		c.Database = v
	}
	if v := os.Getenv("YTCATALOG_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("YTCATALOG_QUOTA_DAILY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.QuotaDailyLimit = n
		}
	}
	if v := os.Getenv("YTCATALOG_QUOTA_RESERVE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.QuotaReserve = n
		}
	}
	if v := os.Getenv("YTCATALOG_HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.HTTPTimeout = d
		}
	}
}

// Validate checks that configuration values are valid and consistent.
// It does not require APIKey or ChannelID; those are validated at client
// construction so that read-only commands work without credentials.
func (c *Config) Validate() error {
	if c.MaxResults <= 0 || c.MaxResults > 50 {
		return errors.New("max_results must be in 1..50")
	}
	if c.MaxPages <= 0 {
		return errors.New("max_pages must be positive")
	}
	if c.LockTimeout <= 0 {
		return errors.New("lock_timeout must be positive")
	}
	if c.BatchSize <= 0 {
		return errors.New("batch_size must be positive")
	}
	if c.QuotaDailyLimit <= 0 {
		return errors.New("quota_daily_limit must be positive")
	}
	if c.QuotaReserve < 0 {
		return errors.New("quota_reserve must be non-negative")
	}
	if c.QuotaReserve >= c.QuotaDailyLimit {
		return errors.New("quota_reserve must be below quota_daily_limit")
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("http_timeout must be positive")
	}
	return nil
}

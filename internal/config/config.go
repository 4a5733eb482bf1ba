package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by AutoPopulateFromEnv.
const (
	EnvServer   = "THINKTOK_SERVER"
	EnvUser     = "THINKTOK_USER"
	EnvRPS      = "THINKTOK_RPS"
	EnvDataDir  = "THINKTOK_DIR"
	DefaultHost = "http://localhost:8000"
)

// Config is the persistent application configuration
type Config struct {
	Server ServerConfig `json:"server"`
	Feed   FeedConfig   `json:"feed"`
	Beacon BeaconConfig `json:"beacon"`

	// DataDir holds the sqlite database and logs. Empty means ~/.thinktok.
	DataDir string `json:"data_dir,omitempty"`
}

// ServerConfig describes the feed server connection
type ServerConfig struct {
	URL       string  `json:"url"`
	Username  string  `json:"username"`
	TimeoutMs int     `json:"timeout_ms"`
	RPS       float64 `json:"requests_per_second"` // 0 = unlimited
}

// FeedConfig holds pagination and engagement tuning
type FeedConfig struct {
	SentinelThreshold int `json:"sentinel_threshold"` // cards kept below the load-more trigger
	MinDwellMs        int `json:"min_dwell_ms"`       // shorter views are noise
}

// BeaconConfig controls the outbox drainer
type BeaconConfig struct {
	FlushIntervalSec int `json:"flush_interval_sec"`
	BatchSize        int `json:"batch_size"`
	Parallelism      int `json:"parallelism"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL:       DefaultHost,
			TimeoutMs: 10000,
			RPS:       5,
		},
		Feed: FeedConfig{
			SentinelThreshold: 3,
			MinDwellMs:        500,
		},
		Beacon: BeaconConfig{
			FlushIntervalSec: 30,
			BatchSize:        50,
			Parallelism:      4,
		},
	}
}

// Timeout returns the HTTP timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Server.TimeoutMs) * time.Millisecond
}

// MinDwell returns the minimum view duration that counts as engagement.
func (c *Config) MinDwell() time.Duration {
	return time.Duration(c.Feed.MinDwellMs) * time.Millisecond
}

// FlushInterval returns how often the beacon outbox is drained.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.Beacon.FlushIntervalSec) * time.Second
}

// Dir returns the data directory, defaulting to ~/.thinktok
func (c *Config) Dir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return defaultDir()
}

func defaultDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".thinktok")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		return filepath.Join(dir, "config.json")
	}
	return filepath.Join(defaultDir(), "config.json")
}

// Load reads config from disk, or returns defaults
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads the config at path. A missing or malformed file yields
// defaults. Environment overrides are applied in every case.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			cfg = DefaultConfig()
		}
	}

	cfg.AutoPopulateFromEnv()
	cfg.fillZeroes()
	return cfg, nil
}

// fillZeroes restores defaults for fields a hand-edited file left empty.
func (c *Config) fillZeroes() {
	d := DefaultConfig()
	if c.Server.URL == "" {
		c.Server.URL = d.Server.URL
	}
	if c.Server.TimeoutMs <= 0 {
		c.Server.TimeoutMs = d.Server.TimeoutMs
	}
	if c.Feed.SentinelThreshold <= 0 {
		c.Feed.SentinelThreshold = d.Feed.SentinelThreshold
	}
	if c.Feed.MinDwellMs <= 0 {
		c.Feed.MinDwellMs = d.Feed.MinDwellMs
	}
	if c.Beacon.FlushIntervalSec <= 0 {
		c.Beacon.FlushIntervalSec = d.Beacon.FlushIntervalSec
	}
	if c.Beacon.BatchSize <= 0 {
		c.Beacon.BatchSize = d.Beacon.BatchSize
	}
	if c.Beacon.Parallelism <= 0 {
		c.Beacon.Parallelism = d.Beacon.Parallelism
	}
}

// Save writes config to disk
func (c *Config) Save() error {
	return c.SaveTo(ConfigPath())
}

// SaveTo writes config to path, creating its directory.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// AutoPopulateFromEnv overrides settings from THINKTOK_* environment variables
func (c *Config) AutoPopulateFromEnv() {
	if v := os.Getenv(EnvServer); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv(EnvUser); v != "" {
		c.Server.Username = v
	}
	if v := os.Getenv(EnvRPS); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil {
			c.Server.RPS = rps
		}
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
}

// LoadEnvFile reads a .env file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

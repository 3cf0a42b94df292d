package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Upstream    UpstreamConfig  `toml:"upstream"`
	Publisher   PublisherConfig `toml:"publisher"`
	Pipeline    PipelineConfig  `toml:"pipeline"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
}

type StorageConfig struct {
	Badger    BadgerConfig `toml:"badger"`
	Artifacts string       `toml:"artifacts"` // Directory for rendered report artifacts
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs
}

// UpstreamConfig configures the MCP analysis service client
type UpstreamConfig struct {
	ServerURL      string `toml:"server_url"`      // MCP streamable-HTTP endpoint
	RequestTimeout string `toml:"request_timeout"` // e.g. "30s" - per-call timeout
	MaxDays        int    `toml:"max_days"`        // Upper bound on the analysis window
	Strict         bool   `toml:"strict"`          // Surface upstream failure instead of stub fallback
}

// PublisherConfig configures artifact delivery to the destination channel
type PublisherConfig struct {
	BotToken       string `toml:"bot_token"`       // Bot API token
	APIBaseURL     string `toml:"api_base_url"`    // Override for tests; default Telegram Bot API
	RequestTimeout string `toml:"request_timeout"` // e.g. "60s" - per-call timeout
	RateLimit      int    `toml:"rate_limit"`      // Requests per second to the Bot API
	AdminChannel   string `toml:"admin_channel"`   // Channel notified on terminal job failure
}

// PipelineConfig configures the report job orchestrator
type PipelineConfig struct {
	MaxFetchAttempts   int    `toml:"max_fetch_attempts"`   // Bounded fetch retries (strict mode)
	MaxPublishAttempts int    `toml:"max_publish_attempts"` // Bounded publish retries
	BackoffBase        string `toml:"backoff_base"`         // e.g. "2s" - base delay, doubled per attempt
	BackoffCeiling     string `toml:"backoff_ceiling"`      // Cap on the computed backoff delay
	JobTimeout         string `toml:"job_timeout"`          // Total wall-clock ceiling per job
	DedupWindow        string `toml:"dedup_window"`         // Window for duplicate-submission lookups
}

type SchedulerConfig struct {
	Enabled bool `toml:"enabled"`
}

// NewDefaultConfig returns the configuration defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
			Artifacts: "./data/artifacts",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Upstream: UpstreamConfig{
			ServerURL:      "http://localhost:8090/mcp",
			RequestTimeout: "30s",
			MaxDays:        90,
			Strict:         false,
		},
		Publisher: PublisherConfig{
			APIBaseURL:     "https://api.telegram.org",
			RequestTimeout: "60s",
			RateLimit:      1,
		},
		Pipeline: PipelineConfig{
			MaxFetchAttempts:   3,
			MaxPublishAttempts: 3,
			BackoffBase:        "2s",
			BackoffCeiling:     "30s",
			JobTimeout:         "10m",
			DedupWindow:        "5m",
		},
		Scheduler: SchedulerConfig{
			Enabled: true,
		},
	}
}

// LoadFromFile loads configuration with priority: defaults -> file -> env
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files. Later files override
// earlier files: defaults -> file1 -> file2 -> ... -> env
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies TRENDWATCH_* environment variable overrides
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("TRENDWATCH_ENVIRONMENT"); v != "" {
		config.Environment = v
	}
	if v := os.Getenv("TRENDWATCH_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("TRENDWATCH_STORAGE_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("TRENDWATCH_ARTIFACTS_DIR"); v != "" {
		config.Storage.Artifacts = v
	}
	if v := os.Getenv("TRENDWATCH_UPSTREAM_URL"); v != "" {
		config.Upstream.ServerURL = v
	}
	if v := os.Getenv("TRENDWATCH_UPSTREAM_STRICT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Upstream.Strict = b
		}
	}
	if v := os.Getenv("TRENDWATCH_BOT_TOKEN"); v != "" {
		config.Publisher.BotToken = v
	}
	if v := os.Getenv("TRENDWATCH_ADMIN_CHANNEL"); v != "" {
		config.Publisher.AdminChannel = v
	}
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures deep in the pipeline
func (c *Config) Validate() error {
	if c.Upstream.MaxDays <= 0 {
		return fmt.Errorf("upstream.max_days must be positive, got %d", c.Upstream.MaxDays)
	}
	if c.Pipeline.MaxFetchAttempts <= 0 {
		return fmt.Errorf("pipeline.max_fetch_attempts must be positive, got %d", c.Pipeline.MaxFetchAttempts)
	}
	if c.Pipeline.MaxPublishAttempts <= 0 {
		return fmt.Errorf("pipeline.max_publish_attempts must be positive, got %d", c.Pipeline.MaxPublishAttempts)
	}
	for _, d := range []struct {
		name  string
		value string
	}{
		{"upstream.request_timeout", c.Upstream.RequestTimeout},
		{"publisher.request_timeout", c.Publisher.RequestTimeout},
		{"pipeline.backoff_base", c.Pipeline.BackoffBase},
		{"pipeline.backoff_ceiling", c.Pipeline.BackoffCeiling},
		{"pipeline.job_timeout", c.Pipeline.JobTimeout},
		{"pipeline.dedup_window", c.Pipeline.DedupWindow},
	} {
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("%s: invalid duration %q: %w", d.name, d.value, err)
		}
	}
	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// ParseDuration parses a config duration string with a fallback default
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// ValidateJobSchedule validates a cron expression for report schedules.
// Standard 5-field format (minute, hour, day-of-month, month, day-of-week).
func ValidateJobSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("schedule is required")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultListen is the default HTTP listen address.
	DefaultListen = ":5001"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultPageLimit is the default number of rows per result page.
	DefaultPageLimit = 20

	// DefaultMaxPageLimit caps the client-requested page size.
	DefaultMaxPageLimit = 500
)

// DefaultOutcomes are the outcome values advertised on the API landing
// page. Submitted results may carry any non-empty outcome; this list is
// informational only.
var DefaultOutcomes = []string{"PASSED", "INFO", "FAILED", "NEEDS_INSPECTION"}

// Config is the root configuration for resultsdb.
type Config struct {
	Global    GlobalConfig    `yaml:"global"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Messaging MessagingConfig `yaml:"messaging,omitempty"`
	Outcomes  OutcomesConfig  `yaml:"outcomes,omitempty"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Listen       string          `yaml:"listen"`
	CORSOrigins  []string        `yaml:"cors_origins,omitempty"`
	RateLimit    RateLimitConfig `yaml:"rate_limit,omitempty"`
	PageLimit    int             `yaml:"page_limit,omitempty"`
	MaxPageLimit int             `yaml:"max_page_limit,omitempty"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute,omitempty"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite,omitempty"`
	Postgres PostgresConfig `yaml:"postgres,omitempty"`
}

// SQLiteConfig contains SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty"`
}

// MessagingConfig selects the message-bus plugin used to announce
// committed results. Publication is best-effort and never affects the
// commit itself.
type MessagingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Plugin  string `yaml:"plugin,omitempty"`
}

// OutcomesConfig extends the advertised outcome list.
type OutcomesConfig struct {
	Additional []string `yaml:"additional,omitempty"`
}

// Load reads and parses a configuration file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}

// ApplyDefaults sets default values for unspecified configuration options.
func (c *Config) ApplyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}

	if c.Server.PageLimit <= 0 {
		c.Server.PageLimit = DefaultPageLimit
	}

	if c.Server.MaxPageLimit <= 0 {
		c.Server.MaxPageLimit = DefaultMaxPageLimit
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}

	if c.Database.Driver == "sqlite" && c.Database.SQLite.Path == "" {
		c.Database.SQLite.Path = "resultsdb.db"
	}

	if c.Messaging.Enabled && c.Messaging.Plugin == "" {
		c.Messaging.Plugin = "log"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required")
		}
	case "postgres":
		if c.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}

		if c.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Server.RateLimit.Enabled &&
		c.Server.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf(
			"server.rate_limit.requests_per_minute must be positive")
	}

	return nil
}

// AdvertisedOutcomes returns the outcome values shown on the landing page:
// the built-in defaults followed by any configured additions.
func (c *Config) AdvertisedOutcomes() []string {
	outcomes := make([]string, 0,
		len(DefaultOutcomes)+len(c.Outcomes.Additional))
	outcomes = append(outcomes, DefaultOutcomes...)
	outcomes = append(outcomes, c.Outcomes.Additional...)

	return outcomes
}

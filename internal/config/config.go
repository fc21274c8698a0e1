// Package config holds the process-wide settings: storage, fetch tuning, and
// observability. Per-invocation run parameters live in pipeline.RunConfig;
// this package covers everything that stays fixed across invocations.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Settings are loaded from defaults, overlaid with an optional YAML file,
// then overlaid with AUCTION_*-prefixed environment variables.
type Settings struct {
	// DatabaseURL is the Postgres DSN. Empty means no database sink; runs
	// must then pass dry-run.
	DatabaseURL string `yaml:"databaseUrl" envconfig:"DATABASE_URL"`
	Schema      string `yaml:"schema"`

	UserAgent       string            `yaml:"userAgent"       split_words:"true"`
	HostInterval    time.Duration     `yaml:"hostInterval"    split_words:"true"`
	RequestTimeout  time.Duration     `yaml:"requestTimeout"  split_words:"true"`
	FetchRetries    int               `yaml:"fetchRetries"    split_words:"true"`
	FetchRetryDelay time.Duration     `yaml:"fetchRetryDelay" split_words:"true"`
	MaxConns        int32             `yaml:"maxConns"        split_words:"true"`
	MetricsAddr     string            `yaml:"metricsAddr"     split_words:"true"`
	CSVPath         string            `yaml:"csvPath"         envconfig:"CSV_PATH"`
	LogLevel        string            `yaml:"logLevel"        split_words:"true"`
	SourceBaseURLs  map[string]string `yaml:"sourceBaseUrls"  envconfig:"SOURCE_BASE_URLS"`
}

func defaults() *Settings {
	return &Settings{
		Schema:          "public",
		HostInterval:    1200 * time.Millisecond,
		RequestTimeout:  30 * time.Second,
		FetchRetries:    3,
		FetchRetryDelay: 2 * time.Second,
		MaxConns:        4,
		LogLevel:        "info",
	}
}

// Load builds Settings from defaults, the optional YAML file at path, and
// the environment, in that order of precedence (environment wins).
func Load(path string) (*Settings, error) {
	cfg := defaults()
	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := envconfig.Process("auction", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Settings) validate() error {
	if c.FetchRetries < 0 {
		return fmt.Errorf("fetchRetries must not be negative")
	}
	if c.HostInterval < 0 || c.RequestTimeout < 0 || c.FetchRetryDelay < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("maxConns must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

// Package config loads the pageview CLI configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/pageview/pkg/cache"
	"github.com/Sternrassler/pageview/pkg/client"
	"github.com/Sternrassler/pageview/pkg/linkheader"
	"github.com/Sternrassler/pageview/pkg/logging"
	"github.com/Sternrassler/pageview/pkg/pager"
)

// Config is the complete CLI configuration.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Pager   PagerConfig   `yaml:"pager"`
	Client  ClientConfig  `yaml:"client"`
	Preload PreloadConfig `yaml:"preload"`
	Redis   RedisConfig   `yaml:"redis"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// SourceConfig describes the paginated collection.
type SourceConfig struct {
	URL       string `yaml:"url"`
	ItemsPath string `yaml:"items_path"`
	PageParam string `yaml:"page_param"`
	SizeParam string `yaml:"size_param"`
	UserAgent string `yaml:"user_agent"`
}

// PagerConfig configures the rendering target.
type PagerConfig struct {
	TargetID    string `yaml:"target_id"`
	PerPage     int    `yaml:"per_page"`
	CacheType   string `yaml:"cache_type"`
	StalePolicy string `yaml:"stale_policy"`
}

// ClientConfig tunes the HTTP fetcher.
type ClientConfig struct {
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	BreakerFailures   uint32        `yaml:"breaker_failures"`
	BreakerTimeout    time.Duration `yaml:"breaker_timeout"`
}

// PreloadConfig enables fetching every page up front.
type PreloadConfig struct {
	Enabled     bool `yaml:"enabled"`
	Concurrency int  `yaml:"concurrency"`
}

// RedisConfig enables the shared page store. An empty URL disables it.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// MetricsConfig exposes Prometheus metrics. An empty Addr disables the endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Source: SourceConfig{
			PageParam: linkheader.ParamPage,
			SizeParam: linkheader.ParamPageSize,
			UserAgent: "pageview/0.1.0",
		},
		Pager: PagerConfig{
			TargetID:    "main",
			PerPage:     25,
			CacheType:   cache.TypeGeneric.String(),
			StalePolicy: pager.StaleDiscard.String(),
		},
		Client: ClientConfig{
			RequestsPerSecond: 10,
			Burst:             5,
			Timeout:           30 * time.Second,
			BreakerFailures:   5,
			BreakerTimeout:    30 * time.Second,
		},
		Preload: PreloadConfig{
			Concurrency: 4,
		},
		Log: LogConfig{
			Level: string(logging.LevelInfo),
		},
	}
}

// Load reads path on top of Default and applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		// #nosec G304 -- path is provided by the CLI flag
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PAGEVIEW_SOURCE_URL"); v != "" {
		c.Source.URL = v
	}
	if v := os.Getenv("PAGEVIEW_ITEMS_PATH"); v != "" {
		c.Source.ItemsPath = v
	}
	if v := os.Getenv("PAGEVIEW_PER_PAGE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PAGEVIEW_PER_PAGE %q: %w", v, err)
		}
		c.Pager.PerPage = n
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("USER_AGENT"); v != "" {
		c.Source.UserAgent = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	return nil
}

// Validate checks the fields the CLI cannot run without.
func (c *Config) Validate() error {
	if c.Source.URL == "" {
		return errors.New("source url is required")
	}
	u, err := url.Parse(c.Source.URL)
	if err != nil {
		return fmt.Errorf("invalid source url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("source url must be http or https (got %q)", c.Source.URL)
	}

	if c.Source.UserAgent == "" {
		return errors.New("user_agent is required")
	}

	if c.Pager.TargetID == "" {
		return errors.New("pager target_id is required")
	}
	if c.Pager.PerPage <= 0 {
		return errors.New("pager per_page must be positive")
	}
	if _, err := c.CacheType(); err != nil {
		return err
	}
	if _, err := c.StalePolicy(); err != nil {
		return err
	}

	if c.Preload.Enabled && c.Preload.Concurrency <= 0 {
		return errors.New("preload concurrency must be positive")
	}

	if c.Redis.URL != "" {
		if _, err := redis.ParseURL(c.Redis.URL); err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}

	return nil
}

// CacheType returns the parsed capture policy of the target.
func (c *Config) CacheType() (cache.Type, error) {
	return cache.ParseType(c.Pager.CacheType)
}

// StalePolicy returns the parsed stale fetch policy.
func (c *Config) StalePolicy() (pager.StalePolicy, error) {
	switch strings.ToLower(c.Pager.StalePolicy) {
	case "", pager.StaleDiscard.String():
		return pager.StaleDiscard, nil
	case pager.StaleLastWins.String():
		return pager.StaleLastWins, nil
	default:
		return 0, fmt.Errorf("unknown stale policy %q", c.Pager.StalePolicy)
	}
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	return cfg
}

// RedisClient connects to the configured Redis, or returns nil when none is set.
func (c *Config) RedisClient() (*redis.Client, error) {
	if c.Redis.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(c.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// ClientConfig builds the fetcher configuration. rdb may be nil.
func (c *Config) ClientConfig(rdb *redis.Client) client.Config {
	cfg := client.DefaultConfig(c.Source.URL, c.Source.UserAgent)
	cfg.ItemsPath = c.Source.ItemsPath
	if c.Source.PageParam != "" {
		cfg.PageParam = c.Source.PageParam
	}
	if c.Source.SizeParam != "" {
		cfg.SizeParam = c.Source.SizeParam
	}
	cfg.Redis = rdb
	cfg.RequestsPerSecond = c.Client.RequestsPerSecond
	if c.Client.Burst > 0 {
		cfg.Burst = c.Client.Burst
	}
	if c.Client.Timeout > 0 {
		cfg.Timeout = c.Client.Timeout
	}
	cfg.MaxRetries = c.Client.MaxRetries
	if c.Client.BreakerFailures > 0 {
		cfg.BreakerFailures = c.Client.BreakerFailures
	}
	if c.Client.BreakerTimeout > 0 {
		cfg.BreakerTimeout = c.Client.BreakerTimeout
	}
	return cfg
}

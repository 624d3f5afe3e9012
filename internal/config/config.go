// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"notecrawler/internal/crawl"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Provider ProviderConfig `mapstructure:"provider"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs the two fan-out phases of a run.
type CrawlerConfig struct {
	Keywords              []string `mapstructure:"keywords"`
	MaxPages              int      `mapstructure:"max_pages"`
	PageSize              int      `mapstructure:"page_size"`
	SearchConcurrency     int      `mapstructure:"search_concurrency"`
	DetailConcurrency     int      `mapstructure:"detail_concurrency"`
	KeywordTimeoutSeconds int      `mapstructure:"keyword_timeout_seconds"`
	DetailTimeoutSeconds  int      `mapstructure:"detail_timeout_seconds"`
	DelaySeconds          int      `mapstructure:"delay_seconds"`
	ProgressEvery         int      `mapstructure:"progress_every"`
}

// ProviderConfig points at the MCP inspector endpoint.
type ProviderConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// StorageConfig selects where raw run output is archived.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"` // local, gcs, memory, none
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls the optional Postgres run store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for run-completed notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NOTECRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.max_pages", 3)
	v.SetDefault("crawler.page_size", 30)
	v.SetDefault("crawler.search_concurrency", 5)
	v.SetDefault("crawler.detail_concurrency", 10)
	v.SetDefault("crawler.keyword_timeout_seconds", 120)
	v.SetDefault("crawler.detail_timeout_seconds", 30)
	v.SetDefault("crawler.delay_seconds", 3)
	v.SetDefault("crawler.progress_every", 10)
	v.SetDefault("provider.base_url", "http://localhost:9091/api/admin/inspector/execute")
	v.SetDefault("provider.timeout_seconds", 30)
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.base_dir", "data/runs")
	v.SetDefault("storage.prefix", "runs")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.SearchConcurrency <= 0 {
		return fmt.Errorf("crawler.search_concurrency must be > 0")
	}
	if c.Crawler.DetailConcurrency <= 0 {
		return fmt.Errorf("crawler.detail_concurrency must be > 0")
	}
	if c.Crawler.MaxPages <= 0 || c.Crawler.PageSize <= 0 {
		return fmt.Errorf("crawler.max_pages and crawler.page_size must be > 0")
	}
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url is required")
	}
	switch c.Storage.Provider {
	case "local":
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir is required for the local provider")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs provider")
		}
	case "memory", "none":
	default:
		return fmt.Errorf("unknown storage provider: %s", c.Storage.Provider)
	}
	return nil
}

// RunOptions converts the crawler section into orchestrator Options.
func (c Config) RunOptions() crawl.Options {
	return crawl.Options{
		Keywords:          c.Crawler.Keywords,
		MaxPages:          c.Crawler.MaxPages,
		PageSize:          c.Crawler.PageSize,
		SearchConcurrency: c.Crawler.SearchConcurrency,
		DetailConcurrency: c.Crawler.DetailConcurrency,
		KeywordTimeout:    time.Duration(c.Crawler.KeywordTimeoutSeconds) * time.Second,
		DetailTimeout:     time.Duration(c.Crawler.DetailTimeoutSeconds) * time.Second,
		Delay:             time.Duration(c.Crawler.DelaySeconds) * time.Second,
		ProgressEvery:     c.Crawler.ProgressEvery,
	}
}

// Package config loads and validates worker configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Outreach OutreachConfig `mapstructure:"outreach"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig carries the webhook shared secret. The worker refuses to start
// without one; accepting unsigned crawl requests is never acceptable.
type AuthConfig struct {
	WebhookSecret string `mapstructure:"webhook_secret"`
}

// CrawlerConfig governs the politeness budget and extraction pipeline.
type CrawlerConfig struct {
	Concurrency       int      `mapstructure:"concurrency"`
	QueueDepth        int      `mapstructure:"queue_depth"`
	UserAgent         string   `mapstructure:"user_agent"`
	MaxPagesPerDomain int      `mapstructure:"max_pages_per_domain"`
	PerDomainDelayMs  int      `mapstructure:"per_domain_delay_ms"`
	RespectRobots     bool     `mapstructure:"respect_robots"`
	MaxCandidates     int      `mapstructure:"max_candidates"`
	ListingSettleMs   int      `mapstructure:"listing_settle_ms"`
	TrackingParams    []string `mapstructure:"tracking_params"`
	ForwardURL        string   `mapstructure:"forward_url"`
}

// HTTPConfig configures outbound HTTP fetch behavior.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// StorageConfig selects the snapshot blob store.
type StorageConfig struct {
	Provider    string `mapstructure:"provider"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	LocalDir    string `mapstructure:"local_dir"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
	Snapshots   bool   `mapstructure:"snapshots"`
}

// DBConfig selects and configures the relational store.
type DBConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// OutreachConfig controls the outreach scheduler and its caps.
type OutreachConfig struct {
	DailyCap     int    `mapstructure:"daily_cap"`
	PerDomainCap int    `mapstructure:"per_domain_cap"`
	BatchLimit   int    `mapstructure:"batch_limit"`
	Transport    string `mapstructure:"transport"`
	ProviderURL  string `mapstructure:"provider_url"`
	APIKey       string `mapstructure:"api_key"`
	From         string `mapstructure:"from"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLWORKER")
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
	v.SetDefault("crawler.concurrency", 4)
	v.SetDefault("crawler.queue_depth", 64)
	v.SetDefault("crawler.user_agent", "jobsift-crawlworker/0.1 (+contact@jobsift.dev)")
	v.SetDefault("crawler.max_pages_per_domain", 30)
	v.SetDefault("crawler.per_domain_delay_ms", 2000)
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.max_candidates", 15)
	v.SetDefault("crawler.listing_settle_ms", 2000)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 30)
	v.SetDefault("storage.provider", "memory")
	v.SetDefault("storage.prefix", "snapshots")
	v.SetDefault("storage.content_type", "text/html; charset=utf-8")
	v.SetDefault("storage.snapshots", false)
	v.SetDefault("db.provider", "memory")
	v.SetDefault("outreach.daily_cap", 20)
	v.SetDefault("outreach.per_domain_cap", 5)
	v.SetDefault("outreach.batch_limit", 20)
	v.SetDefault("outreach.transport", "memory")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits. A missing webhook
// secret is fatal: the worker must not accept crawl requests it cannot
// authenticate.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.WebhookSecret == "" {
		return fmt.Errorf("auth.webhook_secret must be set")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.MaxPagesPerDomain <= 0 {
		return fmt.Errorf("crawler.max_pages_per_domain must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	switch c.Storage.Provider {
	case "memory", "local", "gcs":
	default:
		return fmt.Errorf("storage.provider must be one of memory, local, gcs")
	}
	if c.Storage.Provider == "gcs" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("storage.gcs_bucket must be set for the gcs provider")
	}
	if c.Storage.Provider == "local" && c.Storage.LocalDir == "" {
		return fmt.Errorf("storage.local_dir must be set for the local provider")
	}
	switch c.DB.Provider {
	case "memory", "postgres":
	default:
		return fmt.Errorf("db.provider must be one of memory, postgres")
	}
	if c.DB.Provider == "postgres" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set for the postgres provider")
	}
	if c.Outreach.DailyCap < 0 || c.Outreach.PerDomainCap < 0 {
		return fmt.Errorf("outreach caps must be >= 0")
	}
	switch c.Outreach.Transport {
	case "memory", "http":
	default:
		return fmt.Errorf("outreach.transport must be one of memory, http")
	}
	if c.Outreach.Transport == "http" && c.Outreach.ProviderURL == "" {
		return fmt.Errorf("outreach.provider_url must be set for the http transport")
	}
	return nil
}

// FetchTimeout converts the HTTP timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// PerDomainDelay converts the politeness spacing config into a duration.
func (c Config) PerDomainDelay() time.Duration {
	return time.Duration(c.Crawler.PerDomainDelayMs) * time.Millisecond
}

// ListingSettle returns the JS settle wait used on listing pages, clamped to
// the 1-3s window that client-rendered boards need.
func (c Config) ListingSettle() time.Duration {
	ms := c.Crawler.ListingSettleMs
	if ms < 1000 {
		ms = 1000
	}
	if ms > 3000 {
		ms = 3000
	}
	return time.Duration(ms) * time.Millisecond
}

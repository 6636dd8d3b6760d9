// Package config loads and validates freebie-watch configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	// Timezone validation must not depend on the host's zoneinfo.
	_ "time/tzdata"

	"github.com/spf13/viper"

	"github.com/JakeFAU/freebie-watch/internal/publisher/pubsub"
	"github.com/JakeFAU/freebie-watch/internal/publisher/sns"
	"github.com/JakeFAU/freebie-watch/internal/scheduler"
	"github.com/JakeFAU/freebie-watch/internal/storage/gcs"
	pkgconfig "github.com/JakeFAU/freebie-watch/pkg/config"
)

// Storage backends.
const (
	StorageLocal  = "local"
	StorageGCS    = "gcs"
	StorageMemory = "memory"
)

// Event backends.
const (
	EventsNone   = "none"
	EventsPubSub = "pubsub"
	EventsSNS    = "sns"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Enrich     EnrichConfig     `mapstructure:"enrich"`
	Promotions PromotionsConfig `mapstructure:"promotions"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Headless   HeadlessConfig   `mapstructure:"headless"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Events     EventsConfig     `mapstructure:"events"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls the status HTTP server.
type ServerConfig struct {
	Enabled               bool `mapstructure:"enabled"`
	Port                  int  `mapstructure:"port"`
	RequestTimeoutSeconds int  `mapstructure:"request_timeout_seconds"`
}

// TelegramConfig holds bot credentials and notification routing.
type TelegramConfig struct {
	Token              string `mapstructure:"token"`
	APIEndpoint        string `mapstructure:"api_endpoint"`
	NotificationChatID int64  `mapstructure:"notification_chat_id"`
	TopicID            int    `mapstructure:"topic_id"`
	PollTimeoutSeconds int    `mapstructure:"poll_timeout_seconds"`
	RetryDelayMs       int    `mapstructure:"retry_delay_ms"`
	// SendBaseDelayMs is the first backoff step of message delivery.
	SendBaseDelayMs int `mapstructure:"send_base_delay_ms"`
}

// ScheduleConfig drives periodic checks.
type ScheduleConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Spec           string `mapstructure:"spec"`
	Timezone       string `mapstructure:"timezone"`
	AnnounceChecks bool   `mapstructure:"announce_checks"`
	// CheckOnStart runs one scheduled check as soon as the service starts.
	CheckOnStart bool `mapstructure:"check_on_start"`
}

// CatalogConfig describes the listing site.
type CatalogConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	SiteName       string `mapstructure:"site_name"`
	CheckLimit     int    `mapstructure:"check_limit"`
	RecentLimit    int    `mapstructure:"recent_limit"`
	ListAttempts   int    `mapstructure:"list_attempts"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// EnrichConfig tunes detail-page genre enrichment.
type EnrichConfig struct {
	StaggerMs      int `mapstructure:"stagger_ms"`
	MaxAttempts    int `mapstructure:"max_attempts"`
	BackoffMs      int `mapstructure:"backoff_ms"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// PromotionsConfig describes the storefront.
type PromotionsConfig struct {
	APIEnabled         bool   `mapstructure:"api_enabled"`
	APIEndpoint        string `mapstructure:"api_endpoint"`
	StoreURL           string `mapstructure:"store_url"`
	Locale             string `mapstructure:"locale"`
	Country            string `mapstructure:"country"`
	PageTimeoutSeconds int    `mapstructure:"page_timeout_seconds"`
}

// HTTPConfig configures outbound fetching.
type HTTPConfig struct {
	UserAgent     string  `mapstructure:"user_agent"`
	RespectRobots bool    `mapstructure:"respect_robots"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int     `mapstructure:"burst"`
}

// HeadlessConfig configures the rendered fetch path for the promotions page.
type HeadlessConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	MaxParallel     int    `mapstructure:"max_parallel"`
	NavTimeoutSec   int    `mapstructure:"nav_timeout_seconds"`
	PromotionThresh int    `mapstructure:"promotion_threshold"`
	ExecPath        string `mapstructure:"exec_path"`
}

// StorageConfig selects where known-set snapshots live.
type StorageConfig struct {
	Backend          string     `mapstructure:"backend"`
	Dir              string     `mapstructure:"dir"`
	GCS              gcs.Config `mapstructure:"gcs"`
	ListingsObject   string     `mapstructure:"listings_object"`
	PromotionsObject string     `mapstructure:"promotions_object"`
}

// EventsConfig selects the optional new-item fan-out.
type EventsConfig struct {
	Backend string        `mapstructure:"backend"`
	Topic   string        `mapstructure:"topic"`
	PubSub  pubsub.Config `mapstructure:"pubsub"`
	SNS     sns.Config    `mapstructure:"sns"`
}

// DispatcherConfig sizes the inbound update pool.
type DispatcherConfig struct {
	Workers    int `mapstructure:"workers"`
	QueueDepth int `mapstructure:"queue_depth"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v, err := pkgconfig.New(path)
	if err != nil {
		return Config{}, err
	}
	return FromViper(v)
}

// FromViper applies defaults to v and decodes it.
func FromViper(v *viper.Viper) (Config, error) {
	setDefaults(v)

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
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.api_endpoint", "")
	v.SetDefault("telegram.notification_chat_id", 0)
	v.SetDefault("telegram.topic_id", 0)
	v.SetDefault("telegram.poll_timeout_seconds", 30)
	v.SetDefault("telegram.retry_delay_ms", 3000)
	v.SetDefault("telegram.send_base_delay_ms", 1000)
	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.spec", scheduler.DefaultSpec)
	v.SetDefault("schedule.timezone", "Europe/Moscow")
	v.SetDefault("schedule.announce_checks", true)
	v.SetDefault("schedule.check_on_start", false)
	v.SetDefault("catalog.base_url", "https://freetp.org")
	v.SetDefault("catalog.site_name", "")
	v.SetDefault("catalog.check_limit", 10)
	v.SetDefault("catalog.recent_limit", 5)
	v.SetDefault("catalog.list_attempts", 5)
	v.SetDefault("catalog.timeout_seconds", 15)
	v.SetDefault("enrich.stagger_ms", 100)
	v.SetDefault("enrich.max_attempts", 2)
	v.SetDefault("enrich.backoff_ms", 500)
	v.SetDefault("enrich.timeout_seconds", 20)
	v.SetDefault("promotions.api_enabled", true)
	v.SetDefault("promotions.api_endpoint", "")
	v.SetDefault("promotions.store_url", "https://store.epicgames.com")
	v.SetDefault("promotions.locale", "ru")
	v.SetDefault("promotions.country", "RU")
	v.SetDefault("promotions.page_timeout_seconds", 20)
	v.SetDefault("http.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("http.rate_per_second", 2.0)
	v.SetDefault("http.burst", 2)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("headless.exec_path", "")
	v.SetDefault("storage.backend", StorageLocal)
	v.SetDefault("storage.dir", "data")
	v.SetDefault("storage.gcs.bucket", "")
	v.SetDefault("storage.gcs.prefix", "freebie-watch")
	v.SetDefault("storage.gcs.credentials_file", "")
	v.SetDefault("storage.listings_object", "games.json")
	v.SetDefault("storage.promotions_object", "epic-games.json")
	v.SetDefault("events.backend", EventsNone)
	v.SetDefault("events.topic", "")
	v.SetDefault("events.pubsub.project_id", "")
	v.SetDefault("events.pubsub.topic", "")
	v.SetDefault("events.pubsub.credentials_file", "")
	v.SetDefault("events.sns.topic_arn", "")
	v.SetDefault("events.sns.region", "")
	v.SetDefault("events.sns.access_key_id", "")
	v.SetDefault("events.sns.secret_access_key", "")
	v.SetDefault("dispatcher.workers", 4)
	v.SetDefault("dispatcher.queue_depth", 64)
	v.SetDefault("logging.development", false)
}

// Validate performs sanity checks on config values. The bot token is
// checked separately by RequireTelegram since read-only commands run
// without it.
func (c *Config) Validate() error {
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Telegram.TopicID < 0 {
		return errors.New("telegram.topic_id must be >= 0")
	}
	if c.Telegram.PollTimeoutSeconds < 0 {
		return errors.New("telegram.poll_timeout_seconds must be >= 0")
	}
	if err := scheduler.ValidateSpec(c.Schedule.Spec); err != nil {
		return fmt.Errorf("schedule.spec: %w", err)
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}
	if !strings.HasPrefix(c.Catalog.BaseURL, "http://") && !strings.HasPrefix(c.Catalog.BaseURL, "https://") {
		return fmt.Errorf("catalog.base_url must be an http(s) URL")
	}
	if c.Catalog.CheckLimit <= 0 {
		return errors.New("catalog.check_limit must be > 0")
	}
	if c.Catalog.RecentLimit <= 0 {
		return errors.New("catalog.recent_limit must be > 0")
	}
	if c.HTTP.RatePerSecond < 0 {
		return errors.New("http.rate_per_second must be >= 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return errors.New("headless.max_parallel must be > 0 when headless is enabled")
	}
	switch c.Storage.Backend {
	case StorageLocal:
		if strings.TrimSpace(c.Storage.Dir) == "" {
			return errors.New("storage.dir is required for the local backend")
		}
	case StorageGCS:
		if c.Storage.GCS.Bucket == "" {
			return errors.New("storage.gcs.bucket is required for the gcs backend")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	if c.Storage.ListingsObject == "" || c.Storage.PromotionsObject == "" {
		return errors.New("storage object names must not be empty")
	}
	switch c.Events.Backend {
	case EventsNone, "":
	case EventsPubSub:
		if c.Events.PubSub.ProjectID == "" || c.Events.PubSub.Topic == "" {
			return errors.New("events.pubsub.project_id and events.pubsub.topic are required")
		}
	case EventsSNS:
		if c.Events.SNS.TopicARN == "" {
			return errors.New("events.sns.topic_arn is required")
		}
	default:
		return fmt.Errorf("unknown events.backend %q", c.Events.Backend)
	}
	if c.Dispatcher.Workers <= 0 {
		return errors.New("dispatcher.workers must be > 0")
	}
	if c.Dispatcher.QueueDepth <= 0 {
		return errors.New("dispatcher.queue_depth must be > 0")
	}
	return nil
}

// RequireTelegram reports whether the bot can talk to Telegram.
func (c *Config) RequireTelegram() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required (FREEBIE_TELEGRAM_TOKEN or TELEGRAM_BOT_TOKEN)")
	}
	return nil
}

// Location returns the configured schedule timezone, UTC when unset.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil || c.Schedule.Timezone == "" {
		return time.UTC
	}
	return loc
}

// Seconds converts an integer seconds knob to a duration.
func Seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Millis converts an integer milliseconds knob to a duration.
func Millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }

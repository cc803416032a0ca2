package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram transport settings.
type TelegramConfig struct {
	Token string `yaml:"token" envconfig:"BOT_TOKEN"`
	// OwnerID is the super-operator identity. It is always treated as an
	// admin with every right, bypassing the rights table entirely.
	OwnerID int64  `yaml:"owner_id" envconfig:"TELEGRAM_OWNER_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default.
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	ErrorsFile  string `yaml:"errors_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// FloodConfig holds the two throttling windows applied to inbound traffic.
// The generic window gates every update; the download window additionally
// gates media delivery so rapid repeat downloads are rejected even when
// generic flooding is not triggered.
type FloodConfig struct {
	IntervalMS      int `yaml:"interval_ms" envconfig:"FLOOD_INTERVAL_MS"`
	DownloadSeconds int `yaml:"download_seconds" envconfig:"FLOOD_DOWNLOAD_SECONDS"`
}

// SessionConfig controls the ephemeral per-chat session store.
type SessionConfig struct {
	TTLMinutes int `yaml:"ttl_minutes" envconfig:"SESSION_TTL_MINUTES"`
}

// BroadcastConfig bounds the relay throughput of the broadcast job.
type BroadcastConfig struct {
	PerSecond int `yaml:"per_second" envconfig:"BROADCAST_PER_SECOND"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

// Defaults applied by Normalize when a value is unset.
const (
	DefaultFloodIntervalMS     = 700
	DefaultDownloadSeconds     = 5
	DefaultSessionTTLMinutes   = 30
	DefaultBroadcastPerSecond  = 20
	DefaultLongPollTimeoutSecs = 10
)

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	Flood     FloodConfig     `yaml:"flood"`
	Session   SessionConfig   `yaml:"session"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if cfg.Telegram.OwnerID == 0 {
		return fmt.Errorf("telegram.owner_id is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" || rm == "polling" {
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	if cfg.Flood.IntervalMS < 0 {
		return fmt.Errorf("flood.interval_ms must be >= 0")
	}
	if cfg.Flood.IntervalMS == 0 {
		cfg.Flood.IntervalMS = DefaultFloodIntervalMS
	}
	if cfg.Flood.DownloadSeconds <= 0 {
		cfg.Flood.DownloadSeconds = DefaultDownloadSeconds
	}
	if cfg.Session.TTLMinutes <= 0 {
		cfg.Session.TTLMinutes = DefaultSessionTTLMinutes
	}
	if cfg.Broadcast.PerSecond <= 0 {
		cfg.Broadcast.PerSecond = DefaultBroadcastPerSecond
	}
	return nil
}

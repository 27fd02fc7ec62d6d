package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Tracking  TrackingConfig  `mapstructure:"tracking"`
	History   HistoryConfig   `mapstructure:"history"`
	Estimator EstimatorConfig `mapstructure:"estimator"`
	Notify    NotifyConfig    `mapstructure:"notify"`
}

// ServerConfig defines server ports and addresses
type ServerConfig struct {
	BindAddress string `mapstructure:"bind_address"`
	APIPort     int    `mapstructure:"api_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "bolt", "redis" or "memory"
	Path  string      `mapstructure:"path"` // bolt database file
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	KeyPrefix    string `mapstructure:"key_prefix"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TrackingConfig defines usage tracker cadence
type TrackingConfig struct {
	TickInterval        string `mapstructure:"tick_interval"`
	ResetCheckInterval  string `mapstructure:"reset_check_interval"`
	ActiveTabStaleAfter string `mapstructure:"active_tab_stale_after"`
}

// HistoryConfig defines where browser history comes from
type HistoryConfig struct {
	Source          string `mapstructure:"source"` // "chromium" or "none"
	Path            string `mapstructure:"path"`   // empty means auto-detect
	RefreshInterval string `mapstructure:"refresh_interval"`
	Lookback        string `mapstructure:"lookback"`
	MaxResults      int    `mapstructure:"max_results"`
}

// EstimatorConfig defines session estimation parameters
type EstimatorConfig struct {
	MaxSessionGap string `mapstructure:"max_session_gap"`
	TrailingVisit string `mapstructure:"trailing_visit"`
}

// NotifyConfig defines notification sinks
type NotifyConfig struct {
	WebhookURL     string `mapstructure:"webhook_url"`
	WebhookTimeout string `mapstructure:"webhook_timeout"`
	FeedSize       int    `mapstructure:"feed_size"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("BROWSEBACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file: defaults and environment only
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// KnownKeys returns every configuration key that has a default.
func KnownKeys() map[string]bool {
	v := viper.New()
	SetDefaults(v)

	keys := make(map[string]bool)
	for _, k := range v.AllKeys() {
		keys[k] = true
	}
	return keys
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "127.0.0.1")
	v.SetDefault("server.api_port", 8765)
	v.SetDefault("server.metrics_port", 9765)

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", defaultStoragePath())
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")
	v.SetDefault("storage.redis.key_prefix", "browseback")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Tracking defaults
	v.SetDefault("tracking.tick_interval", "1m")
	v.SetDefault("tracking.reset_check_interval", "1h")
	v.SetDefault("tracking.active_tab_stale_after", "2m")

	// History defaults
	v.SetDefault("history.source", "chromium")
	v.SetDefault("history.path", "")
	v.SetDefault("history.refresh_interval", "10m")
	v.SetDefault("history.lookback", "168h")
	v.SetDefault("history.max_results", 10000)

	// Estimator defaults
	v.SetDefault("estimator.max_session_gap", "30m")
	v.SetDefault("estimator.trailing_visit", "2m")

	// Notification defaults
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.webhook_timeout", "5s")
	v.SetDefault("notify.feed_size", 50)
}

func defaultStoragePath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "browseback", "state.bolt")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "browseback.bolt"
	}
	return filepath.Join(home, ".local", "share", "browseback", "state.bolt")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.APIPort <= 0 || cfg.Server.APIPort > 65535 {
		return fmt.Errorf("invalid API port: %d", cfg.Server.APIPort)
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	switch cfg.Storage.Type {
	case "":
		cfg.Storage.Type = "bolt"
	case "bolt", "redis", "memory":
	default:
		return fmt.Errorf("unsupported storage type: %s (must be bolt, redis or memory)", cfg.Storage.Type)
	}
	if cfg.Storage.Type == "bolt" && cfg.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}

	switch cfg.History.Source {
	case "chromium", "none":
	default:
		return fmt.Errorf("unsupported history source: %s (must be chromium or none)", cfg.History.Source)
	}
	if cfg.History.MaxResults <= 0 {
		return fmt.Errorf("history max_results must be positive: %d", cfg.History.MaxResults)
	}

	durations := map[string]string{
		"tracking.tick_interval":          cfg.Tracking.TickInterval,
		"tracking.reset_check_interval":   cfg.Tracking.ResetCheckInterval,
		"tracking.active_tab_stale_after": cfg.Tracking.ActiveTabStaleAfter,
		"history.refresh_interval":        cfg.History.RefreshInterval,
		"history.lookback":                cfg.History.Lookback,
		"estimator.max_session_gap":       cfg.Estimator.MaxSessionGap,
		"estimator.trailing_visit":        cfg.Estimator.TrailingVisit,
		"notify.webhook_timeout":          cfg.Notify.WebhookTimeout,
	}
	for key, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive: %s", key, value)
		}
	}

	tick, _ := time.ParseDuration(cfg.Tracking.TickInterval)
	if tick < time.Second {
		return fmt.Errorf("tracking.tick_interval must be at least 1s: %s", cfg.Tracking.TickInterval)
	}

	return nil
}

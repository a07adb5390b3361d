package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName              string        `mapstructure:"app_name"`
	Env                  string        `mapstructure:"app_env"`
	LogLevel             string        `mapstructure:"log_level"`
	SitesFile            string        `mapstructure:"sites_file"`
	NotifiersFile        string        `mapstructure:"notifiers_file"`
	WatchIntervalSeconds int64         `mapstructure:"watch_interval"`
	WatchInterval        time.Duration `mapstructure:"-"`

	StorageType string `mapstructure:"storage_type"`
	StoragePath string `mapstructure:"storage_path"`

	HTTPTimeoutSeconds int           `mapstructure:"http_timeout_seconds"`
	HTTPMaxRetries     int           `mapstructure:"http_max_retries"`
	HTTPTimeout        time.Duration `mapstructure:"-"`

	NotifyOnFirstCycle bool `mapstructure:"notify_on_first_cycle"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "ironscout")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("sites_file", "./configs/sites.yaml")
	v.SetDefault("notifiers_file", "./configs/notifiers.yaml")
	v.SetDefault("watch_interval", 0) // seconds; 0 = single batch run
	v.SetDefault("storage_type", "sqlite")
	v.SetDefault("storage_path", "./data/machines.db")
	v.SetDefault("http_timeout_seconds", 30)
	v.SetDefault("http_max_retries", 3)
	v.SetDefault("notify_on_first_cycle", false)

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.WatchIntervalSeconds < 0 {
		return nil, fmt.Errorf("invalid watch_interval (must be >= 0 seconds)")
	}
	cfg.WatchInterval = time.Duration(cfg.WatchIntervalSeconds) * time.Second

	if cfg.HTTPTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid http_timeout_seconds (must be positive)")
	}
	if cfg.HTTPMaxRetries < 0 {
		return nil, fmt.Errorf("invalid http_max_retries (must be >= 0)")
	}
	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSeconds) * time.Second

	return &cfg, nil
}

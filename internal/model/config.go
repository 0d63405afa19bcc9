package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// AppConfig is the top-level application configuration.
type AppConfig struct {
	// ServerURL is the base URL of the Exchange server
	// (e.g., https://mail.corp.example.com). The EWS endpoint path is
	// appended by the client.
	ServerURL string `mapstructure:"server_url" yaml:"server_url"`

	// Username is the account used for basic authentication. The
	// password lives in the system keyring, never in this file.
	Username string `mapstructure:"username" yaml:"username"`

	// Timezone is an IANA zone name applied only to timestamps the
	// server returns without an explicit offset. Defaults to UTC.
	Timezone string `mapstructure:"timezone" yaml:"timezone"`

	// CachePath is the SQLite database used as the local message cache.
	CachePath string `mapstructure:"cache_path" yaml:"cache_path"`

	// PollIntervalSec is how often (in seconds) the watch command
	// fetches updates.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// FetchWindowDays bounds the default fetch date range: messages
	// sent within the last N days. Zero means no date restriction.
	FetchWindowDays int `mapstructure:"fetch_window_days" yaml:"fetch_window_days"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/exchange-mail/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "exchange-mail", "config.yaml")
}

// defaultCachePath returns the default SQLite cache location next to the
// config file.
func defaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "cache.db")
	}
	return filepath.Join(home, ".config", "exchange-mail", "cache.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Timezone:        "UTC",
		CachePath:       defaultCachePath(),
		PollIntervalSec: 120,
		FetchWindowDays: 7,
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("timezone", "UTC")
	v.SetDefault("cache_path", defaultCachePath())
	v.SetDefault("poll_interval_sec", 120)
	v.SetDefault("fetch_window_days", 7)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server_url", cfg.ServerURL)
	v.Set("username", cfg.Username)
	v.Set("timezone", cfg.Timezone)
	v.Set("cache_path", cfg.CachePath)
	v.Set("poll_interval_sec", cfg.PollIntervalSec)
	v.Set("fetch_window_days", cfg.FetchWindowDays)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

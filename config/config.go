package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/BurntSushi/toml"
)

type ServerConfig struct {
	Port     int    `toml:"port"`
	LogLevel string `toml:"log_level"`
}

// BackendConfig points at the CMS backend that owns all entity CRUD and the
// remote mailbox. Every request carries the bearer token.
type BackendConfig struct {
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Timeout returns the request timeout for backend calls.
func (b *BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// InboxConfig tunes the reconciliation store.
// ReconcileMode controls what happens when an optimistic local mutation's
// remote call fails: "strict" reverts the local change, "forgiving" keeps it
// and only logs (the incidental mark-read-on-open case).
type InboxConfig struct {
	PageSize      int    `toml:"page_size"`
	ReconcileMode string `toml:"reconcile_mode"`
	CacheSeconds  int    `toml:"cache_seconds"`
}

type IMAPConfig struct {
	Server   string `toml:"server"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Folder   string `toml:"folder"`
}

type JWTConfig struct {
	Secret string `toml:"secret"` // For bearer token verification
}

type StorageConfig struct {
	DataDir string `toml:"data_dir"`
}

type RateLimitConfig struct {
	Requests      int `toml:"requests"`
	WindowSeconds int `toml:"window_seconds"`
}

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Backend   BackendConfig   `toml:"backend"`
	Inbox     InboxConfig     `toml:"inbox"`
	IMAP      IMAPConfig      `toml:"imap"`
	JWT       JWTConfig       `toml:"jwt"`
	Storage   StorageConfig   `toml:"storage"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

func LoadConfig(filepath string) (*Config, error) {
	var config Config

	// Set default values
	config.Server.Port = 3000
	config.Server.LogLevel = "info"
	config.Backend.TimeoutSeconds = 15
	config.Inbox.PageSize = 20
	config.Inbox.ReconcileMode = "forgiving"
	config.Inbox.CacheSeconds = 30
	config.IMAP.Port = 993
	config.IMAP.Folder = "INBOX"
	config.Storage.DataDir = "./data"
	config.RateLimit.Requests = 100
	config.RateLimit.WindowSeconds = 60

	_, err := toml.DecodeFile(filepath, &config)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the loaded configuration for values the service cannot
// run without.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if _, err := url.Parse(c.Backend.BaseURL); err != nil {
		return fmt.Errorf("backend.base_url is not a valid URL: %w", err)
	}
	if c.Inbox.ReconcileMode != "strict" && c.Inbox.ReconcileMode != "forgiving" {
		return fmt.Errorf("inbox.reconcile_mode must be \"strict\" or \"forgiving\", got %q", c.Inbox.ReconcileMode)
	}
	if c.Inbox.PageSize <= 0 {
		return fmt.Errorf("inbox.page_size must be positive")
	}
	return nil
}

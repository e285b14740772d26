package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/model"
	"github.com/Veraticus/fintrack/internal/service"
)

// EnvPrefix is the prefix of environment variables that override settings,
// e.g. FINTRACK_REMOTE_URL for remote.url.
const EnvPrefix = "FINTRACK"

// Config holds the resolved application settings.
type Config struct {
	DatabasePath        string
	UserID              string
	RemoteURL           string
	RemoteKey           string
	RemoteTable         string
	PullPolicy          service.PullPolicy
	ProbeURL            string
	DefaultCurrency     string
	LogLevel            string
	LogFormat           string
	RemoteTimeout       time.Duration
	ProbeInterval       time.Duration
	RetryAttempts       int
	BackupBeforeMigrate bool
}

// RemoteConfigured reports whether a remote store can be built.
func (c *Config) RemoteConfigured() bool {
	return c.RemoteURL != "" && c.RemoteKey != ""
}

// Retry returns the retry policy for remote calls.
func (c *Config) Retry() service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  c.RetryAttempts,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
	}
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "~/.local/share/fintrack/fintrack.db")
	v.SetDefault("database.backup_before_migrate", true)
	v.SetDefault("remote.table", "transactions")
	v.SetDefault("sync.remote_timeout", 15*time.Second)
	v.SetDefault("sync.retry_attempts", 3)
	v.SetDefault("sync.pull_policy", string(service.PullPreservePending))
	v.SetDefault("connectivity.interval", 30*time.Second)
	v.SetDefault("defaults.currency", model.DefaultCurrency)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// LoadDotEnv loads variables from a .env file in the working directory.
// A missing file is not an error; variables already set are kept.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// BindEnv makes v read FINTRACK_* environment variables for dotted keys.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load resolves settings from v. It follows this precedence:
// 1. Flags bound to v
// 2. FINTRACK_* environment variables (including those from .env)
// 3. The config file
// 4. Defaults
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DatabasePath:        v.GetString("database.path"),
		BackupBeforeMigrate: v.GetBool("database.backup_before_migrate"),
		UserID:              strings.TrimSpace(v.GetString("user.id")),
		RemoteURL:           strings.TrimSpace(v.GetString("remote.url")),
		RemoteKey:           strings.TrimSpace(v.GetString("remote.key")),
		RemoteTable:         v.GetString("remote.table"),
		RemoteTimeout:       v.GetDuration("sync.remote_timeout"),
		RetryAttempts:       v.GetInt("sync.retry_attempts"),
		PullPolicy:          service.PullPolicy(strings.ToLower(v.GetString("sync.pull_policy"))),
		ProbeURL:            strings.TrimSpace(v.GetString("connectivity.probe_url")),
		ProbeInterval:       v.GetDuration("connectivity.interval"),
		DefaultCurrency:     strings.ToUpper(v.GetString("defaults.currency")),
		LogLevel:            v.GetString("logging.level"),
		LogFormat:           v.GetString("logging.format"),
	}

	if cfg.DatabasePath != ":memory:" {
		cfg.DatabasePath = ExpandPath(cfg.DatabasePath)
	}
	// The probe defaults to the remote endpoint itself.
	if cfg.ProbeURL == "" {
		cfg.ProbeURL = cfg.RemoteURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail later and obscurely.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("%w: database.path is empty", common.ErrInvalidConfig)
	}
	switch c.PullPolicy {
	case service.PullPreservePending, service.PullOverwriteAlways:
	default:
		return fmt.Errorf("%w: sync.pull_policy must be %q or %q, got %q",
			common.ErrInvalidConfig, service.PullPreservePending, service.PullOverwriteAlways, c.PullPolicy)
	}
	if c.RemoteTimeout <= 0 {
		return fmt.Errorf("%w: sync.remote_timeout must be positive", common.ErrInvalidConfig)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("%w: sync.retry_attempts must be at least 1", common.ErrInvalidConfig)
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("%w: connectivity.interval must be positive", common.ErrInvalidConfig)
	}
	if len(c.DefaultCurrency) != 3 {
		return fmt.Errorf("%w: defaults.currency must be a 3-letter code", common.ErrInvalidConfig)
	}
	if (c.RemoteURL == "") != (c.RemoteKey == "") {
		return fmt.Errorf("%w: remote.url and remote.key must be set together", common.ErrMissingConfig)
	}
	if _, err := common.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// DefaultConfigDir returns $HOME/.config/fintrack.
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return home + "/.config/fintrack", nil
}

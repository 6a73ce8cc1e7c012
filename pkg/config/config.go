// Package config loads configuration for the enhancer and its CLI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"nxenhance/pkg/domain"
	"nxenhance/pkg/nextdns"
)

const (
	configEnvVar   = "NXENHANCE_CONFIG"
	configFileName = "nxenhance.toml"
)

// Config contains all runtime options.
type Config struct {
	API      APIConfig             `mapstructure:"api"`
	Retry    RetryConfig           `mapstructure:"retry"`
	Bulk     BulkConfig            `mapstructure:"bulk"`
	Browser  BrowserConfig         `mapstructure:"browser"`
	Settings SettingsConfig        `mapstructure:"settings"`
	Logging  LoggingConfig         `mapstructure:"logging"`
	Export   ExportConfig          `mapstructure:"export"`
	Lists    map[string]ListConfig `mapstructure:"-"`
}

// APIConfig holds the remote API endpoint and credentials.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Profile string        `mapstructure:"profile"`
	APIKey  string        `mapstructure:"api_key"`
	Origin  string        `mapstructure:"origin"`
	Timeout time.Duration `mapstructure:"-"`

	// UseBrowserSession authenticates CLI requests with the cookies of the attached tab.
	UseBrowserSession bool `mapstructure:"use_browser_session"`
}

// RetryConfig holds the rate limit backoff policy.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"-"`
	MaxJitter   time.Duration `mapstructure:"-"`
}

// BulkConfig holds the pacing of bulk workflows.
type BulkConfig struct {
	ItemDelay    time.Duration `mapstructure:"-"`
	PollInterval time.Duration `mapstructure:"-"`
	DeleteLimit  int           `mapstructure:"delete_limit"`
	ClearPolls   int           `mapstructure:"clear_polls"`
}

// BrowserConfig holds the DevTools connection and the engine timings.
type BrowserConfig struct {
	DevToolsURL  string        `mapstructure:"devtools_url"`
	Target       string        `mapstructure:"target"`
	SyncInterval time.Duration `mapstructure:"-"`
	ScanInterval time.Duration `mapstructure:"-"`
	MenuInterval time.Duration `mapstructure:"-"`
	RestoreDelay time.Duration `mapstructure:"-"`
}

// SettingsConfig holds where session settings are persisted.
type SettingsConfig struct {
	Database string `mapstructure:"database"`
	Key      string `mapstructure:"key"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level           string `mapstructure:"level"`
	File            string `mapstructure:"file"`
	MaxSizeMB       int    `mapstructure:"max_size_mb"`
	MaxBackups      int    `mapstructure:"max_backups"`
	MaxAgeDays      int    `mapstructure:"max_age_days"`
	Compress        bool   `mapstructure:"compress"`
	ParseErrorLimit int    `mapstructure:"parse_error_limit"`
}

// ExportConfig holds defaults for configuration exports.
type ExportConfig struct {
	Dir  string `mapstructure:"dir"`
	Name string `mapstructure:"name"`
}

// ListConfig names a domain source that bulk-add can read, from a [lists.<name>] table.
type ListConfig struct {
	Target   string            `mapstructure:"target"`
	Location string            `mapstructure:"location"`
	Auth     domain.AuthConfig `mapstructure:"auth"`
}

// Source returns the list as a loader source.
func (l ListConfig) Source(name string) domain.Source {
	return domain.Source{ID: name, Location: l.Location, Auth: l.Auth}
}

// ValidateLogLevel ensures the user-provided log level matches the supported set.
func ValidateLogLevel(level string) error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(level)] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", level)
	}
	return nil
}

// ValidateURL confirms that raw is an absolute http or https URL.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %s: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL %s: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL %s: missing host", raw)
	}
	return nil
}

// DefaultPath returns the configuration file used when neither a flag nor the
// environment names one.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return configFileName
	}
	return filepath.Join(dir, "nxenhance", configFileName)
}

// Setup loads the TOML configuration file and produces a Config instance. path wins over
// NXENHANCE_CONFIG; a missing file at the default location means built-in defaults.
func Setup(path string) (*Config, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadConfig(path string) (*Config, error) {
	configPath, explicit := strings.TrimSpace(path), true
	if configPath == "" {
		configPath = strings.TrimSpace(os.Getenv(configEnvVar))
	}
	if configPath == "" {
		configPath, explicit = DefaultPath(), false
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	listConfigs, err := parseListConfigs(v)
	if err != nil {
		return nil, err
	}
	cfg.Lists = listConfigs

	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"api.timeout", &cfg.API.Timeout},
		{"retry.base_delay", &cfg.Retry.BaseDelay},
		{"retry.max_jitter", &cfg.Retry.MaxJitter},
		{"bulk.item_delay", &cfg.Bulk.ItemDelay},
		{"bulk.poll_interval", &cfg.Bulk.PollInterval},
		{"browser.sync_interval", &cfg.Browser.SyncInterval},
		{"browser.scan_interval", &cfg.Browser.ScanInterval},
		{"browser.menu_interval", &cfg.Browser.MenuInterval},
		{"browser.restore_delay", &cfg.Browser.RestoreDelay},
	}
	for _, d := range durations {
		*d.target, err = parseDuration(v.GetString(d.key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", nextdns.DefaultBaseURL)
	v.SetDefault("api.origin", "https://my.nextdns.io")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.use_browser_session", false)
	v.SetDefault("retry.max_attempts", 7)
	v.SetDefault("retry.base_delay", "2500ms")
	v.SetDefault("retry.max_jitter", "1s")
	v.SetDefault("bulk.item_delay", "1s")
	v.SetDefault("bulk.poll_interval", "1s")
	v.SetDefault("bulk.delete_limit", 20)
	v.SetDefault("bulk.clear_polls", 30)
	v.SetDefault("browser.devtools_url", "http://127.0.0.1:9222")
	v.SetDefault("browser.target", "my.nextdns.io")
	v.SetDefault("browser.sync_interval", "250ms")
	v.SetDefault("browser.scan_interval", "1s")
	v.SetDefault("browser.menu_interval", "1200ms")
	v.SetDefault("browser.restore_delay", "2s")
	v.SetDefault("settings.database", "")
	v.SetDefault("settings.key", "ReNXsettings")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "stdout")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("logging.parse_error_limit", 20)
	v.SetDefault("export.dir", ".")
	v.SetDefault("export.name", "config")
}

func parseDuration(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}

func validateConfig(cfg *Config) error {
	if err := ValidateLogLevel(cfg.Logging.Level); err != nil {
		return err
	}
	if cfg.Logging.ParseErrorLimit < 0 {
		return errors.New("logging.parse_error_limit must be >= 0")
	}

	if err := ValidateURL(cfg.API.BaseURL); err != nil {
		return fmt.Errorf("invalid api.base_url: %w", err)
	}
	if cfg.API.Origin != "" {
		if err := ValidateURL(cfg.API.Origin); err != nil {
			return fmt.Errorf("invalid api.origin: %w", err)
		}
	}
	if strings.ContainsAny(cfg.API.Profile, "/?# ") {
		return fmt.Errorf("invalid api.profile: %q", cfg.API.Profile)
	}

	if cfg.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be >= 1")
	}
	if cfg.Bulk.DeleteLimit < 1 {
		return errors.New("bulk.delete_limit must be >= 1")
	}
	if cfg.Bulk.ClearPolls < 1 {
		return errors.New("bulk.clear_polls must be >= 1")
	}
	for name, d := range map[string]time.Duration{
		"retry.base_delay":      cfg.Retry.BaseDelay,
		"retry.max_jitter":      cfg.Retry.MaxJitter,
		"bulk.item_delay":       cfg.Bulk.ItemDelay,
		"bulk.poll_interval":    cfg.Bulk.PollInterval,
		"browser.sync_interval": cfg.Browser.SyncInterval,
		"browser.menu_interval": cfg.Browser.MenuInterval,
		"browser.restore_delay": cfg.Browser.RestoreDelay,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}

	if err := ValidateURL(cfg.Browser.DevToolsURL); err != nil {
		return fmt.Errorf("invalid browser.devtools_url: %w", err)
	}

	for name, list := range cfg.Lists {
		if _, err := nextdns.ParseList(list.Target); err != nil {
			return fmt.Errorf("invalid lists.%s.target: %w", name, err)
		}
		if strings.TrimSpace(list.Location) == "" {
			return fmt.Errorf("lists.%s.location is required", name)
		}
	}

	return nil
}

func parseListConfigs(v *viper.Viper) (map[string]ListConfig, error) {
	raw := v.GetStringMap("lists")
	listConfigs := make(map[string]ListConfig, len(raw))
	for key, value := range raw {
		subMap, ok := value.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("lists.%s must be a table", key)
		}
		var cfg ListConfig
		if err := mapstructure.Decode(subMap, &cfg); err != nil {
			return nil, fmt.Errorf("parse lists.%s: %w", key, err)
		}
		listConfigs[strings.ToLower(key)] = cfg
	}

	return listConfigs, nil
}

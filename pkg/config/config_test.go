package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestValidateLogLevel(t *testing.T) {
	validLevels := []string{"debug", "info", "warn", "error", "DEBUG", "INFO", "WARN", "ERROR"}
	for _, level := range validLevels {
		if err := ValidateLogLevel(level); err != nil {
			t.Errorf("ValidateLogLevel(%s) returned error: %v", level, err)
		}
	}

	invalidLevels := []string{"", "trace", "fatal", "invalid", "debugging"}
	for _, level := range invalidLevels {
		if err := ValidateLogLevel(level); err == nil {
			t.Errorf("ValidateLogLevel(%s) should return error", level)
		}
	}
}

func TestValidateURL(t *testing.T) {
	valid := []string{
		"https://api.nextdns.io",
		"http://127.0.0.1:9222",
		"https://my.nextdns.io/abc123/logs",
	}
	for _, raw := range valid {
		if err := ValidateURL(raw); err != nil {
			t.Errorf("ValidateURL(%s) returned error: %v", raw, err)
		}
	}

	invalid := []string{
		"",
		"api.nextdns.io",       // no scheme
		"ftp://api.nextdns.io", // wrong scheme
		"https://",             // no host
		"://broken",
	}
	for _, raw := range invalid {
		if err := ValidateURL(raw); err == nil {
			t.Errorf("ValidateURL(%s) should return error", raw)
		}
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nxenhance.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestSetupDefaults(t *testing.T) {
	t.Setenv(configEnvVar, "")
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Setup("")
	if err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}
	if cfg.API.BaseURL != "https://api.nextdns.io" {
		t.Errorf("api.base_url = %s", cfg.API.BaseURL)
	}
	if cfg.Retry.MaxAttempts != 7 || cfg.Retry.BaseDelay != 2500*time.Millisecond || cfg.Retry.MaxJitter != time.Second {
		t.Errorf("retry = %+v", cfg.Retry)
	}
	if cfg.Bulk.ItemDelay != time.Second || cfg.Bulk.DeleteLimit != 20 || cfg.Bulk.ClearPolls != 30 {
		t.Errorf("bulk = %+v", cfg.Bulk)
	}
	if cfg.Browser.SyncInterval != 250*time.Millisecond || cfg.Browser.MenuInterval != 1200*time.Millisecond {
		t.Errorf("browser = %+v", cfg.Browser)
	}
	if cfg.Settings.Key != "ReNXsettings" {
		t.Errorf("settings.key = %s", cfg.Settings.Key)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.File != "stdout" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if len(cfg.Lists) != 0 {
		t.Errorf("lists = %v", cfg.Lists)
	}
}

func TestSetupFromFile(t *testing.T) {
	path := writeConfig(t, `
[api]
profile = "abc123"
api_key = "secret"
timeout = "5s"

[bulk]
item_delay = "1500ms"
delete_limit = 10

[browser]
scan_interval = "-1s"

[logging]
level = "debug"
file = "/tmp/nxenhance.log"

[lists.Ads]
target = "deny"
location = "https://example.com/ads.txt"

[lists.Ads.auth]
token = "t0ken"
`)
	t.Setenv(configEnvVar, "")

	cfg, err := Setup(path)
	if err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}
	if cfg.API.Profile != "abc123" || cfg.API.APIKey != "secret" || cfg.API.Timeout != 5*time.Second {
		t.Errorf("api = %+v", cfg.API)
	}
	if cfg.Bulk.ItemDelay != 1500*time.Millisecond || cfg.Bulk.DeleteLimit != 10 {
		t.Errorf("bulk = %+v", cfg.Bulk)
	}
	if cfg.Browser.ScanInterval != -time.Second {
		t.Errorf("browser.scan_interval = %s", cfg.Browser.ScanInterval)
	}
	list, ok := cfg.Lists["ads"]
	if !ok {
		t.Fatalf("lists.ads missing: %v", cfg.Lists)
	}
	if list.Target != "deny" || list.Location != "https://example.com/ads.txt" || list.Auth.Token != "t0ken" {
		t.Errorf("lists.ads = %+v", list)
	}
	if src := list.Source("ads"); src.ID != "ads" || src.Location != list.Location {
		t.Errorf("source = %+v", src)
	}
}

func TestSetupFromEnvironment(t *testing.T) {
	path := writeConfig(t, "[api]\nprofile = \"env123\"\n")
	t.Setenv(configEnvVar, path)

	cfg, err := Setup("")
	if err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}
	if cfg.API.Profile != "env123" {
		t.Errorf("api.profile = %s", cfg.API.Profile)
	}
}

func TestSetupErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad level", "[logging]\nlevel = \"trace\"\n", "invalid log level"},
		{"bad duration", "[bulk]\nitem_delay = \"soon\"\n", "invalid bulk.item_delay"},
		{"negative delay", "[bulk]\nitem_delay = \"-1s\"\n", "bulk.item_delay must not be negative"},
		{"bad base url", "[api]\nbase_url = \"api.nextdns.io\"\n", "invalid api.base_url"},
		{"bad profile", "[api]\nprofile = \"abc/123\"\n", "invalid api.profile"},
		{"zero attempts", "[retry]\nmax_attempts = 0\n", "retry.max_attempts"},
		{"zero delete limit", "[bulk]\ndelete_limit = 0\n", "bulk.delete_limit"},
		{"list not a table", "[lists]\nads = \"x\"\n", "lists.ads must be a table"},
		{"list bad target", "[lists.ads]\ntarget = \"rewrites\"\nlocation = \"a.txt\"\n", "invalid lists.ads.target"},
		{"list no location", "[lists.ads]\ntarget = \"allow\"\n", "lists.ads.location is required"},
		{"bad toml", "[api\n", "read config"},
	}
	t.Setenv(configEnvVar, "")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Setup(writeConfig(t, tt.content))
			if err == nil {
				t.Fatalf("Setup should return error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestSetupMissingExplicitFile(t *testing.T) {
	if _, err := Setup(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Setup should fail for a missing explicit config file")
	}
}

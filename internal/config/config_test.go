package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/klauern/amsync/internal/reddit"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.RulesPath != "rules.yaml" {
		t.Errorf("expected RulesPath rules.yaml, got %q", cfg.RulesPath)
	}

	// Check reddit defaults
	if cfg.Reddit.BaseURL != reddit.DefaultBaseURL {
		t.Errorf("expected BaseURL %q, got %q", reddit.DefaultBaseURL, cfg.Reddit.BaseURL)
	}
	if cfg.Reddit.RequestsPerSecond != 1 {
		t.Errorf("expected 1 request per second, got %v", cfg.Reddit.RequestsPerSecond)
	}
	if cfg.Reddit.Burst != 5 {
		t.Errorf("expected Burst 5, got %d", cfg.Reddit.Burst)
	}
	if cfg.Reddit.Timeout != 30*time.Second {
		t.Errorf("expected Timeout 30s, got %v", cfg.Reddit.Timeout)
	}

	// Check backup defaults
	if !cfg.Backup.Enabled {
		t.Error("expected Backup.Enabled to be true by default")
	}
	if cfg.Backup.MaxBackups != 10 {
		t.Errorf("expected Backup.MaxBackups to be 10, got %d", cfg.Backup.MaxBackups)
	}

	// Check output defaults
	if cfg.Output.Color != "auto" {
		t.Errorf("expected Output.Color to be 'auto', got %q", cfg.Output.Color)
	}
	if !cfg.Output.Pager {
		t.Error("expected Output.Pager to be true by default")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	cfg := Default()
	cfg.RulesPath = "/srv/mods/rules.yaml"
	cfg.Reddit.Timeout = 10 * time.Second
	cfg.Reddit.UserAgent = "amsync/1.0 by u/someone"
	cfg.Backup.MaxBackups = 20
	cfg.Output.Pager = false

	if err := cfg.SaveToPath(configPath); err != nil {
		t.Fatalf("SaveToPath failed: %v", err)
	}

	loaded, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("round trip mismatch (-saved +loaded):\n%s", diff)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	tests := []struct {
		name     string
		envKey   string
		envValue string
		check    func(*Config) bool
	}{
		{
			name:     "rules path",
			envKey:   "AMSYNC_RULES_PATH",
			envValue: "mods.yaml",
			check:    func(c *Config) bool { return c.RulesPath == "mods.yaml" },
		},
		{
			name:     "base url",
			envKey:   "AMSYNC_REDDIT_BASE_URL",
			envValue: "http://127.0.0.1:8080",
			check:    func(c *Config) bool { return c.Reddit.BaseURL == "http://127.0.0.1:8080" },
		},
		{
			name:     "token url",
			envKey:   "AMSYNC_REDDIT_TOKEN_URL",
			envValue: "http://127.0.0.1:8080/token",
			check:    func(c *Config) bool { return c.Reddit.TokenURL == "http://127.0.0.1:8080/token" },
		},
		{
			name:     "user agent",
			envKey:   "AMSYNC_REDDIT_USER_AGENT",
			envValue: "amsync/1.0 by u/someone",
			check:    func(c *Config) bool { return c.Reddit.UserAgent == "amsync/1.0 by u/someone" },
		},
		{
			name:     "requests per second",
			envKey:   "AMSYNC_REDDIT_REQUESTS_PER_SECOND",
			envValue: "0.5",
			check:    func(c *Config) bool { return c.Reddit.RequestsPerSecond == 0.5 },
		},
		{
			name:     "invalid requests per second ignored",
			envKey:   "AMSYNC_REDDIT_REQUESTS_PER_SECOND",
			envValue: "-2",
			check:    func(c *Config) bool { return c.Reddit.RequestsPerSecond == 1 },
		},
		{
			name:     "burst",
			envKey:   "AMSYNC_REDDIT_BURST",
			envValue: "10",
			check:    func(c *Config) bool { return c.Reddit.Burst == 10 },
		},
		{
			name:     "timeout",
			envKey:   "AMSYNC_REDDIT_TIMEOUT",
			envValue: "5s",
			check:    func(c *Config) bool { return c.Reddit.Timeout == 5*time.Second },
		},
		{
			name:     "max retry time",
			envKey:   "AMSYNC_REDDIT_MAX_RETRY_TIME",
			envValue: "1m",
			check:    func(c *Config) bool { return c.Reddit.MaxRetryTime == time.Minute },
		},
		{
			name:     "backup enabled",
			envKey:   "AMSYNC_BACKUP_ENABLED",
			envValue: "no",
			check:    func(c *Config) bool { return !c.Backup.Enabled },
		},
		{
			name:     "backup location",
			envKey:   "AMSYNC_BACKUP_LOCATION",
			envValue: "/tmp/amsync-backups",
			check:    func(c *Config) bool { return c.Backup.Location == "/tmp/amsync-backups" },
		},
		{
			name:     "max backups",
			envKey:   "AMSYNC_BACKUP_MAX_BACKUPS",
			envValue: "3",
			check:    func(c *Config) bool { return c.Backup.MaxBackups == 3 },
		},
		{
			name:     "output color",
			envKey:   "AMSYNC_OUTPUT_COLOR",
			envValue: "never",
			check:    func(c *Config) bool { return c.Output.Color == "never" },
		},
		{
			name:     "output pager",
			envKey:   "AMSYNC_OUTPUT_PAGER",
			envValue: "off",
			check:    func(c *Config) bool { return !c.Output.Pager },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.envKey, tt.envValue)

			cfg := Default()
			cfg.applyEnvironment()

			if !tt.check(cfg) {
				t.Errorf("environment override for %s did not apply correctly", tt.envKey)
			}
		})
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"yes", true},
		{"on", true},
		{" on ", true},
		{"false", false},
		{"0", false},
		{"no", false},
		{"off", false},
		{"", false},
		{"invalid", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseBool(tt.input); got != tt.expected {
				t.Errorf("parseBool(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	t.Setenv("AMSYNC_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() should not fail for non-existent file: %v", err)
	}
	if cfg.RulesPath != "rules.yaml" {
		t.Errorf("expected default rules path, got %q", cfg.RulesPath)
	}
	if Exists() {
		t.Error("Exists() = true for an empty config directory")
	}
}

func TestLoadFromHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("AMSYNC_HOME", home)
	writeFile(t, filepath.Join(home, "config.yaml"), "rules_path: ~/mods/rules.yaml\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.RulesPath != "~/mods/rules.yaml" {
		t.Errorf("RulesPath = %q", cfg.RulesPath)
	}
	if strings.HasPrefix(cfg.ResolvedRulesPath(), "~") {
		t.Errorf("ResolvedRulesPath() = %q, expected ~ to be expanded", cfg.ResolvedRulesPath())
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, configPath, "invalid: yaml: content:")

	if _, err := LoadFromPath(configPath); err == nil {
		t.Error("LoadFromPath should fail for invalid YAML")
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := map[string]string{
		"bad color":        "output:\n  color: sometimes\n",
		"zero rate":        "reddit:\n  requests_per_second: 0\n",
		"bad base url":     "reddit:\n  base_url: not a url\n",
		"empty user agent": "reddit:\n  user_agent: \"\"\n",
		"empty rules path": "rules_path: \"\"\n",
		"negative backups": "backup:\n  max_backups: -1\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			writeFile(t, configPath, content)

			if _, err := LoadFromPath(configPath); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestPartialConfigMerge(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, configPath, `
reddit:
  user_agent: "amsync/1.0 by u/someone"
  timeout: 45s
backup:
  enabled: false
`)

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	// Partial overrides should apply
	if cfg.Reddit.UserAgent != "amsync/1.0 by u/someone" {
		t.Errorf("UserAgent = %q", cfg.Reddit.UserAgent)
	}
	if cfg.Reddit.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", cfg.Reddit.Timeout)
	}
	if cfg.Backup.Enabled {
		t.Error("expected Backup.Enabled to be false from partial config")
	}

	// Defaults should be preserved for unspecified values
	if cfg.Reddit.BaseURL != reddit.DefaultBaseURL {
		t.Errorf("BaseURL = %q, expected default", cfg.Reddit.BaseURL)
	}
	if cfg.Backup.MaxBackups != 10 {
		t.Errorf("MaxBackups = %d, expected default 10", cfg.Backup.MaxBackups)
	}
}

func TestClientConfig(t *testing.T) {
	cfg := Default()
	creds := Credentials{ClientID: "id", ClientSecret: "secret", Username: "user", Password: "pass"}

	got := cfg.ClientConfig(creds)
	want := reddit.Config{
		BaseURL:           reddit.DefaultBaseURL,
		TokenURL:          reddit.DefaultTokenURL,
		UserAgent:         DefaultUserAgent,
		ClientID:          "id",
		ClientSecret:      "secret",
		Username:          "user",
		Password:          "pass",
		RequestsPerSecond: 1,
		Burst:             5,
		Timeout:           reddit.DefaultTimeout,
		MaxRetryTime:      reddit.DefaultMaxRetryTime,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ClientConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadCredentials(t *testing.T) {
	clearCredentialEnv(t)
	home := t.TempDir()
	t.Setenv("AMSYNC_HOME", home)
	writeFile(t, filepath.Join(home, "credentials.toml"), `
[reddit]
client_id = "file-id"
client_secret = "file-secret"
username = "file-user"
password = "file-pass"
`)
	t.Setenv("AMSYNC_PASSWORD", "env-pass")

	got, err := LoadCredentials()
	if err != nil {
		t.Fatalf("LoadCredentials() error: %v", err)
	}
	want := Credentials{ClientID: "file-id", ClientSecret: "file-secret", Username: "file-user", Password: "env-pass"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadCredentials() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadCredentials_EnvOnly(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("AMSYNC_CLIENT_ID", "id")
	t.Setenv("AMSYNC_CLIENT_SECRET", "secret")
	t.Setenv("AMSYNC_USERNAME", "user")
	t.Setenv("AMSYNC_PASSWORD", "pass")

	got, err := LoadCredentialsFromPath(filepath.Join(t.TempDir(), "credentials.toml"))
	if err != nil {
		t.Fatalf("LoadCredentialsFromPath() error: %v", err)
	}
	if got.Username != "user" {
		t.Errorf("Username = %q, want user", got.Username)
	}
}

func TestLoadCredentials_Missing(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("AMSYNC_CLIENT_ID", "id")

	_, err := LoadCredentialsFromPath(filepath.Join(t.TempDir(), "credentials.toml"))
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
	for _, field := range []string{"ClientSecret", "Username", "Password"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q should name %s", err, field)
		}
	}
}

func TestLoadCredentials_Malformed(t *testing.T) {
	clearCredentialEnv(t)
	path := filepath.Join(t.TempDir(), "credentials.toml")
	writeFile(t, path, "[reddit\nclient_id = ")

	_, err := LoadCredentialsFromPath(path)
	if err == nil || errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected a parse error, got %v", err)
	}
}

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{"AMSYNC_CLIENT_ID", "AMSYNC_CLIENT_SECRET", "AMSYNC_USERNAME", "AMSYNC_PASSWORD"} {
		t.Setenv(env, "")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	// #nosec G306 - test file permissions are acceptable
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// Package config provides configuration management for amsync.
// It supports a YAML configuration file, a TOML credentials file,
// environment variables, and sensible defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/klauern/amsync/internal/reddit"
	"github.com/klauern/amsync/internal/util"
)

// Config represents the complete amsync configuration.
type Config struct {
	// RulesPath is the combined rules file. Relative paths are resolved from
	// the working directory.
	RulesPath string `yaml:"rules_path" json:"rules_path" validate:"required"`

	// Reddit configures the API client
	Reddit RedditConfig `yaml:"reddit" json:"reddit"`

	// Backup configures backups of the rules file
	Backup BackupConfig `yaml:"backup" json:"backup"`

	// Output configures display preferences
	Output OutputConfig `yaml:"output" json:"output"`
}

// RedditConfig holds API endpoint and client settings.
type RedditConfig struct {
	BaseURL  string `yaml:"base_url" json:"base_url" validate:"required,url"`
	TokenURL string `yaml:"token_url" json:"token_url" validate:"required,url"`
	// UserAgent must identify the tool and its operator.
	UserAgent string `yaml:"user_agent" json:"user_agent" validate:"required"`
	// RequestsPerSecond limits API calls
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second" validate:"gt=0"`
	Burst             int     `yaml:"burst" json:"burst" validate:"gte=1"`
	// Timeout bounds a single HTTP request
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`
	// MaxRetryTime bounds the retries of one API call
	MaxRetryTime time.Duration `yaml:"max_retry_time" json:"max_retry_time" validate:"gte=0"`
}

// BackupConfig holds backup settings.
type BackupConfig struct {
	// Enabled backs up the rules file before it is overwritten
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Location is the backup directory path
	Location string `yaml:"location" json:"location" validate:"required_if=Enabled true"`
	// MaxBackups is the maximum number of backups to keep (0 keeps all)
	MaxBackups int `yaml:"max_backups" json:"max_backups" validate:"gte=0"`
}

// OutputConfig holds display preferences.
type OutputConfig struct {
	// Color controls color output (auto, always, never)
	Color string `yaml:"color" json:"color" validate:"oneof=auto always never"`
	// Pager enables paging of diffs on a terminal
	Pager bool `yaml:"pager" json:"pager"`
}

// Credentials are the script-app credentials presented to the token endpoint.
type Credentials struct {
	ClientID     string `toml:"client_id" validate:"required"`
	ClientSecret string `toml:"client_secret" validate:"required"`
	Username     string `toml:"username" validate:"required"`
	Password     string `toml:"password" validate:"required"`
}

type credentialsFile struct {
	Reddit Credentials `toml:"reddit"`
}

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "amsync/dev (AutoModerator rule sync)"

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		RulesPath: "rules.yaml",
		Reddit: RedditConfig{
			BaseURL:           reddit.DefaultBaseURL,
			TokenURL:          reddit.DefaultTokenURL,
			UserAgent:         DefaultUserAgent,
			RequestsPerSecond: 1,
			Burst:             5,
			Timeout:           reddit.DefaultTimeout,
			MaxRetryTime:      reddit.DefaultMaxRetryTime,
		},
		Backup: BackupConfig{
			Enabled:    true,
			Location:   util.BackupsPath(),
			MaxBackups: 10,
		},
		Output: OutputConfig{
			Color: "auto",
			Pager: true,
		},
	}
}

const (
	configFileName      = "config.yaml"
	credentialsFileName = "credentials.toml"
)

// ErrMissingCredentials is returned when no credentials are configured.
var ErrMissingCredentials = errors.New("reddit credentials are not configured")

// FilePath returns the path to the config file.
func FilePath() string {
	return filepath.Join(util.ConfigPath(), configFileName)
}

// CredentialsPath returns the path to the credentials file.
func CredentialsPath() string {
	return filepath.Join(util.ConfigPath(), credentialsFileName)
}

// Load loads the configuration from file, merging with defaults.
// If the config file doesn't exist, returns default configuration.
func Load() (*Config, error) {
	cfg, err := LoadFromPath(FilePath())
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
		cfg.applyEnvironment()
		return cfg, cfg.Validate()
	}
	return cfg, err
}

// LoadFromPath loads configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	// #nosec G304 - path is provided by caller
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.applyEnvironment()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveToPath writes the configuration to a specific path.
func (c *Config) SaveToPath(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	// #nosec G306 - config file should be readable by user
	return os.WriteFile(path, data, 0o644)
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	return validate.Struct(c)
}

// ResolvedRulesPath returns RulesPath with ~ expanded.
func (c *Config) ResolvedRulesPath() string {
	return util.ExpandPath(c.RulesPath)
}

// ClientConfig builds the Reddit client configuration from c and creds.
func (c *Config) ClientConfig(creds Credentials) reddit.Config {
	return reddit.Config{
		BaseURL:           c.Reddit.BaseURL,
		TokenURL:          c.Reddit.TokenURL,
		UserAgent:         c.Reddit.UserAgent,
		ClientID:          creds.ClientID,
		ClientSecret:      creds.ClientSecret,
		Username:          creds.Username,
		Password:          creds.Password,
		RequestsPerSecond: c.Reddit.RequestsPerSecond,
		Burst:             c.Reddit.Burst,
		Timeout:           c.Reddit.Timeout,
		MaxRetryTime:      c.Reddit.MaxRetryTime,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// applyEnvironment applies environment variable overrides.
// Environment variables follow the pattern AMSYNC_<SECTION>_<KEY>.
func (c *Config) applyEnvironment() {
	if v := os.Getenv("AMSYNC_RULES_PATH"); v != "" {
		c.RulesPath = v
	}

	// Reddit settings
	if v := os.Getenv("AMSYNC_REDDIT_BASE_URL"); v != "" {
		c.Reddit.BaseURL = v
	}
	if v := os.Getenv("AMSYNC_REDDIT_TOKEN_URL"); v != "" {
		c.Reddit.TokenURL = v
	}
	if v := os.Getenv("AMSYNC_REDDIT_USER_AGENT"); v != "" {
		c.Reddit.UserAgent = v
	}
	if v := os.Getenv("AMSYNC_REDDIT_REQUESTS_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Reddit.RequestsPerSecond = f
		}
	}
	if v := os.Getenv("AMSYNC_REDDIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Reddit.Burst = n
		}
	}
	if v := os.Getenv("AMSYNC_REDDIT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Reddit.Timeout = d
		}
	}
	if v := os.Getenv("AMSYNC_REDDIT_MAX_RETRY_TIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Reddit.MaxRetryTime = d
		}
	}

	// Backup settings
	if v := os.Getenv("AMSYNC_BACKUP_ENABLED"); v != "" {
		c.Backup.Enabled = parseBool(v)
	}
	if v := os.Getenv("AMSYNC_BACKUP_LOCATION"); v != "" {
		c.Backup.Location = v
	}
	if v := os.Getenv("AMSYNC_BACKUP_MAX_BACKUPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Backup.MaxBackups = n
		}
	}

	// Output settings
	if v := os.Getenv("AMSYNC_OUTPUT_COLOR"); v != "" {
		c.Output.Color = v
	}
	if v := os.Getenv("AMSYNC_OUTPUT_PAGER"); v != "" {
		c.Output.Pager = parseBool(v)
	}
}

// parseBool parses a boolean from common string representations.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// LoadCredentials reads credentials.toml beside the config file, then lets
// AMSYNC_CLIENT_ID, AMSYNC_CLIENT_SECRET, AMSYNC_USERNAME and
// AMSYNC_PASSWORD override individual fields.
func LoadCredentials() (Credentials, error) {
	return LoadCredentialsFromPath(CredentialsPath())
}

// LoadCredentialsFromPath is LoadCredentials with an explicit file. A missing
// file is not an error as long as the environment supplies every field.
func LoadCredentialsFromPath(path string) (Credentials, error) {
	var f credentialsFile
	if _, err := toml.DecodeFile(path, &f); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Credentials{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	creds := f.Reddit
	for env, field := range map[string]*string{
		"AMSYNC_CLIENT_ID":     &creds.ClientID,
		"AMSYNC_CLIENT_SECRET": &creds.ClientSecret,
		"AMSYNC_USERNAME":      &creds.Username,
		"AMSYNC_PASSWORD":      &creds.Password,
	} {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}

	if err := validate.Struct(creds); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			missing := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				missing = append(missing, fe.Field())
			}
			return Credentials{}, fmt.Errorf("%w: missing %s (set them in %s or the environment)",
				ErrMissingCredentials, strings.Join(missing, ", "), path)
		}
		return Credentials{}, err
	}
	return creds, nil
}

// Exists returns true if a config file exists.
func Exists() bool {
	_, err := os.Stat(FilePath())
	return err == nil
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the stillingsvakt pipeline.
type Config struct {
	Keywords     []string
	HTTPTimeout  time.Duration
	Database     DatabaseConfig
	Finn         FinnConfig
	Nav          NavConfig
	AI           AIConfig
	Lifecycle    LifecycleConfig
	Schedule     ScheduleConfig
	RateLimit    RateLimitConfig
	Notification NotificationConfig
}

// DatabaseConfig locates the SQLite catalogue.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// FinnConfig controls the FINN.no scrape adapter.
type FinnConfig struct {
	Enabled       bool   `yaml:"enabled"`
	BaseURL       string `yaml:"base_url"`
	Location      string `yaml:"location"` // FINN location code, e.g. "2.20001.22046.20220"
	MaxPerKeyword int    `yaml:"max_per_keyword"`
}

// NavConfig controls the NAV feed adapter.
type NavConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BaseURL   string `yaml:"base_url"`
	TokenURL  string `yaml:"token_url"` // public-token endpoint used when api_token is empty
	APIToken  string `yaml:"api_token"` // expanded from env var by Load
	County    string `yaml:"county"`
	Municipal string `yaml:"municipal"`
	MaxPages  int    `yaml:"max_pages"` // hard per-run page cap
}

// AIConfig controls the external annotation service. Classification and
// summarization are gated independently.
type AIConfig struct {
	ClassifyEnabled  bool
	SummarizeEnabled bool
	BaseURL          string
	Model            string
	APIKey           string
	Timeout          time.Duration // per-request timeout
	MaxAttempts      int           // total attempts per call, including the first
	RetryDelay       time.Duration // backoff base delay between attempts
}

// LifecycleConfig holds the two environment-tunable lifecycle thresholds.
type LifecycleConfig struct {
	GraceWindow  time.Duration // ACTIVE entries unobserved longer than this go INACTIVE
	RetentionAge time.Duration // INACTIVE/EXPIRED entries unobserved longer than this are swept
}

// ScheduleConfig holds cron specs for the daemon.
type ScheduleConfig struct {
	Sync  string `yaml:"sync"`  // e.g. "0 8,18 * * *"
	Sweep string `yaml:"sweep"` // lower frequency, e.g. "30 3 * * 0"
}

// RateLimitConfig enforces a minimum gap between requests to the same source.
type RateLimitConfig struct {
	MinDelay        time.Duration
	SourceOverrides map[string]time.Duration
}

// MinDelayFor returns the configured delay for the given source, falling back
// to MinDelay.
func (r RateLimitConfig) MinDelayFor(source string) time.Duration {
	if d, ok := r.SourceOverrides[source]; ok {
		return d
	}
	return r.MinDelay
}

// NotificationConfig controls which notifier announces new postings.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

const (
	defaultFinnBaseURL  = "https://www.finn.no/job/search"
	defaultNavBaseURL   = "https://pam-stilling-feed.nav.no/api/v1"
	defaultNavTokenURL  = "https://pam-stilling-feed.nav.no/api/publicToken"
	defaultAIBaseURL    = "https://api.openai.com/v1"
	defaultSyncSpec     = "0 8,18 * * *"
	defaultSweepSpec    = "30 3 * * 0"
	defaultDatabasePath = "stillingsvakt.db"
)

// rawConfig is used for YAML unmarshaling (snake_case fields, durations as strings).
type rawConfig struct {
	Keywords     []string           `yaml:"keywords"`
	HTTPTimeout  string             `yaml:"http_timeout"`
	Database     DatabaseConfig     `yaml:"database"`
	Finn         FinnConfig         `yaml:"finn"`
	Nav          NavConfig          `yaml:"nav"`
	AI           rawAIConfig        `yaml:"ai"`
	Lifecycle    rawLifecycleConfig `yaml:"lifecycle"`
	Schedule     ScheduleConfig     `yaml:"schedule"`
	RateLimit    rawRateLimitConfig `yaml:"rate_limit"`
	Notification NotificationConfig `yaml:"notification"`
}

type rawAIConfig struct {
	ClassifyEnabled  bool   `yaml:"classify_enabled"`
	SummarizeEnabled bool   `yaml:"summarize_enabled"`
	BaseURL          string `yaml:"base_url"`
	Model            string `yaml:"model"`
	APIKey           string `yaml:"api_key"`
	Timeout          string `yaml:"timeout"`
	MaxAttempts      int    `yaml:"max_attempts"`
	RetryDelay       string `yaml:"retry_delay"`
}

type rawLifecycleConfig struct {
	GraceWindow  string `yaml:"grace_window"`
	RetentionAge string `yaml:"retention_age"`
}

type rawRateLimitConfig struct {
	MinDelay        string            `yaml:"min_delay"`
	SourceOverrides map[string]string `yaml:"source_overrides"`
}

// Load reads and parses the YAML config file at path, expands environment
// variables, applies defaults, validates, and returns Config. Any error here
// is fatal: the run must abort before side effects.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	httpTimeout, err := durationOr(raw.HTTPTimeout, 30*time.Second, "http_timeout")
	if err != nil {
		return nil, err
	}

	aiTimeout, err := durationOr(raw.AI.Timeout, 30*time.Second, "ai.timeout")
	if err != nil {
		return nil, err
	}
	aiRetryDelay, err := durationOr(raw.AI.RetryDelay, 2*time.Second, "ai.retry_delay")
	if err != nil {
		return nil, err
	}

	graceWindow, err := durationOr(raw.Lifecycle.GraceWindow, 96*time.Hour, "lifecycle.grace_window")
	if err != nil {
		return nil, err
	}
	retentionAge, err := durationOr(raw.Lifecycle.RetentionAge, 90*24*time.Hour, "lifecycle.retention_age")
	if err != nil {
		return nil, err
	}

	minDelay, err := durationOr(raw.RateLimit.MinDelay, 1*time.Second, "rate_limit.min_delay")
	if err != nil {
		return nil, err
	}
	overrides := make(map[string]time.Duration)
	for source, s := range raw.RateLimit.SourceOverrides {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("parse rate_limit.source_overrides[%q]: %w", source, err)
		}
		overrides[source] = d
	}

	cfg := &Config{
		Keywords:    raw.Keywords,
		HTTPTimeout: httpTimeout,
		Database:    raw.Database,
		Finn:        raw.Finn,
		Nav:         raw.Nav,
		AI: AIConfig{
			ClassifyEnabled:  raw.AI.ClassifyEnabled,
			SummarizeEnabled: raw.AI.SummarizeEnabled,
			BaseURL:          raw.AI.BaseURL,
			Model:            raw.AI.Model,
			APIKey:           raw.AI.APIKey,
			Timeout:          aiTimeout,
			MaxAttempts:      raw.AI.MaxAttempts,
			RetryDelay:       aiRetryDelay,
		},
		Lifecycle: LifecycleConfig{
			GraceWindow:  graceWindow,
			RetentionAge: retentionAge,
		},
		Schedule: raw.Schedule,
		RateLimit: RateLimitConfig{
			MinDelay:        minDelay,
			SourceOverrides: overrides,
		},
		Notification: raw.Notification,
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Path == "" {
		cfg.Database.Path = defaultDatabasePath
	}
	if cfg.Finn.BaseURL == "" {
		cfg.Finn.BaseURL = defaultFinnBaseURL
	}
	if cfg.Finn.MaxPerKeyword <= 0 {
		cfg.Finn.MaxPerKeyword = 5
	}
	if cfg.Nav.BaseURL == "" {
		cfg.Nav.BaseURL = defaultNavBaseURL
	}
	if cfg.Nav.TokenURL == "" {
		cfg.Nav.TokenURL = defaultNavTokenURL
	}
	if cfg.Nav.MaxPages <= 0 {
		cfg.Nav.MaxPages = 10
	}
	if cfg.AI.BaseURL == "" {
		cfg.AI.BaseURL = defaultAIBaseURL
	}
	if cfg.AI.MaxAttempts <= 0 {
		cfg.AI.MaxAttempts = 3
	}
	if cfg.Schedule.Sync == "" {
		cfg.Schedule.Sync = defaultSyncSpec
	}
	if cfg.Schedule.Sweep == "" {
		cfg.Schedule.Sweep = defaultSweepSpec
	}
}

func validate(cfg *Config) error {
	if len(cfg.Keywords) == 0 {
		return fmt.Errorf("at least one keyword is required")
	}
	if !cfg.Finn.Enabled && !cfg.Nav.Enabled {
		return fmt.Errorf("at least one source must be enabled")
	}
	if cfg.Lifecycle.GraceWindow <= 0 {
		return fmt.Errorf("lifecycle.grace_window must be positive, got %v", cfg.Lifecycle.GraceWindow)
	}
	if cfg.Lifecycle.RetentionAge <= 0 {
		return fmt.Errorf("lifecycle.retention_age must be positive, got %v", cfg.Lifecycle.RetentionAge)
	}
	if cfg.Lifecycle.RetentionAge < cfg.Lifecycle.GraceWindow {
		return fmt.Errorf("lifecycle.retention_age (%v) must not be shorter than lifecycle.grace_window (%v)",
			cfg.Lifecycle.RetentionAge, cfg.Lifecycle.GraceWindow)
	}

	if cfg.AI.ClassifyEnabled || cfg.AI.SummarizeEnabled {
		if cfg.AI.APIKey == "" {
			return fmt.Errorf("ai.api_key is required when classification or summarization is enabled")
		}
		if cfg.AI.Model == "" {
			return fmt.Errorf("ai.model is required when classification or summarization is enabled")
		}
	}

	if cfg.Notification.Type == "slack" {
		if cfg.Notification.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, "https://hooks.slack.com/") {
			return fmt.Errorf("notification.webhook_url must start with https://hooks.slack.com/")
		}
	}

	return nil
}

func durationOr(s string, fallback time.Duration, field string) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return d, nil
}

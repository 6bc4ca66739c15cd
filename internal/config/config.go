// Package config handles TOML and environment configuration for richeck.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/yairfalse/richeck/pkg/reservation"
)

// Environment variables read by FromEnv.
const (
	EnvWebhookURL     = "RICHECKER_WEBHOOK_URL"
	EnvRegion         = "RICHECKER_REGION"
	EnvChannel        = "RICHECKER_SLACK_CHANNEL"
	EnvExcludePattern = "RICHECKER_EXCLUDE_PATTERN"
	EnvFamilies       = "RICHECKER_FAMILIES"
	EnvLogLevel       = "RICHECKER_LOG_LEVEL"
)

const (
	DefaultRegion   = "us-east-1"
	DefaultUsername = "AWS Reserved Instance Status Check"
)

// Config is the root configuration structure.
type Config struct {
	AWS      AWSConfig      `toml:"aws"`
	Slack    SlackConfig    `toml:"slack"`
	Filter   FilterConfig   `toml:"filter"`
	OTEL     OTELConfig     `toml:"otel"`
	Schedule ScheduleConfig `toml:"schedule"`
	Log      LogConfig      `toml:"log"`
}

// AWSConfig holds AWS provider settings.
type AWSConfig struct {
	Region   string   `toml:"region"`
	Profile  string   `toml:"profile"`
	Families []string `toml:"families"`
}

// SlackConfig holds notification settings.
type SlackConfig struct {
	WebhookURL   string `toml:"webhook_url"`
	Channel      string `toml:"channel"`
	Username     string `toml:"username"`
	ReportUnused bool   `toml:"report_unused"`
	DryRun       bool   `toml:"-"` // Print the payload instead of posting; webhook not required
}

// FilterConfig holds the exclusion settings.
type FilterConfig struct {
	ExcludePattern string `toml:"exclude_pattern"`
}

// OTELConfig holds OpenTelemetry settings.
type OTELConfig struct {
	Endpoint    string        `toml:"endpoint"`
	Insecure    bool          `toml:"insecure"`
	ServiceName string        `toml:"service_name"`
	Traces      TracesConfig  `toml:"traces"`
	Metrics     MetricsConfig `toml:"metrics"`
}

// TracesConfig holds tracing settings.
type TracesConfig struct {
	Enabled    bool    `toml:"enabled"`
	SampleRate float64 `toml:"sample_rate"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// ScheduleConfig holds daemon settings.
type ScheduleConfig struct {
	IntervalStr string `toml:"interval"`
	Interval    time.Duration
	MetricsAddr string `toml:"metrics_addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns a configuration with defaults applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	_ = parseInterval(cfg)
	return cfg
}

// Load reads and parses a TOML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := parseInterval(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromEnv overrides fields with any RICHECKER_* variables that are set.
func (c *Config) FromEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv(EnvWebhookURL); v != "" {
		c.Slack.WebhookURL = v
	}
	if v := getenv(EnvRegion); v != "" {
		c.AWS.Region = v
	}
	if v := getenv(EnvChannel); v != "" {
		c.Slack.Channel = v
	}
	if v := getenv(EnvExcludePattern); v != "" {
		c.Filter.ExcludePattern = v
	}
	if v := getenv(EnvFamilies); v != "" {
		c.AWS.Families = SplitList(v)
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = DefaultRegion
	}
	if cfg.Slack.Username == "" {
		cfg.Slack.Username = DefaultUsername
	}
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = "richeck"
	}
	if cfg.Schedule.IntervalStr == "" {
		cfg.Schedule.IntervalStr = "24h"
	}
	if cfg.Schedule.MetricsAddr == "" {
		cfg.Schedule.MetricsAddr = ":9090"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func parseInterval(cfg *Config) error {
	d, err := time.ParseDuration(cfg.Schedule.IntervalStr)
	if err != nil {
		return fmt.Errorf("parse interval %q: %w", cfg.Schedule.IntervalStr, err)
	}
	cfg.Schedule.Interval = d
	return nil
}

// Validate checks the configuration is valid.
func (c *Config) Validate() error {
	if c.Slack.WebhookURL == "" && !c.Slack.DryRun {
		return fmt.Errorf("slack: webhook url is not set, please check your environment variable %s", EnvWebhookURL)
	}
	if c.AWS.Region == "" {
		return fmt.Errorf("aws: region required")
	}
	for _, f := range c.AWS.Families {
		if !reservation.Family(f).Valid() {
			return fmt.Errorf("aws: unknown family %q", f)
		}
	}
	if c.Filter.ExcludePattern != "" {
		if _, err := regexp.Compile(c.Filter.ExcludePattern); err != nil {
			return fmt.Errorf("filter: invalid exclude_pattern: %w", err)
		}
	}
	if c.OTEL.Traces.SampleRate < 0.0 || c.OTEL.Traces.SampleRate > 1.0 {
		return fmt.Errorf("otel: traces.sample_rate must be between 0.0 and 1.0 (got %v)", c.OTEL.Traces.SampleRate)
	}
	if c.Schedule.Interval < 0 {
		return fmt.Errorf("schedule: interval must not be negative (got %s)", c.Schedule.Interval)
	}
	return nil
}

// FamilyList returns the configured families as typed values.
func (c *Config) FamilyList() []reservation.Family {
	families := make([]reservation.Family, 0, len(c.AWS.Families))
	for _, f := range c.AWS.Families {
		families = append(families, reservation.Family(f))
	}
	return families
}

// SplitList splits a comma separated list, trimming blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

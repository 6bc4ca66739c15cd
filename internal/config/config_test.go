package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/richeck/pkg/reservation"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
[aws]
region = "ap-northeast-1"
profile = "billing"
families = ["ec2", "rds"]

[slack]
webhook_url = "https://hooks.slack.com/services/T000/B000/XXX"
channel = "#finops"
report_unused = true

[filter]
exclude_pattern = "^(batch|tmp)-"

[otel]
endpoint = "localhost:4317"
insecure = true

[otel.traces]
enabled = true
sample_rate = 0.5

[otel.metrics]
enabled = true

[schedule]
interval = "6h"
metrics_addr = ":2112"

[log]
level = "debug"
`
	path := writeTempConfig(t, content)
	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "ap-northeast-1", cfg.AWS.Region)
	assert.Equal(t, "billing", cfg.AWS.Profile)
	assert.Equal(t, []string{"ec2", "rds"}, cfg.AWS.Families)
	assert.Equal(t, "https://hooks.slack.com/services/T000/B000/XXX", cfg.Slack.WebhookURL)
	assert.Equal(t, "#finops", cfg.Slack.Channel)
	assert.Equal(t, DefaultUsername, cfg.Slack.Username)
	assert.True(t, cfg.Slack.ReportUnused)
	assert.Equal(t, "^(batch|tmp)-", cfg.Filter.ExcludePattern)
	assert.Equal(t, "localhost:4317", cfg.OTEL.Endpoint)
	assert.True(t, cfg.OTEL.Insecure)
	assert.Equal(t, "richeck", cfg.OTEL.ServiceName)
	assert.True(t, cfg.OTEL.Traces.Enabled)
	assert.Equal(t, 0.5, cfg.OTEL.Traces.SampleRate)
	assert.True(t, cfg.OTEL.Metrics.Enabled)
	assert.Equal(t, 6*time.Hour, cfg.Schedule.Interval)
	assert.Equal(t, ":2112", cfg.Schedule.MetricsAddr)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	path := writeTempConfig(t, `
[slack]
webhook_url = "http://webhook/url"
`)
	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, DefaultRegion, cfg.AWS.Region)
	assert.Equal(t, DefaultUsername, cfg.Slack.Username)
	assert.Equal(t, "richeck", cfg.OTEL.ServiceName)
	assert.Equal(t, 24*time.Hour, cfg.Schedule.Interval)
	assert.Equal(t, ":9090", cfg.Schedule.MetricsAddr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.AWS.Families)
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultRegion, cfg.AWS.Region)
	assert.Equal(t, 24*time.Hour, cfg.Schedule.Interval)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	require.Error(t, err)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeTempConfig(t, `
[aws
region = 1
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeTempConfig(t, `
[schedule]
interval = "not-a-duration"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse interval")
}

func TestFromEnv(t *testing.T) {
	env := map[string]string{
		EnvWebhookURL:     "http://webhook/url",
		EnvRegion:         "eu-west-1",
		EnvChannel:        "#my-channel",
		EnvExcludePattern: "(instance-a)",
		EnvFamilies:       "ec2, elasticache,",
		EnvLogLevel:       "warn",
	}
	cfg := Default()
	cfg.FromEnv(func(k string) string { return env[k] })

	assert.Equal(t, "http://webhook/url", cfg.Slack.WebhookURL)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, "#my-channel", cfg.Slack.Channel)
	assert.Equal(t, "(instance-a)", cfg.Filter.ExcludePattern)
	assert.Equal(t, []string{"ec2", "elasticache"}, cfg.AWS.Families)
	assert.Equal(t, []reservation.Family{reservation.Compute, reservation.Cache}, cfg.FamilyList())
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestFromEnv_UnsetKeepsFileValues(t *testing.T) {
	cfg := Default()
	cfg.AWS.Region = "ap-northeast-1"
	cfg.Slack.Channel = "#from-file"

	cfg.FromEnv(func(string) string { return "" })

	assert.Equal(t, "ap-northeast-1", cfg.AWS.Region)
	assert.Equal(t, "#from-file", cfg.Slack.Channel)
}

func TestFromEnv_ProcessEnvironment(t *testing.T) {
	t.Setenv(EnvWebhookURL, "http://from-process/env")

	cfg := Default()
	cfg.FromEnv(nil)

	assert.Equal(t, "http://from-process/env", cfg.Slack.WebhookURL)
}

func TestConfig_Validate_MissingWebhook(t *testing.T) {
	cfg := Default()

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvWebhookURL)
}

func TestConfig_Validate_DryRunWithoutWebhook(t *testing.T) {
	cfg := Default()
	cfg.Slack.DryRun = true

	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate_UnknownFamily(t *testing.T) {
	cfg := Default()
	cfg.Slack.WebhookURL = "http://webhook/url"
	cfg.AWS.Families = []string{"ec2", "dynamodb"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dynamodb")
}

func TestConfig_Validate_InvalidPattern(t *testing.T) {
	cfg := Default()
	cfg.Slack.WebhookURL = "http://webhook/url"
	cfg.Filter.ExcludePattern = "(unclosed"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exclude_pattern")
}

func TestConfig_Validate_SampleRate(t *testing.T) {
	cfg := Default()
	cfg.Slack.WebhookURL = "http://webhook/url"
	cfg.OTEL.Traces.SampleRate = 1.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample_rate")
}

func TestConfig_Validate_Valid(t *testing.T) {
	cfg := Default()
	cfg.Slack.WebhookURL = "http://webhook/url"
	cfg.AWS.Families = []string{"ec2", "rds", "elasticache", "redshift"}

	require.NoError(t, cfg.Validate())
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitList(" a ,, b "))
	assert.Empty(t, SplitList(""))
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := os.WriteFile(path, []byte(content), 0644)
	require.NoError(t, err)
	return path
}

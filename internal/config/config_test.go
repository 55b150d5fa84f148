package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "8080"
database:
  host: localhost
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, int64(12600), cfg.Billing.UsdToUzs)
	require.Equal(t, 7, cfg.Billing.GraceDays)
	require.Equal(t, 14, cfg.Billing.BlockDays)
	require.InDelta(t, 0.04, cfg.Billing.DefaultRevenueShare, 0.0001)
	require.Equal(t, int64(499), cfg.Billing.DefaultMonthlyFeeUsd)
	require.Equal(t, 2500, cfg.AI.MaxTokens)
	require.Equal(t, 60, cfg.AI.RateLimitPerHour)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
billing:
  usd_to_uzs: 13000
  grace_days: 10
  default_revenue_share: 0.05
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, int64(13000), cfg.Billing.UsdToUzs)
	require.Equal(t, 10, cfg.Billing.GraceDays)
	require.InDelta(t, 0.05, cfg.Billing.DefaultRevenueShare, 0.0001)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "8080"
`)

	t.Setenv("PORT", "9090")
	t.Setenv("AI_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, "sk-test", cfg.AI.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

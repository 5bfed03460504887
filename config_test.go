package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
}

func TestLoadConfigLayers(t *testing.T) {
	t.Setenv("STORE", "redis")
	t.Setenv("ADDR", ":9000")
	t.Setenv("LOG_DEBUG", "true")

	path := writeConfig(t, `{"addr": ":9100", "prune_schedule": "@daily"}`)
	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Store, "env over defaults")
	assert.Equal(t, ":9100", cfg.Addr, "file over env")
	assert.Equal(t, "@daily", cfg.PruneSchedule)
	assert.True(t, cfg.LogDebug)
	assert.Equal(t, "24h", cfg.FinishedRetention, "default kept")
}

func TestLoadConfigBadEnv(t *testing.T) {
	t.Setenv("DEV", "not-a-bool")
	_, err := loadConfig("")
	assert.Error(t, err)
}

func TestLoadConfigIgnoresBrokenFile(t *testing.T) {
	path := writeConfig(t, `{"addr": `)
	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
}

func TestFlagsOverrideOnlyWhenSet(t *testing.T) {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fv := registerFlags(fs)
	require.NoError(t, fs.Parse([]string{"--addr", ":7000", "--dev", "--prune-schedule", ""}))

	cfg := defaultConfig()
	cfg.Store = "redis"
	fv.applyTo(&cfg)

	assert.Equal(t, ":7000", cfg.Addr)
	assert.True(t, cfg.Dev)
	assert.Empty(t, cfg.PruneSchedule, "an explicit empty value disables pruning")
	assert.Equal(t, "redis", cfg.Store, "unset flags leave the config alone")
	assert.Equal(t, "config.json", *fv.configPath)
}

func TestToLogConfig(t *testing.T) {
	cfg := AppConfig{LogOutputDir: "logs", LogRequests: true, LogDB: true, LogDebug: true}
	assert.Equal(t, LogConfig{OutputDir: "logs", LogRequests: true, LogDB: true, Debug: true}, cfg.toLogConfig())
}

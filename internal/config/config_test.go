package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "leads.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://google.serper.dev", cfg.Serper.BaseURL)
	assert.Equal(t, 15, cfg.Serper.TimeoutSecs)
	assert.Equal(t, 24, cfg.Serper.CacheTTLHours)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.HaikuModel)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.SonnetModel)
	assert.Equal(t, int64(3000), cfg.Anthropic.MaxTokens)
	assert.Equal(t, 3, cfg.Assess.ResultsPerFactor)
	assert.Equal(t, "empty_search", cfg.Assess.EstimatePolicy)
	assert.Equal(t, 10, cfg.Assess.BatchSize)
	assert.Equal(t, 10, cfg.Generate.ResultsPerQuery)
	assert.Equal(t, 5, cfg.Generate.MaxConcurrent)
	assert.InDelta(t, 2.0, cfg.Generate.RequestsPerSecond, 0.001)
	assert.Equal(t, int64(512*1024), cfg.Generate.MaxPageBytes)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/leads
log:
  level: debug
  format: console
server:
  port: 9090
assess:
  results_per_factor: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Assess.ResultsPerFactor)
	// Defaults still apply for unset values
	assert.Equal(t, "empty_search", cfg.Assess.EstimatePolicy)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("LEADSCORE_STORE_DRIVER", "sqlite")
	t.Setenv("LEADSCORE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("LEADSCORE_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.Path = "leads.db"
	cfg.Assess.ResultsPerFactor = 3
	cfg.Assess.EstimatePolicy = "empty_search"
	cfg.Generate.MaxConcurrent = 5
	cfg.Generate.RequestsPerSecond = 2
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateAssess_AllPresent(t *testing.T) {
	cfg := validDefaults()
	cfg.Serper.Key = "serper-key"
	cfg.Anthropic.Key = "sk-ant-key"

	assert.NoError(t, cfg.Validate("assess"))
}

func TestValidateAssess_MissingKeys(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("assess")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "serper.key is required")
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestValidateAssess_BadEstimatePolicy(t *testing.T) {
	cfg := validDefaults()
	cfg.Serper.Key = "k"
	cfg.Anthropic.Key = "k"
	cfg.Assess.EstimatePolicy = "sometimes"

	err := cfg.Validate("assess")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "estimate_policy")
}

func TestValidateAssess_ResultsPerFactorBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Serper.Key = "k"
	cfg.Anthropic.Key = "k"

	cfg.Assess.ResultsPerFactor = 0
	err := cfg.Validate("assess")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "results_per_factor must be between 1 and 10")

	cfg.Assess.ResultsPerFactor = 11
	err = cfg.Validate("assess")
	assert.Error(t, err)

	cfg.Assess.ResultsPerFactor = 10
	assert.NoError(t, cfg.Validate("assess"))
}

func TestValidatePostgres_NoURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateServe_ValidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Serper.Key = "serper-key"
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Server.Port = 9090

	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateServe_MissingKeys(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "serper.key is required")
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateGenerateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Serper.Key = "k"
	cfg.Anthropic.Key = "k"

	cfg.Generate.MaxConcurrent = 0
	err := cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrent must be between 1 and 50")

	cfg.Generate.MaxConcurrent = 51
	err = cfg.Validate("generate")
	assert.Error(t, err)

	cfg.Generate.MaxConcurrent = 50
	assert.NoError(t, cfg.Validate("generate"))
}

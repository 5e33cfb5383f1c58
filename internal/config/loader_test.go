package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
llm:
  default_model: primary
  fallback_chain: [primary, backup]
  models:
    primary:
      provider: openai
      api_key: ${TEST_PRIMARY_KEY:sk-default}
    backup:
      provider: ollama
      enabled: false
  agents:
    writing:
      model: backup
      temperature: 0.7
`

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoadFrom_AppliesDefaultsAndExpandsEnv(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", testConfig)
	t.Setenv("APP_ENV", "unit")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "scholar-ai-api", cfg.App.Name)
	assert.Equal(t, "primary", cfg.LLM.DefaultModel)
	assert.Equal(t, []string{"primary", "backup"}, cfg.LLM.FallbackChain)
	assert.Equal(t, "sk-default", cfg.LLM.Models["primary"].APIKey)
	assert.True(t, cfg.LLM.Models["primary"].IsEnabled())
	assert.False(t, cfg.LLM.Models["backup"].IsEnabled())

	require.NotNil(t, cfg.LLM.Agents["writing"].Temperature)
	assert.InDelta(t, 0.7, *cfg.LLM.Agents["writing"].Temperature, 1e-9)

	assert.Equal(t, 3, cfg.LLM.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.LLM.Retry.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.LLM.Retry.MaxDelay)
	assert.InDelta(t, 0.25, cfg.LLM.Retry.Jitter, 1e-9)
	assert.Equal(t, 10*time.Minute, cfg.Workflow.RunTimeout)
	assert.Equal(t, 200, cfg.Workflow.HistoryLimit)
}

func TestLoadFrom_EnvFileOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", testConfig)
	writeConfig(t, dir, "config.staging.yaml", "workflow:\n  run_timeout: 2m\n")
	t.Setenv("APP_ENV", "staging")
	t.Setenv("TEST_PRIMARY_KEY", "sk-from-env")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.Workflow.RunTimeout)
	assert.Equal(t, "sk-from-env", cfg.LLM.Models["primary"].APIKey)
}

func TestLoadFrom_MissingBaseFile(t *testing.T) {
	_, err := LoadFrom(t.TempDir())
	require.Error(t, err)
}

func TestLoadFrom_RejectsUnknownFallback(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `
llm:
  default_model: primary
  fallback_chain: [primary, ghost]
  models:
    primary:
      provider: openai
`)
	t.Setenv("APP_ENV", "unit")

	_, err := LoadFrom(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"ghost"`)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{LLM: LLMConfig{
			DefaultModel:  "a",
			FallbackChain: []string{"a"},
			Models:        map[string]ModelConfig{"a": {Provider: "openai"}},
			Retry:         RetryConfig{MaxAttempts: 3, Jitter: 0.25},
		}}
	}

	assert.NoError(t, base().Validate())

	cfg := base()
	cfg.LLM.DefaultModel = "missing"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.LLM.Agents = map[string]AgentModelConfig{"review": {Model: "missing"}}
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.LLM.Retry.MaxAttempts = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.LLM.Models["b"] = ModelConfig{}
	assert.Error(t, cfg.Validate())
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("EXPAND_SET", "value")

	assert.Equal(t, "value", expandEnv("${EXPAND_SET}"))
	assert.Equal(t, "value", expandEnv("${EXPAND_SET:other}"))
	assert.Equal(t, "fallback", expandEnv("${EXPAND_UNSET_X:fallback}"))
	assert.Equal(t, "", expandEnv("${EXPAND_UNSET_X:}"))
	assert.Equal(t, "${EXPAND_UNSET_X}", expandEnv("${EXPAND_UNSET_X}"))
}

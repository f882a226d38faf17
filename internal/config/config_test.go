package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.Negotiation.TopK)
	assert.Equal(t, 0.2, cfg.Negotiation.MinScore)
	assert.Equal(t, 5, cfg.Negotiation.MaxIterations)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm:
  provider: anthropic
  model: claude-sonnet-4-20250514
negotiation:
  top_k: 5
  min_score: 0.3
server:
  addr: ":9090"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, 5, cfg.Negotiation.TopK)
	assert.Equal(t, 0.3, cfg.Negotiation.MinScore)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	// Untouched sections keep defaults.
	assert.Equal(t, "catalog", cfg.Catalog.Dir)
}

func TestLoad_EnvOverridesAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("INTENT_CATALOG_DIR", "/srv/catalog")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "/srv/catalog", cfg.Catalog.Dir)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.Error(t, cfg.Validate(), "missing API key must fail validation")

	cfg.LLM.APIKey = "sk-test"
	require.NoError(t, cfg.Validate())

	cfg.LLM.Provider = "gemini"
	require.Error(t, cfg.Validate(), "unsupported provider must fail validation")

	cfg.LLM.Provider = "openai"
	cfg.Negotiation.TopK = 0
	require.Error(t, cfg.Validate())
}

func TestGetLLMTimeout(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "120s", cfg.LLM.Timeout)
	assert.Equal(t, float64(120), cfg.GetLLMTimeout().Seconds())

	cfg.LLM.Timeout = "bogus"
	assert.Equal(t, float64(120), cfg.GetLLMTimeout().Seconds())
}

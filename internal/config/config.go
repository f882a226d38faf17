// Package config loads the service configuration from YAML with environment
// variable overrides for credentials and paths.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bendoumahosni/intent-interpretation/internal/embedding"
)

// Config holds all intent-interpretation configuration.
type Config struct {
	// LLM configures the NLU collaborator.
	LLM LLMConfig `yaml:"llm"`

	// Embedding configures the embedding engine.
	Embedding embedding.Config `yaml:"embedding"`

	// Catalog configures the catalog store.
	Catalog CatalogConfig `yaml:"catalog"`

	// Index configures the semantic index.
	Index IndexConfig `yaml:"index"`

	// Negotiation configures the candidate assembly and iteration policy.
	Negotiation NegotiationConfig `yaml:"negotiation"`

	// Server configures the HTTP API.
	Server ServerConfig `yaml:"server"`

	// Logging configures category file logging.
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the LLM collaborator.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, anthropic
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// CatalogConfig configures the catalog store.
type CatalogConfig struct {
	// Dir holds the TMF633 JSON records.
	Dir string `yaml:"dir"`

	// Watch enables automatic re-ingestion when records change.
	Watch bool `yaml:"watch"`
}

// IndexConfig configures the semantic index.
type IndexConfig struct {
	// Path of the sqlite database file.
	Path string `yaml:"path"`
}

// NegotiationConfig configures candidate assembly and the iteration ceiling.
type NegotiationConfig struct {
	TopK          int     `yaml:"top_k"`
	MinScore      float64 `yaml:"min_score"`
	MaxIterations int     `yaml:"max_iterations"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures category file logging.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	Level   string `yaml:"level"` // debug, info, warn, error
	JSON    bool   `yaml:"json"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o",
			Timeout:  "120s",
		},
		Embedding: embedding.DefaultConfig(),
		Catalog: CatalogConfig{
			Dir:   "catalog",
			Watch: true,
		},
		Index: IndexConfig{
			Path: "intent-index.db",
		},
		Negotiation: NegotiationConfig{
			TopK:          3,
			MinScore:      0.2,
			MaxIterations: 5,
		},
		Server: ServerConfig{
			Addr: ":8000",
		},
		Logging: LoggingConfig{
			Enabled: true,
			Dir:     "logs",
			Level:   "info",
			JSON:    false,
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults;
// environment variables override credentials and paths either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "openai"
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "anthropic"
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Embedding.GenAIAPIKey = key
	}
	if dir := os.Getenv("INTENT_CATALOG_DIR"); dir != "" {
		c.Catalog.Dir = dir
	}
	if path := os.Getenv("INTENT_INDEX_DB"); path != "" {
		c.Index.Path = path
	}
	if addr := os.Getenv("INTENT_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{"openai", "anthropic"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set OPENAI_API_KEY or ANTHROPIC_API_KEY)")
	}

	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}

	if c.Embedding.Provider == "genai" && c.Embedding.GenAIAPIKey == "" {
		return fmt.Errorf("embedding provider genai requires GEMINI_API_KEY")
	}

	if c.Negotiation.TopK <= 0 {
		return fmt.Errorf("negotiation top_k must be positive, got %d", c.Negotiation.TopK)
	}
	if c.Negotiation.MaxIterations <= 0 {
		return fmt.Errorf("negotiation max_iterations must be positive, got %d", c.Negotiation.MaxIterations)
	}

	return nil
}

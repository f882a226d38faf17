package nlu

import (
	"fmt"
	"time"

	"github.com/bendoumahosni/intent-interpretation/internal/logging"
)

// ClientConfig selects and configures an LLM provider.
type ClientConfig struct {
	// Provider: "openai" or "anthropic".
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// NewClient creates an LLMClient for the configured provider.
func NewClient(cfg ClientConfig) (LLMClient, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	logging.NLU("creating LLM client: provider=%s model=%s", cfg.Provider, cfg.Model)

	switch cfg.Provider {
	case "openai":
		oc := DefaultOpenAIConfig(cfg.APIKey)
		if cfg.Model != "" {
			oc.Model = cfg.Model
		}
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		oc.Timeout = cfg.Timeout
		return NewOpenAIClientWithConfig(oc), nil
	case "anthropic":
		ac := DefaultAnthropicConfig(cfg.APIKey)
		if cfg.Model != "" {
			ac.Model = cfg.Model
		}
		if cfg.BaseURL != "" {
			ac.BaseURL = cfg.BaseURL
		}
		ac.Timeout = cfg.Timeout
		return NewAnthropicClientWithConfig(ac), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (use 'openai' or 'anthropic')", cfg.Provider)
	}
}

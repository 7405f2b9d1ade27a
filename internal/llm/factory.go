package llm

import (
	"strings"

	"github.com/ppiankov/exposure/internal/model"
	"github.com/rotisserie/eris"
)

const (
	ollamaBaseURL = "http://localhost:11434/v1"
	// Ollama ignores the key but the client insists on one
	ollamaAPIKey = "ollama"
)

// NewProvider creates a provider from configuration. An empty provider
// name disables summarization and returns nil.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)

	case "ollama":
		if config.BaseURL == "" {
			config.BaseURL = ollamaBaseURL
		}
		if config.APIKey == "" {
			config.APIKey = ollamaAPIKey
		}
		p, err := NewOpenAIProvider(config)
		if err != nil {
			return nil, err
		}
		p.name = "ollama"
		return p, nil

	case "":
		return nil, nil

	default:
		return nil, eris.Errorf("unknown LLM provider: %s (supported: openai, ollama)", config.Provider)
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config. A disabled
// section yields an empty provider.
func ConfigFromModel(cfg model.LLMConfig) Config {
	c := DefaultConfig()
	if !cfg.Enabled {
		return c
	}
	c.Provider = cfg.Provider
	c.Model = cfg.Model
	c.APIKey = cfg.APIKey
	c.BaseURL = cfg.BaseURL
	if cfg.Timeout > 0 {
		c.Timeout = cfg.Timeout
	}
	if cfg.MaxTokens > 0 {
		c.MaxTokens = cfg.MaxTokens
	}
	return c
}

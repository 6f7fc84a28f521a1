package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/citegame/internal/model"
)

// DefaultOllamaURL is the OpenAI-compatible endpoint of a local Ollama
const DefaultOllamaURL = "http://localhost:11434/v1"

// NewProvider creates a new LLM provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai":
		return NewOpenAIProvider(config)

	case "ollama":
		// Ollama speaks the OpenAI chat API and ignores the key
		if config.BaseURL == "" {
			config.BaseURL = DefaultOllamaURL
		}
		if config.APIKey == "" {
			config.APIKey = "ollama"
		}
		p, err := NewOpenAIProvider(config)
		if err != nil {
			return nil, err
		}
		p.name = "ollama"
		return p, nil

	case "":
		// No provider configured - LLM disabled
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, ollama)", config.Provider)
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(modelConfig model.LLMConfig) Config {
	return Config{
		Provider:       modelConfig.Provider,
		Model:          modelConfig.Model,
		APIKey:         modelConfig.APIKey,
		BaseURL:        modelConfig.BaseURL,
		Timeout:        modelConfig.Timeout,
		StrictEvidence: modelConfig.StrictEvidence,
		MaxTokens:      modelConfig.MaxTokens,
	}
}

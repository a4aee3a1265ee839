package aiprovider

import (
	"fmt"

	"github.com/alpinesboltltd/boltz-ai/internal/entity"
)

// ProviderFactory maps each entity.LLMProvider to a client constructor;
// CreateProvider builds one client from an entity.ProviderConfig.
type ProviderFactory struct {
	providers map[entity.LLMProvider]func(string) (LLMProvider, error)
}

func NewProviderFactory() *ProviderFactory {
	return &ProviderFactory{
		providers: map[entity.LLMProvider]func(string) (LLMProvider, error){
			entity.OpenAI: func(apiKey string) (LLMProvider, error) {
				return NewOpenAIClient(apiKey), nil
			},
			entity.Anthropic: func(apiKey string) (LLMProvider, error) {
				return NewAnthropicClient(apiKey), nil
			},
			entity.Google: func(apiKey string) (LLMProvider, error) {
				return NewGoogleAIClient(apiKey)
			},
			entity.Groq: func(apiKey string) (LLMProvider, error) {
				return NewGroqAIClient(apiKey, "https://api.groq.com/openai/v1")
			},
		},
	}
}

func (f *ProviderFactory) CreateProvider(config entity.ProviderConfig) (LLMProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	providerFunc, exists := f.providers[config.Provider]
	if !exists {
		return nil, fmt.Errorf("unsupported provider: %v", config.Provider)
	}

	return providerFunc(config.APIKey)
}

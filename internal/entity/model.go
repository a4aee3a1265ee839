package entity

type LLMProvider int

const (
	OpenAI LLMProvider = iota
	Anthropic
	Google
	Groq
)

type ModelCapabilities struct {
	Text   bool `gorm:"type:boolean;default:false"`
	Voice  bool `gorm:"type:boolean;default:false"`
	Vision bool `gorm:"type:boolean;default:false"`
}

// ProviderConfig names an LLM provider and its API key for
// ProviderFactory.CreateProvider. internal/app builds one provider from a
// single ProviderConfig and every agent in the catalog shares it.
type ProviderConfig struct {
	Provider     LLMProvider
	APIKey       string
	Capabilities ModelCapabilities
}

package entity

// ModelCapabilityMap records what a given underlying model supports, so a
// provider can report accurate ModelCapabilities without hardcoding one
// value per model name.
type ModelCapabilityMap map[string]ModelCapabilities

var DefaultModelCapabilities = ModelCapabilityMap{
	// OpenAI
	"gpt-4o":        {Text: true, Vision: true},
	"gpt-4o-mini":   {Text: true, Vision: true},
	"gpt-4-turbo":   {Text: true, Vision: true},
	"gpt-3.5-turbo": {Text: true},

	// Anthropic
	"claude-3-5-sonnet": {Text: true, Vision: true},
	"claude-3-haiku":    {Text: true, Vision: true},
	"claude-3-opus":     {Text: true, Vision: true},

	// Google
	"gemini-2.0-flash": {Text: true, Vision: true},
	"gemini-1.5-pro":   {Text: true, Vision: true},
	"gemini-1.5-flash": {Text: true, Vision: true},

	// Groq
	"llama-3.3-70b-versatile": {Text: true},
	"llama-3.1-8b-instant":    {Text: true},
	"llama-3.1-70b-versatile": {Text: true},
	"gemma2-9b-it":            {Text: true},
	"mixtral-8x7b-32768":      {Text: true},
}

func (m ModelCapabilityMap) GetCapabilities(model string) ModelCapabilities {
	if caps, exists := m[model]; exists {
		return caps
	}
	return ModelCapabilities{Text: true}
}

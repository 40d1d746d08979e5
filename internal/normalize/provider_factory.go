package normalize

// NewAIProviderFromConfig selects the concrete AI backend by provider name,
// matching the AI_PROVIDER env var values spec.md §6.5 recognizes.
func NewAIProviderFromConfig(providerName, apiKey, modelID, ollamaHost string) aiProvider {
	switch providerName {
	case "anthropic":
		return newAnthropicProvider(apiKey, modelID)
	case "openai":
		return newOpenAIProvider(apiKey, modelID)
	case "ollama":
		return newOllamaProvider(ollamaHost, modelID)
	default:
		return noneProvider{}
	}
}

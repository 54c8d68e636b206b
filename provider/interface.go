// Package provider adapts LLM backends to model.Provider.
//
// Backends and the SDKs behind them:
//
//	ollama      github.com/ollama/ollama/api (through package ollama)
//	openai      github.com/openai/openai-go/v3
//	openrouter  github.com/openai/openai-go/v3, vendor-prefixed model IDs
//	anthropic   github.com/anthropics/anthropic-sdk-go
//
// Every backend streams model.Chunk values holding answer text, reasoning
// text or completed tool calls. Calls a model printed as text instead of
// using the tool interface are recovered from the answer before the stream
// ends.
package provider

// ProviderType selects a backend. Configured provider IDs map onto it
// through MapProviderIDToType.
type ProviderType string

const (
	ProviderTypeOllama     ProviderType = "ollama"
	ProviderTypeOpenAI     ProviderType = "openai"
	ProviderTypeOpenRouter ProviderType = "openrouter"
	ProviderTypeAnthropic  ProviderType = "anthropic"
)

// Config is everything NewProvider needs to build a backend.
type Config struct {
	Type    ProviderType
	BaseURL string
	Model   string
	// APIKey is ignored by Ollama.
	APIKey string
	// ThinkingBudget turns on Anthropic extended thinking when positive.
	ThinkingBudget int64
}

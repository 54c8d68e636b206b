package provider

import (
	"fmt"
	"strings"

	"agentrelay/model"
)

type constructor func(Config) (model.Provider, error)

// provide adapts a typed constructor so a failed call yields a nil
// interface rather than one wrapping a nil pointer.
func provide[P model.Provider](build func(Config) (P, error)) constructor {
	return func(cfg Config) (model.Provider, error) {
		p, err := build(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

var constructors = map[ProviderType]constructor{
	ProviderTypeOllama: provide(func(c Config) (*OllamaProvider, error) {
		return NewOllamaProvider(c.BaseURL, c.Model)
	}),
	ProviderTypeOpenAI: provide(func(c Config) (*OpenAIProvider, error) {
		return NewOpenAIProvider(c.BaseURL, c.APIKey, c.Model)
	}),
	ProviderTypeOpenRouter: provide(func(c Config) (*OpenRouterProvider, error) {
		return NewOpenRouterProvider(c.BaseURL, c.APIKey, c.Model)
	}),
	ProviderTypeAnthropic: provide(func(c Config) (*AnthropicProvider, error) {
		p, err := NewAnthropicProvider(c.BaseURL, c.APIKey, c.Model)
		if err == nil {
			p.SetThinkingBudget(c.ThinkingBudget)
		}
		return p, err
	}),
}

// NewProvider builds the provider named by cfg.Type.
func NewProvider(cfg Config) (model.Provider, error) {
	build, ok := constructors[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
	return build(cfg)
}

// MapProviderIDToType maps a configured provider ID onto its type. IDs name
// their type directly; case and surrounding space are ignored.
func MapProviderIDToType(id string) ProviderType {
	return ProviderType(strings.ToLower(strings.TrimSpace(id)))
}

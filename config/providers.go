package config

import (
	"fmt"
	"os"
	"strings"
)

type knownProvider struct {
	name     string
	baseURL  string
	needsKey bool
}

var knownProviders = map[string]knownProvider{
	"ollama":     {name: "Ollama", baseURL: "http://localhost:11434"},
	"openai":     {name: "OpenAI", baseURL: "https://api.openai.com/v1", needsKey: true},
	"openrouter": {name: "OpenRouter", baseURL: "https://openrouter.ai/api/v1", needsKey: true},
	"anthropic":  {name: "Anthropic", baseURL: "https://api.anthropic.com", needsKey: true},
}

// ResolveAPIKey prefers api_key, then the variable named by api_key_env,
// then <ID>_API_KEY (OPENAI_API_KEY for "openai").
func (p ProviderConfig) ResolveAPIKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	env := p.APIKeyEnv
	if env == "" {
		env = strings.ToUpper(p.ID) + "_API_KEY"
	}
	return os.Getenv(env)
}

func (p ProviderConfig) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	if known, ok := knownProviders[p.ID]; ok {
		return known.name
	}
	return p.ID
}

// EffectiveBaseURL is base_url when set, else the provider's public endpoint.
func (p ProviderConfig) EffectiveBaseURL() string {
	if p.BaseURL != "" {
		return p.BaseURL
	}
	return knownProviders[p.ID].baseURL
}

// Validate reports whether a client can be built from this entry.
func (p ProviderConfig) Validate() error {
	known, ok := knownProviders[p.ID]
	if !ok {
		return fmt.Errorf("unknown provider: %s", p.ID)
	}
	if known.needsKey && p.ResolveAPIKey() == "" {
		return fmt.Errorf("provider %s: missing API key", p.ID)
	}
	return nil
}

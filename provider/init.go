package provider

import (
	"agentrelay/config"
	"agentrelay/model"
)

// InitializeProviders creates a provider for every enabled entry in the
// configuration, keyed by provider ID. Entries that fail to build (missing
// API key, unknown ID) are logged and skipped so the server can still start
// with the rest.
func InitializeProviders(cfg *config.Config) map[string]model.Provider {
	providers := make(map[string]model.Provider)

	for _, providerCfg := range cfg.Providers {
		if !providerCfg.Enabled {
			continue
		}

		p, err := NewFromConfig(providerCfg)
		if err != nil {
			logger().Warn().Err(err).Str("provider", providerCfg.ID).Str("name", providerCfg.DisplayName()).Msg("failed to initialize provider")
			continue
		}

		providers[providerCfg.ID] = p
		logger().Debug().Str("provider", providerCfg.ID).Str("name", providerCfg.DisplayName()).Str("model", p.GetModel()).Msg("initialized provider")
	}

	return providers
}

// NewFromConfig builds the provider described by one configuration entry.
func NewFromConfig(pc config.ProviderConfig) (model.Provider, error) {
	return NewProvider(Config{
		Type:           MapProviderIDToType(pc.ID),
		BaseURL:        pc.EffectiveBaseURL(),
		APIKey:         pc.ResolveAPIKey(),
		Model:          pc.Model,
		ThinkingBudget: pc.ThinkingBudget,
	})
}

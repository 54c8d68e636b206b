package provider

import (
	"context"
	"fmt"
	"strings"

	"agentrelay/model"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go/v3/option"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	openRouterModel   = "meta-llama/llama-3.2-90b-instruct"

	// Attribution headers shown on the OpenRouter dashboard.
	openRouterReferer = "https://github.com/agentrelay/agentrelay"
	openRouterTitle   = "agentrelay"
)

// OpenRouterProvider talks to OpenRouter's OpenAI-compatible endpoint. Model
// IDs carry a vendor prefix ("qwen/qwen3-coder:free") which is kept for API
// calls and dropped for display.
type OpenRouterProvider struct {
	*OpenAIProvider
}

// NewOpenRouterProvider builds an OpenRouter provider. An empty baseURL or
// model falls back to the public endpoint and a default Llama model.
func NewOpenRouterProvider(baseURL, apiKey, modelName string, opts ...option.RequestOption) (*OpenRouterProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenRouter API key is required")
	}
	if baseURL == "" {
		baseURL = openRouterBaseURL
	}
	if modelName == "" {
		modelName = openRouterModel
	}

	headers := []option.RequestOption{
		option.WithHeader("HTTP-Referer", openRouterReferer),
		option.WithHeader("X-Title", openRouterTitle),
	}
	inner, err := NewOpenAIProvider(baseURL, apiKey, modelName, append(headers, opts...)...)
	if err != nil {
		return nil, err
	}
	return &OpenRouterProvider{OpenAIProvider: inner}, nil
}

func (p *OpenRouterProvider) Chat(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
	return p.ChatWithTools(ctx, messages, nil, model.ChatOptions{}, callback)
}

func (p *OpenRouterProvider) ChatWithTools(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.ChatOptions, callback model.StreamCallback) error {
	if len(tools) > 0 {
		logger().Debug().
			Str("model", p.model).
			Bool("native", skipToolInstructions(p.model)).
			Int("tools", len(tools)).
			Msg("openrouter request with tools")
	}

	params := buildCompletionParams(p.model, withToolInstructions(p.model, messages, tools), tools, opts)
	if err := streamCompletion(ctx, p.client, params, len(tools) > 0, callback); err != nil {
		return fmt.Errorf("OpenRouter streaming error: %w", err)
	}
	return nil
}

// ListModels keeps the full ID as InternalName and strips the vendor for Name.
func (p *OpenRouterProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list OpenRouter models: %w", err)
	}

	out := make([]model.ModelInfo, len(page.Data))
	for i, m := range page.Data {
		out[i] = model.ModelInfo{
			Name:         stripProviderPrefix(m.ID),
			InternalName: m.ID,
			Provider:     string(ProviderTypeOpenRouter),
		}
	}
	return out, nil
}

func (p *OpenRouterProvider) GetDisplayName() string {
	return stripProviderPrefix(p.model)
}

func (p *OpenRouterProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return fmt.Errorf("OpenRouter ping failed: %w", err)
	}
	return nil
}

// "meta-llama/llama-3.2-90b-instruct" -> "llama-3.2-90b-instruct"
func stripProviderPrefix(modelName string) string {
	if _, rest, ok := strings.Cut(modelName, "/"); ok {
		return rest
	}
	return modelName
}

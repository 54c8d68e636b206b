package provider

import (
	"context"
	"fmt"
	"strings"

	"agentrelay/model"
	"agentrelay/ollama"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// OllamaProvider adapts ollama.Client to model.Provider.
//
// Ollama reports tool calls without ids and with arguments already decoded,
// so calls are given generated ids and their arguments re-encoded as JSON.
// Models outside the families known to accept the tools field get the tools
// described in a system prompt and their replies parsed for calls.
type OllamaProvider struct {
	client *ollama.Client
}

// NewOllamaProvider creates an Ollama provider. Empty arguments select
// ollama.DefaultBaseURL and ollama.DefaultModel.
func NewOllamaProvider(baseURL, modelName string) (*OllamaProvider, error) {
	client, err := ollama.NewClient(baseURL, modelName, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}
	return &OllamaProvider{client: client}, nil
}

func (p *OllamaProvider) Chat(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
	return p.ChatWithTools(ctx, messages, nil, model.ChatOptions{}, callback)
}

// ChatWithTools implements model.Provider. Ollama has no tool_choice, so
// "none" is honoured by not offering tools.
func (p *OllamaProvider) ChatWithTools(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.ChatOptions, callback model.StreamCallback) error {
	if opts.ToolChoice == model.ToolChoiceNone {
		tools = nil
	}

	modelName := p.client.Model()
	req := ollama.ChatRequest{Temperature: opts.Temperature}
	if ollama.SupportsNativeTools(modelName) {
		req.Messages = ConvertToOllamaMessages(withToolInstructions(modelName, messages, tools))
		req.Tools = ConvertToolsToOllama(tools)
	} else {
		if len(tools) > 0 {
			logger().Debug().Str("model", modelName).Msg("model lacks native tool support, describing tools in the prompt")
		}
		req.Messages = ConvertToOllamaMessages(withTextToolInstructions(messages, tools))
	}

	var structured bool
	var content strings.Builder

	err := p.client.Chat(ctx, req, func(f ollama.Fragment) error {
		content.WriteString(f.Content)
		if len(f.ToolCalls) > 0 {
			structured = true
		}
		if callback == nil {
			return nil
		}
		chunk := model.Chunk{
			Content:   f.Content,
			Reasoning: f.Thinking,
			ToolCalls: ConvertFromOllamaToolCalls(f.ToolCalls),
		}
		if chunk.Content == "" && chunk.Reasoning == "" && len(chunk.ToolCalls) == 0 {
			return nil
		}
		return callback(chunk)
	})
	if err != nil {
		return fmt.Errorf("Ollama streaming error: %w", err)
	}

	if !structured && len(tools) > 0 && callback != nil {
		if leaked := leakedToolCalls(content.String()); len(leaked) > 0 {
			logger().Debug().Str("model", modelName).Int("calls", len(leaked)).Msg("recovered leaked tool calls")
			return callback(model.Chunk{ToolCalls: leaked})
		}
	}
	return nil
}

func (p *OllamaProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return p.client.ListModels(ctx)
}

func (p *OllamaProvider) GetModel() string {
	return p.client.Model()
}

// GetDisplayName implements model.Provider. Ollama model names have no
// vendor prefix.
func (p *OllamaProvider) GetDisplayName() string {
	return p.client.Model()
}

func (p *OllamaProvider) SetModel(modelName string) {
	p.client.SetModel(modelName)
}

func (p *OllamaProvider) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx); err != nil {
		return fmt.Errorf("Ollama ping failed: %w", err)
	}
	return nil
}

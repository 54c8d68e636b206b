package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"agentrelay/model"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIProvider implements the Provider interface using OpenAI's official API.
type OpenAIProvider struct {
	client  openai.Client
	model   string
	baseURL string
	apiKey  string
}

// NewOpenAIProvider creates a new OpenAI provider instance.
//
// Parameters:
//   - baseURL: OpenAI API base URL (default: "https://api.openai.com/v1")
//   - apiKey: OpenAI API key (required)
//   - model: Initial model to use (default: "gpt-4o-mini")
//
// Returns an error if the API key is missing.
func NewOpenAIProvider(baseURL, apiKey, model string, opts ...option.RequestOption) (*OpenAIProvider, error) {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	client := openai.NewClient(append([]option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	}, opts...)...)

	return &OpenAIProvider{
		client:  client,
		model:   model,
		baseURL: baseURL,
		apiKey:  apiKey,
	}, nil
}

// Chat implements Provider.Chat by delegating to ChatWithTools with no tools.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
	return p.ChatWithTools(ctx, messages, nil, model.ChatOptions{}, callback)
}

// ChatWithTools implements Provider.ChatWithTools with streaming support.
func (p *OpenAIProvider) ChatWithTools(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.ChatOptions, callback model.StreamCallback) error {
	params := buildCompletionParams(p.model, withToolInstructions(p.model, messages, tools), tools, opts)
	if err := streamCompletion(ctx, p.client, params, len(tools) > 0, callback); err != nil {
		return fmt.Errorf("OpenAI streaming error: %w", err)
	}
	return nil
}

// ListModels implements Provider.ListModels.
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	modelsPage, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list OpenAI models: %w", err)
	}

	result := make([]model.ModelInfo, 0, len(modelsPage.Data))
	for _, m := range modelsPage.Data {
		result = append(result, model.ModelInfo{
			Name:         m.ID,
			InternalName: m.ID,
			Provider:     "openai",
		})
	}

	return result, nil
}

// GetModel implements Provider.GetModel.
func (p *OpenAIProvider) GetModel() string {
	return p.model
}

// GetDisplayName implements Provider.GetDisplayName.
func (p *OpenAIProvider) GetDisplayName() string {
	return p.model
}

// SetModel implements Provider.SetModel.
func (p *OpenAIProvider) SetModel(model string) {
	p.model = model
}

// Ping implements Provider.Ping by attempting to list models.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return fmt.Errorf("OpenAI ping failed: %w", err)
	}
	return nil
}

func buildCompletionParams(modelName string, messages []model.Message, tools []mcptypes.Tool, opts model.ChatOptions) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages: ConvertToOpenAIMessages(messages),
		Model:    openai.ChatModel(modelName),
	}
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}
	if len(tools) > 0 {
		params.Tools = ConvertToolsToOpenAI(tools)
		switch opts.ToolChoice {
		case model.ToolChoiceAuto, model.ToolChoiceNone, model.ToolChoiceRequired:
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
				OfAuto: openai.String(opts.ToolChoice),
			}
		case "":
		default:
			logger().Warn().Str("tool_choice", opts.ToolChoice).Msg("ignoring unknown tool choice")
		}
	}
	return params
}

// streamCompletion runs a streaming chat completion and forwards content,
// reasoning and finished tool calls. With tools offered and no structured
// tool call received, the full text is scanned for leaked tool calls.
func streamCompletion(ctx context.Context, client openai.Client, params openai.ChatCompletionNewParams, toolsOffered bool, callback model.StreamCallback) error {
	stream := client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	emit := func(chunk model.Chunk) error {
		if callback == nil {
			return nil
		}
		return callback(chunk)
	}

	var content strings.Builder
	emitted := make(map[int]bool)

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if tool, ok := acc.JustFinishedToolCall(); ok {
			emitted[tool.Index] = true
			call := model.ToolCall{ID: tool.ID, Name: tool.Name, Arguments: tool.Arguments}
			if err := emit(model.Chunk{ToolCalls: []model.ToolCall{call}}); err != nil {
				return err
			}
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		out := model.Chunk{Content: delta.Content, Reasoning: deltaReasoning(delta)}
		if out.Content == "" && out.Reasoning == "" {
			continue
		}
		content.WriteString(out.Content)
		if err := emit(out); err != nil {
			return err
		}
	}

	if err := stream.Err(); err != nil {
		return err
	}

	// A stream that ends without a finish chunk leaves its last tool call
	// unreported by the accumulator.
	if len(acc.Choices) > 0 {
		for i, tool := range acc.Choices[0].Message.ToolCalls {
			if emitted[i] || tool.Function.Name == "" {
				continue
			}
			emitted[i] = true
			call := model.ToolCall{ID: tool.ID, Name: tool.Function.Name, Arguments: tool.Function.Arguments}
			if err := emit(model.Chunk{ToolCalls: []model.ToolCall{call}}); err != nil {
				return err
			}
		}
	}

	if len(emitted) == 0 && toolsOffered {
		if leaked := leakedToolCalls(content.String()); len(leaked) > 0 {
			logger().Debug().Str("model", string(params.Model)).Int("calls", len(leaked)).Msg("recovered leaked tool calls")
			return emit(model.Chunk{ToolCalls: leaked})
		}
	}

	return nil
}

// deltaReasoning extracts reasoning text that OpenAI-compatible servers send
// outside the typed delta: "reasoning_content" (DeepSeek, vLLM) or
// "reasoning" (OpenRouter).
func deltaReasoning(delta openai.ChatCompletionChunkChoiceDelta) string {
	for _, key := range []string{"reasoning_content", "reasoning"} {
		field, ok := delta.JSON.ExtraFields[key]
		if !ok {
			continue
		}
		var text string
		if err := json.Unmarshal([]byte(field.Raw()), &text); err == nil && text != "" {
			return text
		}
	}
	return ""
}

// ConvertToOpenAIMessages converts messages to OpenAI chat messages. Tool
// results become tool messages bound to their call id, and assistant turns
// replay their tool calls.
func ConvertToOpenAIMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, len(messages))

	for i, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result[i] = openai.SystemMessage(msg.Content)
		case model.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				result[i] = openai.AssistantMessage(msg.Content)
				continue
			}
			assistant := &openai.ChatCompletionAssistantMessageParam{
				ToolCalls: make([]openai.ChatCompletionMessageToolCallUnionParam, len(msg.ToolCalls)),
			}
			if msg.Content != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(msg.Content),
				}
			}
			for j, call := range msg.ToolCalls {
				args := call.Arguments
				if args == "" {
					args = "{}"
				}
				assistant.ToolCalls[j] = openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: call.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      call.Name,
							Arguments: args,
						},
					},
				}
			}
			result[i] = openai.ChatCompletionMessageParamUnion{OfAssistant: assistant}
		case model.RoleTool:
			result[i] = openai.ToolMessage(msg.Content, msg.ToolCallID)
		default:
			result[i] = openai.UserMessage(msg.Content)
		}
	}

	return result
}

package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"agentrelay/model"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

const anthropicMaxTokens = 4096

// AnthropicProvider implements the Provider interface using Anthropic's official API.
type AnthropicProvider struct {
	client         *anthropic.Client
	model          anthropic.Model
	baseURL        string
	apiKey         string
	thinkingBudget int64
}

// NewAnthropicProvider creates a new Anthropic provider instance.
//
// Parameters:
//   - baseURL: Anthropic API base URL (default: "https://api.anthropic.com")
//   - apiKey: Anthropic API key (required)
//   - model: Initial model to use (default: "claude-sonnet-4-5-20250929")
//
// Returns an error if the API key is missing.
func NewAnthropicProvider(baseURL, apiKey, model string, opts ...option.RequestOption) (*AnthropicProvider, error) {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	anthropicModel := anthropic.ModelClaudeSonnet4_5_20250929
	if model != "" {
		anthropicModel = anthropic.Model(model)
	}

	client := anthropic.NewClient(append([]option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	}, opts...)...)

	return &AnthropicProvider{
		client:  &client,
		model:   anthropicModel,
		baseURL: baseURL,
		apiKey:  apiKey,
	}, nil
}

// SetThinkingBudget enables extended thinking with the given token budget.
// Zero disables it.
func (p *AnthropicProvider) SetThinkingBudget(budget int64) {
	p.thinkingBudget = budget
}

// Chat implements Provider.Chat by delegating to ChatWithTools with no tools.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
	return p.ChatWithTools(ctx, messages, nil, model.ChatOptions{}, callback)
}

// ChatWithTools implements Provider.ChatWithTools with streaming support.
// Text and thinking deltas are forwarded as they arrive; tool_use blocks are
// reported once the message is complete.
func (p *AnthropicProvider) ChatWithTools(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.ChatOptions, callback model.StreamCallback) error {
	params := p.buildParams(messages, tools, opts)

	stream := p.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	emit := func(chunk model.Chunk) error {
		if callback == nil {
			return nil
		}
		return callback(chunk)
	}

	msg := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			return fmt.Errorf("error accumulating message: %w", err)
		}

		delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		switch d := delta.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			if err := emit(model.Chunk{Content: d.Text}); err != nil {
				return err
			}
		case anthropic.ThinkingDelta:
			if err := emit(model.Chunk{Reasoning: d.Thinking}); err != nil {
				return err
			}
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("Anthropic streaming error: %w", err)
	}

	if toolCalls := extractToolCalls(msg.Content); len(toolCalls) > 0 {
		return emit(model.Chunk{ToolCalls: toolCalls})
	}
	return nil
}

func (p *AnthropicProvider) buildParams(messages []model.Message, tools []mcptypes.Tool, opts model.ChatOptions) anthropic.MessageNewParams {
	anthropicMessages, system := convertToAnthropicMessages(messages)

	// Tool instructions go first, then configured system prompts
	if len(tools) > 0 {
		system = append([]anthropic.TextBlockParam{{Text: toolInstructions(tools)}}, system...)
	}

	params := anthropic.MessageNewParams{
		Model:     p.model,
		Messages:  anthropicMessages,
		MaxTokens: anthropicMaxTokens,
	}
	if len(system) > 0 {
		params.System = system
	}

	if p.thinkingBudget > 0 {
		// Thinking requires the default temperature and a budget below max_tokens.
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(p.thinkingBudget)
		params.MaxTokens = p.thinkingBudget + anthropicMaxTokens
	} else if opts.Temperature != nil {
		params.Temperature = anthropic.Float(*opts.Temperature)
	}

	if len(tools) > 0 {
		params.Tools = ConvertToolsToAnthropic(tools)
		switch opts.ToolChoice {
		case model.ToolChoiceAuto:
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
		case model.ToolChoiceRequired:
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
		case model.ToolChoiceNone:
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfNone: &anthropic.ToolChoiceNoneParam{}}
		}
	}

	return params
}

// ListModels implements Provider.ListModels with a curated list of Claude
// models known to this SDK version.
func (p *AnthropicProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	models := []anthropic.Model{
		anthropic.ModelClaudeSonnet4_5_20250929,
		anthropic.ModelClaudeOpus4_1_20250805,
		anthropic.ModelClaudeHaiku4_5,
		anthropic.ModelClaude3_5Haiku20241022,
	}

	result := make([]model.ModelInfo, 0, len(models))
	for _, m := range models {
		result = append(result, model.ModelInfo{
			Name:         string(m),
			InternalName: string(m),
			Provider:     "anthropic",
		})
	}

	return result, nil
}

// GetModel implements Provider.GetModel.
func (p *AnthropicProvider) GetModel() string {
	return string(p.model)
}

// GetDisplayName implements Provider.GetDisplayName.
func (p *AnthropicProvider) GetDisplayName() string {
	return string(p.model)
}

// SetModel implements Provider.SetModel.
func (p *AnthropicProvider) SetModel(model string) {
	p.model = anthropic.Model(model)
}

// Ping implements Provider.Ping with a minimal one-token request; Anthropic
// has no health endpoint.
func (p *AnthropicProvider) Ping(ctx context.Context) error {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("Anthropic ping failed: %w", err)
	}
	return nil
}

// convertToAnthropicMessages converts messages to Anthropic format and
// returns the system prompt blocks separately. Consecutive tool results are
// grouped into a single user message, as the API expects one user turn to
// answer all tool_use blocks of the preceding assistant turn.
func convertToAnthropicMessages(messages []model.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var systemBlocks []anthropic.TextBlockParam
	result := make([]anthropic.MessageParam, 0, len(messages))

	var toolResults []anthropic.ContentBlockParamUnion
	flushToolResults := func() {
		if len(toolResults) > 0 {
			result = append(result, anthropic.NewUserMessage(toolResults...))
			toolResults = nil
		}
	}

	for _, msg := range messages {
		if msg.Role == model.RoleTool {
			toolResults = append(toolResults, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, isErrorResponse(msg.Content)))
			continue
		}
		flushToolResults()

		switch msg.Role {
		case model.RoleSystem:
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: msg.Content})

		case model.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, ParseToolArguments(call.Arguments), call.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			result = append(result, anthropic.NewAssistantMessage(blocks...))

		default:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	flushToolResults()

	return result, systemBlocks
}

// isErrorResponse reports whether a tool response carries the error status.
func isErrorResponse(content string) bool {
	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return false
	}
	return resp.Status == "error"
}

// extractToolCalls extracts tool_use blocks from accumulated message content.
// The union fields are read directly since the accumulator appends streamed
// input JSON to them.
func extractToolCalls(content []anthropic.ContentBlockUnion) []model.ToolCall {
	var toolCalls []model.ToolCall

	for _, block := range content {
		if block.Type != "tool_use" {
			continue
		}
		args := string(block.Input)
		if args == "" {
			args = "{}"
		}
		toolCalls = append(toolCalls, model.ToolCall{
			ID:        block.ID,
			Name:      block.Name,
			Arguments: args,
		})
	}

	return toolCalls
}

package provider

import (
	"encoding/json"

	"agentrelay/model"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"
)

// ConvertToOllamaMessages converts messages to Ollama api.Message. Assistant
// tool calls carry their arguments as maps; tool results are sent with the
// "tool" role.
func ConvertToOllamaMessages(messages []model.Message) []api.Message {
	result := make([]api.Message, len(messages))
	for i, msg := range messages {
		result[i] = api.Message{
			Role:      msg.Role,
			Content:   msg.Content,
			ToolCalls: ConvertToOllamaToolCalls(msg.ToolCalls),
		}
	}
	return result
}

// ParseToolArguments parses a JSON arguments string into a map. Malformed or
// empty input yields an empty map.
func ParseToolArguments(argsJSON string) map[string]any {
	args := make(map[string]any)
	if argsJSON == "" {
		return args
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return make(map[string]any)
	}
	return args
}

// ConvertFromOllamaToolCalls converts Ollama tool calls to model.ToolCall.
// Ollama does not assign call ids, so one is generated per call.
//
// Returns nil for empty input.
func ConvertFromOllamaToolCalls(calls []api.ToolCall) []model.ToolCall {
	if len(calls) == 0 {
		return nil
	}

	result := make([]model.ToolCall, len(calls))
	for i, call := range calls {
		args, err := json.Marshal(call.Function.Arguments)
		if err != nil || string(args) == "null" {
			args = []byte("{}")
		}
		result[i] = model.ToolCall{
			ID:        "call_" + uuid.NewString(),
			Name:      call.Function.Name,
			Arguments: string(args),
		}
	}
	return result
}

// ConvertToOllamaToolCalls converts model.ToolCall back to Ollama tool calls,
// for replaying assistant turns in the history.
//
// Returns nil for empty input.
func ConvertToOllamaToolCalls(calls []model.ToolCall) []api.ToolCall {
	if len(calls) == 0 {
		return nil
	}

	result := make([]api.ToolCall, len(calls))
	for i, call := range calls {
		var tc api.ToolCall
		tc.Function.Name = call.Name
		if call.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Arguments), &tc.Function.Arguments); err != nil {
				logger().Debug().Err(err).Str("tool", call.Name).Msg("dropping malformed tool arguments from history")
			}
		}
		result[i] = tc
	}
	return result
}

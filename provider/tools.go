package provider

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
)

// schemaMap flattens an MCP input schema into a plain JSON Schema object.
// A missing type defaults to "object" and properties are always present,
// which every provider requires.
func schemaMap(schema mcptypes.ToolInputSchema) map[string]any {
	out := map[string]any{
		"type":       schema.Type,
		"properties": schema.Properties,
	}
	if schema.Type == "" {
		out["type"] = "object"
	}
	if schema.Properties == nil {
		out["properties"] = map[string]any{}
	}
	if len(schema.Required) > 0 {
		out["required"] = schema.Required
	}
	if schema.Defs != nil {
		out["$defs"] = schema.Defs
	}
	return out
}

// ConvertToolsToOllama converts MCP tools to Ollama API tools.
func ConvertToolsToOllama(tools []mcptypes.Tool) []api.Tool {
	if len(tools) == 0 {
		return nil
	}

	result := make([]api.Tool, 0, len(tools))
	for _, tool := range tools {
		result = append(result, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  ollamaParameters(tool.InputSchema),
			},
		})
	}
	return result
}

// ollamaParameters round-trips the schema through JSON so nested property
// shapes (anyOf, items, enum) land in Ollama's typed structs.
func ollamaParameters(schema mcptypes.ToolInputSchema) api.ToolFunctionParameters {
	var params api.ToolFunctionParameters
	data, err := json.Marshal(schemaMap(schema))
	if err != nil {
		return params
	}
	if err := json.Unmarshal(data, &params); err != nil {
		logger().Warn().Err(err).Msg("failed to convert tool schema for ollama")
	}
	return params
}

// ConvertToolsToOpenAI converts MCP tools to the function tools shared by
// OpenAI and OpenRouter.
func ConvertToolsToOpenAI(tools []mcptypes.Tool) []openai.ChatCompletionToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	result := make([]openai.ChatCompletionToolUnionParam, len(tools))
	for i, tool := range tools {
		fn := openai.FunctionDefinitionParam{
			Name:       tool.Name,
			Parameters: openai.FunctionParameters(schemaMap(tool.InputSchema)),
		}
		if tool.Description != "" {
			fn.Description = openai.String(tool.Description)
		}
		result[i] = openai.ChatCompletionFunctionTool(fn)
	}
	return result
}

// ConvertToolsToAnthropic converts MCP tools to Anthropic tool params.
func ConvertToolsToAnthropic(tools []mcptypes.Tool) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	result := make([]anthropic.ToolUnionParam, len(tools))
	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Properties: tool.InputSchema.Properties,
		}
		if len(tool.InputSchema.Required) > 0 {
			inputSchema.Required = tool.InputSchema.Required
		}
		if tool.InputSchema.Defs != nil {
			inputSchema.ExtraFields = map[string]any{
				"$defs": tool.InputSchema.Defs,
			}
		}

		result[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Name)
		if tool.Description != "" {
			result[i].OfTool.Description = anthropic.String(tool.Description)
		}
	}
	return result
}

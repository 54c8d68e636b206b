package provider

import (
	"sort"
	"strings"

	"agentrelay/model"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// toolInstructions builds the system prompt prepended when tools are offered.
// Models with native tool understanding (see skipToolInstructions) get none.
func toolInstructions(tools []mcptypes.Tool) string {
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}

	return strings.Join([]string{
		"TOOLS: " + strings.Join(names, ", "),
		"",
		"When a request needs a tool:",
		"1. Pick the tool",
		"2. Check that you have every required argument",
		"3. If you do, call it right away",
		"4. If not, ask only for the missing argument",
		"",
		"Call tools through the tool interface. Never print a tool call as text.",
	}, "\n")
}

// skipToolInstructions reports whether a model misbehaves when given explicit
// tool instructions. qwen models leak XML tool calls when prompted this way.
func skipToolInstructions(modelName string) bool {
	modelLower := strings.ToLower(modelName)
	for _, marker := range []string{"qwen"} {
		if strings.Contains(modelLower, marker) {
			return true
		}
	}
	return false
}

// withToolInstructions returns messages with the instruction prompt in front
// when tools are present.
func withToolInstructions(modelName string, messages []model.Message, tools []mcptypes.Tool) []model.Message {
	if len(tools) == 0 || skipToolInstructions(modelName) {
		return messages
	}
	instruction := model.Message{Role: model.RoleSystem, Content: toolInstructions(tools)}
	return append([]model.Message{instruction}, messages...)
}

// textToolInstructions describes the tools to a model that cannot receive
// them through the API. The reply format is one the leaked-call parser
// recognises.
func textToolInstructions(tools []mcptypes.Tool) string {
	var b strings.Builder
	b.WriteString("You can call these tools:\n")
	for _, tool := range tools {
		b.WriteString("- " + tool.Name)
		if tool.Description != "" {
			b.WriteString(": " + tool.Description)
		}
		if len(tool.InputSchema.Properties) > 0 {
			names := make([]string, 0, len(tool.InputSchema.Properties))
			for name := range tool.InputSchema.Properties {
				names = append(names, name)
			}
			sort.Strings(names)
			b.WriteString(" (arguments: " + strings.Join(names, ", ") + ")")
		}
		b.WriteString("\n")
	}
	b.WriteString("\nTo call a tool, reply with only this JSON and nothing else:\n")
	b.WriteString(`{"name": "<tool name>", "arguments": {<arguments>}}`)
	b.WriteString("\nOtherwise answer normally.")
	return b.String()
}

// withTextToolInstructions prepends textToolInstructions when tools are
// present.
func withTextToolInstructions(messages []model.Message, tools []mcptypes.Tool) []model.Message {
	if len(tools) == 0 {
		return messages
	}
	instruction := model.Message{Role: model.RoleSystem, Content: textToolInstructions(tools)}
	return append([]model.Message{instruction}, messages...)
}

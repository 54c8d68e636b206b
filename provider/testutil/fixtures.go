package testutil

import (
	"agentrelay/model"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Conversation alternates user and assistant turns, starting with the user.
func Conversation(turns ...string) []model.Message {
	msgs := make([]model.Message, len(turns))
	for i, text := range turns {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		msgs[i] = model.NewMessage(role, text)
	}
	return msgs
}

// Prompt is a conversation holding a single user message.
func Prompt(text string) []model.Message {
	return Conversation(text)
}

// ToolConversation is a user turn, an assistant turn calling get_weather and
// the matching tool response.
func ToolConversation() []model.Message {
	call := model.ToolCall{ID: "call_1", Name: "get_weather", Arguments: `{"location":"Paris"}`}
	assistant := model.NewMessage(model.RoleAssistant, "")
	assistant.ToolCalls = []model.ToolCall{call}
	return append(Prompt("Weather in Paris?"), assistant, model.NewToolResponse(call, "sunny, 21C"))
}

// TestMCPTools is get_weather(location) followed by calculate(expression).
func TestMCPTools() []mcptypes.Tool {
	return []mcptypes.Tool{
		mcptypes.NewTool("get_weather",
			mcptypes.WithDescription("Get the current weather for a location"),
			mcptypes.WithString("location",
				mcptypes.Required(),
				mcptypes.Description("The city and state, e.g. San Francisco, CA"),
			),
		),
		mcptypes.NewTool("calculate",
			mcptypes.WithDescription("Perform a mathematical calculation"),
			mcptypes.WithString("expression",
				mcptypes.Required(),
				mcptypes.Description("The mathematical expression to evaluate"),
			),
		),
	}
}

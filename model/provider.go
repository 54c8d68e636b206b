package model

import (
	"context"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Provider abstracts LLM provider implementations (Ollama, OpenAI, OpenRouter,
// Anthropic) using the provider-agnostic types of this package.
//
// The interface lives in the model package (not provider) to avoid import
// cycles: provider implementations import model, and the agent loop depends on
// Provider without importing the provider package.
type Provider interface {
	// Chat sends messages and streams responses back via callback.
	Chat(ctx context.Context, messages []Message, callback StreamCallback) error

	// ChatWithTools sends messages with available tools and streams responses.
	// Tool calls requested by the model are reported through the callback
	// once their arguments are complete.
	ChatWithTools(ctx context.Context, messages []Message, tools []mcptypes.Tool, opts ChatOptions, callback StreamCallback) error

	// ListModels returns available models for this provider.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// GetModel returns the currently selected model name used for API calls.
	GetModel() string

	// GetDisplayName returns the model name formatted for display.
	// For OpenRouter this strips the vendor prefix.
	GetDisplayName() string

	// SetModel changes the active model.
	SetModel(model string)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}

// ModelInfo describes a model a provider can serve.
type ModelInfo struct {
	// Name is the display name; OpenRouter vendor prefixes are stripped.
	Name string `json:"name"`
	// InternalName is the name sent to the API.
	InternalName string `json:"internal_name"`
	Provider     string `json:"provider"`
	Size         int64  `json:"size,omitempty"`
}

// Chunk is one streamed fragment of a model response. Any combination of
// fields may be set; empty fields carry nothing.
type Chunk struct {
	Content   string
	Reasoning string
	ToolCalls []ToolCall
}

// StreamCallback is called for each chunk of a streamed response.
// Returning an error aborts the stream.
type StreamCallback func(chunk Chunk) error

// ChatOptions carries per-request sampling settings.
type ChatOptions struct {
	// Temperature is left to the provider default when nil.
	Temperature *float64
	// ToolChoice is "auto", "none", "required" or empty for the provider default.
	ToolChoice string
}

// Tool choice values understood by every provider.
const (
	ToolChoiceAuto     = "auto"
	ToolChoiceNone     = "none"
	ToolChoiceRequired = "required"
)

// ValidToolChoice reports whether choice is empty or one of the ToolChoice
// constants.
func ValidToolChoice(choice string) bool {
	switch choice {
	case "", ToolChoiceAuto, ToolChoiceNone, ToolChoiceRequired:
		return true
	}
	return false
}

package stream

import "agentrelay/model"

// ChatPath is the endpoint that accepts a ChatRequest and answers with a
// framed event stream.
const ChatPath = "/api/v1/chat"

// ChatRequest is the body of a chat request.
type ChatRequest struct {
	Model    string          `json:"model,omitempty"`
	Messages []model.Message `json:"messages"`
	// Tools names the registry tools to offer. Empty offers all of them.
	Tools       []string `json:"tools,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Stream      bool     `json:"stream"`
	ToolChoice  string   `json:"tool_choice,omitempty"`
	// SessionID loads stored history first and persists the transcript
	// afterwards.
	SessionID     string `json:"session_id,omitempty"`
	MaxIterations int    `json:"max_iterations,omitempty"`
}

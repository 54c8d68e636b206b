package testutil

import (
	"context"
	"fmt"
	"sync"

	"agentrelay/model"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// MockProvider implements model.Provider with overridable behaviour.
type MockProvider struct {
	ChatFunc          func(ctx context.Context, messages []model.Message, callback model.StreamCallback) error
	ChatWithToolsFunc func(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.ChatOptions, callback model.StreamCallback) error
	ListModelsFunc    func(ctx context.Context) ([]model.ModelInfo, error)
	PingFunc          func(ctx context.Context) error

	currentModel string
}

// NewMockProvider creates a mock provider with default implementations.
func NewMockProvider(modelName string) *MockProvider {
	mock := &MockProvider{
		currentModel: modelName,
	}
	mock.ChatFunc = mock.defaultChat
	mock.ChatWithToolsFunc = mock.defaultChatWithTools
	mock.ListModelsFunc = mock.defaultListModels
	mock.PingFunc = mock.defaultPing
	return mock
}

func (m *MockProvider) defaultChat(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
	if len(messages) > 0 {
		return callback(model.Chunk{Content: "Mock response"})
	}
	return nil
}

func (m *MockProvider) defaultChatWithTools(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.ChatOptions, callback model.StreamCallback) error {
	return callback(model.Chunk{Content: "Mock response with tools"})
}

func (m *MockProvider) defaultListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return []model.ModelInfo{
		{Name: "mock-model-1", Size: 1000},
		{Name: "mock-model-2", Size: 2000},
	}, nil
}

func (m *MockProvider) defaultPing(ctx context.Context) error {
	return nil
}

func (m *MockProvider) Chat(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
	return m.ChatFunc(ctx, messages, callback)
}

func (m *MockProvider) ChatWithTools(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.ChatOptions, callback model.StreamCallback) error {
	return m.ChatWithToolsFunc(ctx, messages, tools, opts, callback)
}

func (m *MockProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return m.ListModelsFunc(ctx)
}

func (m *MockProvider) GetModel() string {
	return m.currentModel
}

func (m *MockProvider) GetDisplayName() string {
	return m.currentModel
}

func (m *MockProvider) SetModel(model string) {
	m.currentModel = model
}

func (m *MockProvider) Ping(ctx context.Context) error {
	return m.PingFunc(ctx)
}

// Turn is one scripted model response.
type Turn struct {
	Chunks []model.Chunk
	// Err is returned after the chunks are delivered.
	Err error
	// Before runs when the turn starts, e.g. to cancel the caller's context.
	Before func()
}

// Text is a turn that streams the given fragments as answer text.
func Text(fragments ...string) Turn {
	t := Turn{}
	for _, f := range fragments {
		t.Chunks = append(t.Chunks, model.Chunk{Content: f})
	}
	return t
}

// ToolCalls is a turn that requests the given tool calls.
func ToolCalls(calls ...model.ToolCall) Turn {
	return Turn{Chunks: []model.Chunk{{ToolCalls: calls}}}
}

// Call builds a tool call.
func Call(id, name, args string) model.ToolCall {
	return model.ToolCall{ID: id, Name: name, Arguments: args}
}

// ScriptedProvider replays a fixed sequence of turns, one per model call,
// and records what each call received. Calls past the end of the script
// fail.
type ScriptedProvider struct {
	*MockProvider

	mu       sync.Mutex
	turns    []Turn
	calls    int
	requests [][]model.Message
	tools    [][]mcptypes.Tool
	options  []model.ChatOptions
}

// NewScriptedProvider returns a provider that plays turns in order.
func NewScriptedProvider(turns ...Turn) *ScriptedProvider {
	s := &ScriptedProvider{MockProvider: NewMockProvider("scripted"), turns: turns}
	s.ChatWithToolsFunc = s.play
	s.ChatFunc = func(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
		return s.play(ctx, messages, nil, model.ChatOptions{}, callback)
	}
	return s
}

func (s *ScriptedProvider) play(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.ChatOptions, callback model.StreamCallback) error {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	s.requests = append(s.requests, append([]model.Message(nil), messages...))
	s.tools = append(s.tools, tools)
	s.options = append(s.options, opts)
	s.mu.Unlock()

	if idx >= len(s.turns) {
		return fmt.Errorf("scripted provider: unexpected call %d", idx+1)
	}
	turn := s.turns[idx]

	if turn.Before != nil {
		turn.Before()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, chunk := range turn.Chunks {
		if err := callback(chunk); err != nil {
			return err
		}
	}
	return turn.Err
}

// Calls returns the number of model calls made.
func (s *ScriptedProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Request returns the messages received by call i (zero based).
func (s *ScriptedProvider) Request(i int) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

// Tools returns the tools offered on call i (zero based).
func (s *ScriptedProvider) Tools(i int) []mcptypes.Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tools[i]
}

// Options returns the chat options of call i (zero based).
func (s *ScriptedProvider) Options(i int) model.ChatOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options[i]
}

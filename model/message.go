package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a chat message in the conversation
type Message struct {
	ID         string     `json:"id"`
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Reasoning  string     `json:"reasoning,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// ToolCall is a function invocation requested by the model inside an
// assistant turn. Arguments holds the raw JSON text produced by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// NewMessage creates a message with a fresh id and the current time.
func NewMessage(role, content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewToolResponse creates the tool-role message answering call.
func NewToolResponse(call ToolCall, content string) Message {
	msg := NewMessage(RoleTool, content)
	msg.Name = call.Name
	msg.ToolCallID = call.ID
	return msg
}

// DedupeMessages returns messages with unique ids. When an id appears more
// than once the most recent occurrence wins and keeps its position; earlier
// copies are dropped. Messages without an id are assigned one.
func DedupeMessages(messages []Message) []Message {
	last := make(map[string]int, len(messages))
	for i := range messages {
		if messages[i].ID == "" {
			continue
		}
		last[messages[i].ID] = i
	}

	result := make([]Message, 0, len(messages))
	for i, msg := range messages {
		if msg.ID == "" {
			msg.ID = uuid.New().String()
			result = append(result, msg)
			continue
		}
		if last[msg.ID] != i {
			continue
		}
		result = append(result, msg)
	}
	return result
}

// ToolCallIDs lists the ids of the tool calls carried by m, in order.
func (m Message) ToolCallIDs() []string {
	if len(m.ToolCalls) == 0 {
		return nil
	}
	ids := make([]string, len(m.ToolCalls))
	for i, call := range m.ToolCalls {
		ids[i] = call.ID
	}
	return ids
}

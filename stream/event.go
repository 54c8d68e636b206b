// Package stream implements the server to client event protocol: the tagged
// Event union, the SSE-style frame encoder, the incremental client decoder,
// the playback scheduler that paces delivery, and an HTTP client tying them
// together.
package stream

import (
	"agentrelay/config"

	"github.com/rs/zerolog"
)

// Kind is the discriminant written on the event line of a frame.
type Kind string

const (
	KindAnswer       Kind = "answer"
	KindReasoning    Kind = "reasoning"
	KindToolCall     Kind = "toolCall"
	KindToolParams   Kind = "toolParams"
	KindToolResponse Kind = "toolResponse"
	KindError        Kind = "error"
	KindDone         Kind = "done"
)

// Event is one semantic transition of an agent run. The set of
// implementations is closed; switch on the concrete type.
type Event interface {
	Kind() Kind
	isEvent()
}

// AnswerEvent carries a fragment of answer text.
type AnswerEvent struct {
	Text string
}

// ReasoningEvent carries a fragment of model reasoning.
type ReasoningEvent struct {
	Text string
}

// ToolCallEvent announces that the model requested a tool.
type ToolCallEvent struct {
	ID       string
	ToolName string
}

// ToolParamsEvent carries the arguments of a requested tool call. Params is
// the decoded argument object, or the raw text when it was not valid JSON.
type ToolParamsEvent struct {
	ID       string
	ToolName string
	Params   any
}

// ToolResponseEvent reports the content appended for a finished tool call.
type ToolResponseEvent struct {
	ID       string
	ToolName string
	Params   any
	Response string
}

// ErrorEvent describes a failure the client should surface.
type ErrorEvent struct {
	Code    string
	Message string
}

// DoneEvent terminates a stream.
type DoneEvent struct{}

// Error codes used in ErrorEvent.
const (
	CodeMaxIterations = "max_iterations"
	CodeModelError    = "model_error"
	CodeBadRequest    = "bad_request"
	CodeInternal      = "internal_error"
)

func (AnswerEvent) Kind() Kind       { return KindAnswer }
func (ReasoningEvent) Kind() Kind    { return KindReasoning }
func (ToolCallEvent) Kind() Kind     { return KindToolCall }
func (ToolParamsEvent) Kind() Kind   { return KindToolParams }
func (ToolResponseEvent) Kind() Kind { return KindToolResponse }
func (ErrorEvent) Kind() Kind        { return KindError }
func (DoneEvent) Kind() Kind         { return KindDone }

func (AnswerEvent) isEvent()       {}
func (ReasoningEvent) isEvent()    {}
func (ToolCallEvent) isEvent()     {}
func (ToolParamsEvent) isEvent()   {}
func (ToolResponseEvent) isEvent() {}
func (ErrorEvent) isEvent()        {}
func (DoneEvent) isEvent()         {}

func logger() *zerolog.Logger {
	return config.Logger("stream")
}

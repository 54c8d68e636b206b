package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// ErrEncoderClosed is returned by Encode after the done frame was written.
var ErrEncoderClosed = errors.New("stream: encoder closed")

// doneFrame ends every stream. It carries no event line and no JSON.
const doneFrame = "data: [DONE]\n\n"

// Wire payloads. Text events use the delta shape of chat completion chunks.
type (
	deltaPayload struct {
		Delta delta `json:"delta"`
	}
	delta struct {
		Content          *string `json:"content,omitempty"`
		ReasoningContent *string `json:"reasoning_content,omitempty"`
	}
	toolPayload struct {
		ID       string  `json:"id"`
		ToolName string  `json:"toolName"`
		Params   any     `json:"params,omitempty"`
		Response *string `json:"response,omitempty"`
	}
	errorPayload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
)

// Encoder writes events as frames:
//
//	event: <kind>
//	data: <json>
//
// Each frame is flushed as soon as it is written. An Encoder is safe for
// concurrent use; frames keep the order of the Encode calls.
type Encoder struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	closed  bool
}

// NewEncoder returns an encoder writing to w. When w is an http.Flusher
// every frame is flushed.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{w: w}
	if f, ok := w.(http.Flusher); ok {
		e.flusher = f
	}
	return e
}

// Encode writes one event. Encoding a DoneEvent is the same as calling Done.
func (e *Encoder) Encode(ev Event) error {
	if _, ok := ev.(DoneEvent); ok {
		return e.Done()
	}

	data, err := marshalPayload(ev)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", ev.Kind(), err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEncoderClosed
	}
	frame := make([]byte, 0, len(data)+len(ev.Kind())+16)
	frame = append(frame, "event: "...)
	frame = append(frame, string(ev.Kind())...)
	frame = append(frame, "\ndata: "...)
	frame = append(frame, data...)
	frame = append(frame, "\n\n"...)
	return e.write(frame)
}

// Done writes the terminal frame. Later calls to Encode or Done fail with
// ErrEncoderClosed.
func (e *Encoder) Done() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEncoderClosed
	}
	e.closed = true
	return e.write([]byte(doneFrame))
}

func (e *Encoder) write(frame []byte) error {
	if _, err := e.w.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

func marshalPayload(ev Event) ([]byte, error) {
	switch ev := ev.(type) {
	case AnswerEvent:
		return json.Marshal(deltaPayload{Delta: delta{Content: &ev.Text}})
	case ReasoningEvent:
		return json.Marshal(deltaPayload{Delta: delta{ReasoningContent: &ev.Text}})
	case ToolCallEvent:
		return json.Marshal(toolPayload{ID: ev.ID, ToolName: ev.ToolName})
	case ToolParamsEvent:
		return json.Marshal(toolPayload{ID: ev.ID, ToolName: ev.ToolName, Params: paramsOrEmpty(ev.Params)})
	case ToolResponseEvent:
		return json.Marshal(toolPayload{ID: ev.ID, ToolName: ev.ToolName, Params: paramsOrEmpty(ev.Params), Response: &ev.Response})
	case ErrorEvent:
		return json.Marshal(errorPayload{Code: ev.Code, Message: ev.Message})
	default:
		return nil, fmt.Errorf("unknown event type %T", ev)
	}
}

func paramsOrEmpty(p any) any {
	if p == nil {
		return map[string]any{}
	}
	return p
}

package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Decoder turns a framed byte stream back into events. Input may be split
// at any byte; incomplete frames are buffered until their blank-line
// terminator arrives. Lines may end in LF or CRLF.
type Decoder struct {
	buf   []byte
	event string
	data  []string
	done  bool
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed consumes p and returns the events completed by it, in order.
// Comments and unknown event kinds are ignored; frames whose payload is not
// valid JSON are logged and skipped. Input after the done frame is ignored.
func (d *Decoder) Feed(p []byte) []Event {
	if d.done {
		return nil
	}
	d.buf = append(d.buf, p...)

	var events []Event
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimSuffix(d.buf[:i], []byte{'\r'}))
		d.buf = d.buf[i+1:]

		if line != "" {
			d.field(line)
			continue
		}

		ev, ok := d.dispatch()
		if !ok {
			continue
		}
		events = append(events, ev)
		if _, isDone := ev.(DoneEvent); isDone {
			d.done = true
			d.buf = nil
			break
		}
	}

	// Avoid holding on to an ever-growing backing array.
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return events
}

// Done reports whether the terminal frame has been decoded.
func (d *Decoder) Done() bool {
	return d.done
}

func (d *Decoder) field(line string) {
	if strings.HasPrefix(line, ":") {
		return
	}
	name, value, found := strings.Cut(line, ":")
	if found {
		value = strings.TrimPrefix(value, " ")
	}
	switch name {
	case "event":
		d.event = value
	case "data":
		d.data = append(d.data, value)
	}
}

// dispatch completes the pending frame.
func (d *Decoder) dispatch() (Event, bool) {
	kind := Kind(d.event)
	data := strings.Join(d.data, "\n")
	hasData := len(d.data) > 0
	d.event, d.data = "", nil

	if !hasData {
		return nil, false
	}
	if kind == "" && data == "[DONE]" {
		return DoneEvent{}, true
	}

	ev, err := decodePayload(kind, []byte(data))
	if err != nil {
		logger().Warn().Err(err).Str("event", string(kind)).Msg("skipping malformed frame")
		return nil, false
	}
	if ev == nil {
		logger().Debug().Str("event", string(kind)).Msg("ignoring unknown event")
		return nil, false
	}
	return ev, true
}

// decodePayload parses data for kind. Unknown kinds yield a nil event.
func decodePayload(kind Kind, data []byte) (Event, error) {
	switch kind {
	case KindAnswer, KindReasoning:
		var p deltaPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		if kind == KindAnswer {
			if p.Delta.Content == nil {
				return nil, errors.New("answer frame without content")
			}
			return AnswerEvent{Text: *p.Delta.Content}, nil
		}
		if p.Delta.ReasoningContent == nil {
			return nil, errors.New("reasoning frame without reasoning_content")
		}
		return ReasoningEvent{Text: *p.Delta.ReasoningContent}, nil

	case KindToolCall, KindToolParams, KindToolResponse:
		var p toolPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.ID == "" {
			return nil, fmt.Errorf("%s frame without id", kind)
		}
		switch kind {
		case KindToolCall:
			return ToolCallEvent{ID: p.ID, ToolName: p.ToolName}, nil
		case KindToolParams:
			return ToolParamsEvent{ID: p.ID, ToolName: p.ToolName, Params: p.Params}, nil
		}
		resp := ""
		if p.Response != nil {
			resp = *p.Response
		}
		return ToolResponseEvent{ID: p.ID, ToolName: p.ToolName, Params: p.Params, Response: resp}, nil

	case KindError:
		var p errorPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return ErrorEvent{Code: p.Code, Message: p.Message}, nil
	}
	return nil, nil
}

package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"agentrelay/model"
	"agentrelay/stream"
	"agentrelay/tools"
)

// Tool call outcomes, also used as metric labels.
const (
	statusOK          = "ok"
	statusError       = "error"
	statusNotFound    = "not_found"
	statusInvalidArgs = "invalid_args"
	statusStopped     = "stopped"
)

// toolResponse is the JSON body of a synthetic tool message.
type toolResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (t toolResponse) String() string {
	data, _ := json.Marshal(t)
	return string(data)
}

var stoppedResponse = toolResponse{Status: statusStopped}.String()

// runTools executes calls one after another and appends one tool message
// per call. done reports that the run ends here, with res and err as its
// outcome.
func (r *run) runTools(ctx context.Context, calls []model.ToolCall) (res *RunResult, done bool, err error) {
	for i, call := range calls {
		if ctx.Err() != nil {
			r.stopRemaining(calls[i:])
			return r.finish(FinishStopped), true, nil
		}

		params := displayParams(call.Arguments)
		def, found := r.registry.Lookup(call.Name)

		r.opts.Emit(stream.ToolCallEvent{ID: call.ID, ToolName: call.Name})
		r.opts.Emit(stream.ToolParamsEvent{ID: call.ID, ToolName: call.Name, Params: params})

		if found && def.Interactive {
			logger().Debug().Str("tool", call.Name).Msg("interactive tool requested, handing back to caller")
			res, err := r.interactive(ctx, call, def)
			return res, true, err
		}

		content, status := r.execute(ctx, call, def, found)
		if status == statusStopped {
			r.stopRemaining(calls[i:])
			return r.finish(FinishStopped), true, nil
		}

		r.opts.Metrics.RecordToolCall(status)
		r.append(model.NewToolResponse(call, content))
		r.opts.Emit(stream.ToolResponseEvent{ID: call.ID, ToolName: call.Name, Params: params, Response: content})
	}
	return nil, false, nil
}

// execute runs one call and returns the tool message content.
func (r *run) execute(ctx context.Context, call model.ToolCall, def tools.Definition, found bool) (string, string) {
	log := logger().With().Str("tool", call.Name).Str("call_id", call.ID).Logger()

	if !found {
		msg := fmt.Sprintf("tool %q not found", call.Name)
		if hint := r.registry.Suggest(call.Name); hint != "" {
			msg += fmt.Sprintf(", did you mean %q?", hint)
		}
		log.Warn().Msg("model requested an unknown tool")
		return toolResponse{Status: statusError, Message: msg}.String(), statusNotFound
	}

	args, err := r.registry.ParseArguments(def, call.Arguments)
	if err != nil {
		log.Debug().Err(err).Msg("rejected tool arguments")
		return toolResponse{Status: statusError, Message: err.Error()}.String(), statusInvalidArgs
	}

	out, err := def.Run(ctx, args)
	if err != nil {
		if isCancellation(ctx, err) {
			return stoppedResponse, statusStopped
		}
		log.Debug().Err(err).Msg("tool failed")
		return toolResponse{Status: statusError, Message: err.Error()}.String(), statusError
	}

	content, err := encodeResult(out)
	if err != nil {
		return toolResponse{Status: statusError, Message: err.Error()}.String(), statusError
	}
	log.Debug().Int("bytes", len(content)).Msg("tool finished")
	return content, statusOK
}

// stopRemaining answers every call in calls with a stopped response.
func (r *run) stopRemaining(calls []model.ToolCall) {
	for _, call := range calls {
		r.opts.Metrics.RecordToolCall(statusStopped)
		r.append(model.NewToolResponse(call, stoppedResponse))
		r.opts.Emit(stream.ToolResponseEvent{
			ID:       call.ID,
			ToolName: call.Name,
			Params:   displayParams(call.Arguments),
			Response: stoppedResponse,
		})
	}
}

func (r *run) interactive(ctx context.Context, call model.ToolCall, def tools.Definition) (*RunResult, error) {
	partial := r.finish(FinishInteractive)
	if r.opts.OnInteractive == nil {
		return partial, nil
	}
	return r.opts.OnInteractive(ctx, call, def, partial)
}

// encodeResult turns a tool result into message content: strings verbatim,
// everything else as JSON.
func encodeResult(v any) (string, error) {
	switch out := v.(type) {
	case string:
		return out, nil
	case nil:
		return "", nil
	case []byte:
		return string(out), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool result: %w", err)
	}
	return string(data), nil
}

// displayParams decodes raw arguments for events, falling back to the raw
// text when they are not JSON.
func displayParams(raw string) any {
	if raw == "" {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// Package agent runs the model/tool loop: it calls the model, executes the
// tools the model asks for, feeds their results back and repeats until the
// model answers without tools, the iteration cap is reached or the context
// is cancelled. Every observable transition is reported through an Emitter.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agentrelay/config"
	"agentrelay/metrics"
	"agentrelay/model"
	"agentrelay/provider"
	"agentrelay/stream"
	"agentrelay/tools"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Finish reasons reported in RunResult.
const (
	FinishStop        = "stop"
	FinishLength      = "length"
	FinishStopped     = "stopped"
	FinishInteractive = "interactive"

	// FinishError marks a run cut short by a failed model call.
	FinishError = "error"
)

const DefaultMaxIterations = 10

// ErrNoProvider is returned by Run when the loop has no model to call.
var ErrNoProvider = errors.New("agent: no provider configured")

// Emitter receives run events in the order they happen.
type Emitter func(stream.Event)

// InteractiveFunc builds the result returned when the model calls a tool
// that needs the end user. partial holds the transcript up to and including
// the assistant turn that requested call.
type InteractiveFunc func(ctx context.Context, call model.ToolCall, def tools.Definition, partial *RunResult) (*RunResult, error)

// Options configures a Loop.
type Options struct {
	// MaxIterations caps the number of model calls. Zero means
	// DefaultMaxIterations.
	MaxIterations int
	// Stream emits answer and reasoning fragments as they arrive. When false
	// each turn's text is emitted once after the model call returns.
	Stream bool
	// SystemPrompt is prepended when the history carries no system message.
	SystemPrompt string
	ChatOptions  model.ChatOptions
	Emit         Emitter
	// OnInteractive handles interactive tools. The default returns the
	// partial result with FinishInteractive.
	OnInteractive InteractiveFunc
	Metrics       *metrics.Metrics
}

// RunResult is the terminal artifact of a run.
type RunResult struct {
	// CompleteMessages is the whole transcript: history plus every message
	// the run produced.
	CompleteMessages []model.Message
	// AssistantMessages holds only the messages the run produced, assistant
	// and tool turns alike.
	AssistantMessages []model.Message
	FinishReason      string
	Iterations        int
}

// Loop drives one provider against one tool registry.
type Loop struct {
	provider model.Provider
	registry *tools.Registry
	opts     Options
}

func New(p model.Provider, registry *tools.Registry, opts Options) *Loop {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.Emit == nil {
		opts.Emit = func(stream.Event) {}
	}
	if registry == nil {
		registry = tools.NewRegistry(nil)
	}
	return &Loop{provider: p, registry: registry, opts: opts}
}

func logger() *zerolog.Logger {
	return config.Logger("agent")
}

// run holds the state of one Run call.
type run struct {
	*Loop
	result   *RunResult
	messages []model.Message
	produced int
}

func (r *run) append(msgs ...model.Message) {
	r.messages = append(r.messages, msgs...)
	r.produced += len(msgs)
}

func (r *run) finish(reason string) *RunResult {
	r.result.CompleteMessages = r.messages
	r.result.AssistantMessages = append([]model.Message(nil), r.messages[len(r.messages)-r.produced:]...)
	r.result.FinishReason = reason
	return r.result
}

// Run executes the loop over history. Tool failures, unknown tools and bad
// arguments are reported to the model and never end the run. Cancellation
// ends the run with FinishStopped and a nil error. A failing model call
// returns the partial result together with the error.
func (l *Loop) Run(ctx context.Context, history []model.Message) (*RunResult, error) {
	if l.provider == nil {
		return nil, ErrNoProvider
	}

	start := time.Now()
	r := &run{
		Loop:     l,
		result:   &RunResult{},
		messages: l.prepare(history),
	}

	res, err := r.loop(ctx)
	if res != nil {
		l.opts.Metrics.RecordRun(res.FinishReason, time.Since(start))
		logger().Debug().
			Str("finish_reason", res.FinishReason).
			Int("iterations", res.Iterations).
			Dur("elapsed", time.Since(start)).
			Msg("run finished")
	}
	return res, err
}

func (l *Loop) prepare(history []model.Message) []model.Message {
	messages := l.answerOpenCalls(model.DedupeMessages(history))
	if l.opts.SystemPrompt == "" {
		return messages
	}
	for _, m := range messages {
		if m.Role == model.RoleSystem {
			return messages
		}
	}
	return append([]model.Message{model.NewMessage(model.RoleSystem, l.opts.SystemPrompt)}, messages...)
}

func (r *run) loop(ctx context.Context) (*RunResult, error) {
	for {
		if ctx.Err() != nil {
			return r.finish(FinishStopped), nil
		}

		r.result.Iterations++
		r.opts.Metrics.RecordIteration()

		assistant, err := r.callModel(ctx)
		if err != nil {
			if isCancellation(ctx, err) {
				if assistant.Content != "" || assistant.Reasoning != "" {
					r.append(assistant)
				}
				return r.finish(FinishStopped), nil
			}
			r.opts.Emit(stream.ErrorEvent{Code: stream.CodeModelError, Message: err.Error()})
			return r.finish(FinishError), fmt.Errorf("model call failed: %w", err)
		}
		r.append(assistant)

		if len(assistant.ToolCalls) == 0 {
			return r.finish(FinishStop), nil
		}

		if res, done, err := r.runTools(ctx, assistant.ToolCalls); done {
			return res, err
		}

		if r.result.Iterations >= r.opts.MaxIterations {
			logger().Warn().Int("max_iterations", r.opts.MaxIterations).Msg("iteration limit reached")
			r.opts.Emit(stream.ErrorEvent{
				Code:    stream.CodeMaxIterations,
				Message: fmt.Sprintf("stopped after %d iterations", r.opts.MaxIterations),
			})
			return r.finish(FinishLength), nil
		}
	}
}

// callModel issues one model call and returns the assistant turn it
// produced. On error the returned message holds whatever text arrived.
func (r *run) callModel(ctx context.Context) (model.Message, error) {
	var content, reasoning strings.Builder
	var calls []model.ToolCall

	offered := r.registry.Tools()
	emitAnswer := func(text string) { r.opts.Emit(stream.AnswerEvent{Text: text}) }
	var guard *answerGuard
	if r.opts.Stream && len(offered) > 0 {
		guard = &answerGuard{emit: emitAnswer}
	}

	err := r.provider.ChatWithTools(ctx, r.messages, offered, r.opts.ChatOptions, func(chunk model.Chunk) error {
		if chunk.Reasoning != "" {
			reasoning.WriteString(chunk.Reasoning)
			if r.opts.Stream {
				r.opts.Emit(stream.ReasoningEvent{Text: chunk.Reasoning})
			}
		}
		if chunk.Content != "" {
			content.WriteString(chunk.Content)
			switch {
			case guard != nil:
				guard.write(chunk.Content)
			case r.opts.Stream:
				emitAnswer(chunk.Content)
			}
		}
		calls = append(calls, chunk.ToolCalls...)
		return nil
	})

	if !r.opts.Stream && reasoning.Len() > 0 {
		r.opts.Emit(stream.ReasoningEvent{Text: reasoning.String()})
	}

	msg := model.NewMessage(model.RoleAssistant, content.String())
	msg.Reasoning = reasoning.String()

	if err == nil {
		for i := range calls {
			if calls[i].ID == "" {
				calls[i].ID = "call_" + uuid.New().String()
			}
		}
		if len(calls) > 0 {
			msg.ToolCalls = calls
			msg.Content = provider.CleanLeakedToolCalls(msg.Content)
		}
	}

	switch {
	case guard != nil:
		msg.Content = guard.finish(msg.Content)
	case !r.opts.Stream && msg.Content != "":
		emitAnswer(msg.Content)
	}
	return msg, err
}

func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}

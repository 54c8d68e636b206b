package agent_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"agentrelay/agent"
	"agentrelay/mcp"
	"agentrelay/mcp/mcptest"
	"agentrelay/model"
	"agentrelay/provider/testutil"
	"agentrelay/stream"
	"agentrelay/tools"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	events []stream.Event
}

func (r *recorder) emit(ev stream.Event) {
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []stream.Kind {
	out := make([]stream.Kind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind()
	}
	return out
}

func (r *recorder) answer() string {
	var b strings.Builder
	for _, ev := range r.events {
		if a, ok := ev.(stream.AnswerEvent); ok {
			b.WriteString(a.Text)
		}
	}
	return b.String()
}

type lookupArgs struct {
	Query string `json:"query"`
}

func testRegistry(run func(ctx context.Context, args lookupArgs) (any, error)) *tools.Registry {
	lookup := tools.NewLocal("lookup", "Look something up", run)
	return tools.NewRegistry(append([]tools.Definition{lookup}, tools.Builtins(nil)...))
}

func okLookup(ctx context.Context, args lookupArgs) (any, error) {
	return "result for " + args.Query, nil
}

func user(text string) []model.Message {
	return []model.Message{model.NewMessage(model.RoleUser, text)}
}

func roles(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}

// assertEveryCallAnswered checks that each tool call of an assistant turn
// has exactly one tool response before the next assistant turn.
func assertEveryCallAnswered(t *testing.T, msgs []model.Message) {
	t.Helper()
	for i, m := range msgs {
		if m.Role != model.RoleAssistant || len(m.ToolCalls) == 0 {
			continue
		}
		seen := map[string]int{}
		for _, next := range msgs[i+1:] {
			if next.Role != model.RoleTool {
				break
			}
			seen[next.ToolCallID]++
		}
		for _, id := range m.ToolCallIDs() {
			assert.Equal(t, 1, seen[id], "tool call %s", id)
		}
	}
}

func TestRunPlainAnswer(t *testing.T) {
	p := testutil.NewScriptedProvider(testutil.Text("Hel", "lo", "!"))
	rec := &recorder{}
	loop := agent.New(p, nil, agent.Options{Stream: true, Emit: rec.emit})

	res, err := loop.Run(context.Background(), user("hello"))
	require.NoError(t, err)

	assert.Equal(t, agent.FinishStop, res.FinishReason)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, []stream.Kind{stream.KindAnswer, stream.KindAnswer, stream.KindAnswer}, rec.kinds())
	assert.Equal(t, "Hello!", rec.answer())
	assert.Equal(t, []string{"user", "assistant"}, roles(res.CompleteMessages))
	require.Len(t, res.AssistantMessages, 1)
	assert.Equal(t, "Hello!", res.AssistantMessages[0].Content)
	assert.Empty(t, p.Tools(0))
}

func TestRunSingleToolCall(t *testing.T) {
	p := testutil.NewScriptedProvider(
		testutil.ToolCalls(testutil.Call("call_1", "lookup", `{"query":"go"}`)),
		testutil.Text("Go is a language."),
	)
	rec := &recorder{}
	loop := agent.New(p, testRegistry(okLookup), agent.Options{Stream: true, Emit: rec.emit})

	res, err := loop.Run(context.Background(), user("what is go?"))
	require.NoError(t, err)

	assert.Equal(t, agent.FinishStop, res.FinishReason)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, []string{"user", "assistant", "tool", "assistant"}, roles(res.CompleteMessages))
	assert.Equal(t, []string{"assistant", "tool", "assistant"}, roles(res.AssistantMessages))

	toolMsg := res.CompleteMessages[2]
	assert.Equal(t, "call_1", toolMsg.ToolCallID)
	assert.Equal(t, "lookup", toolMsg.Name)
	assert.Equal(t, "result for go", toolMsg.Content)

	assert.Equal(t, []stream.Kind{
		stream.KindToolCall,
		stream.KindToolParams,
		stream.KindToolResponse,
		stream.KindAnswer,
	}, rec.kinds())
	assert.Equal(t, stream.ToolParamsEvent{ID: "call_1", ToolName: "lookup", Params: map[string]any{"query": "go"}}, rec.events[1])
	resp := rec.events[2].(stream.ToolResponseEvent)
	assert.Equal(t, "result for go", resp.Response)

	// The second model call saw the tool result.
	second := p.Request(1)
	require.Len(t, second, 3)
	assert.Equal(t, model.RoleTool, second[2].Role)
	assert.Len(t, p.Tools(0), 3)
	assertEveryCallAnswered(t, res.CompleteMessages)
}

func TestRunToolErrorIsRecovered(t *testing.T) {
	p := testutil.NewScriptedProvider(
		testutil.ToolCalls(testutil.Call("call_1", "lookup", `{"query":"x"}`)),
		testutil.Text("Sorry, the lookup failed."),
	)
	loop := agent.New(p, testRegistry(func(ctx context.Context, args lookupArgs) (any, error) {
		return nil, errors.New("boom")
	}), agent.Options{})

	res, err := loop.Run(context.Background(), user("go"))
	require.NoError(t, err)

	assert.Equal(t, 2, p.Calls())
	assert.Equal(t, agent.FinishStop, res.FinishReason)
	assert.JSONEq(t, `{"status":"error","message":"boom"}`, res.CompleteMessages[2].Content)
}

func TestRunUnknownToolSuggestsName(t *testing.T) {
	p := testutil.NewScriptedProvider(
		testutil.ToolCalls(testutil.Call("call_1", "lookupp", `{}`)),
		testutil.Text("ok"),
	)
	loop := agent.New(p, testRegistry(okLookup), agent.Options{})

	res, err := loop.Run(context.Background(), user("go"))
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"status":"error","message":"tool \"lookupp\" not found, did you mean \"lookup\"?"}`,
		res.CompleteMessages[2].Content)
	assert.Equal(t, agent.FinishStop, res.FinishReason)
}

func TestRunInvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		args string
	}{
		{"malformed", `{"query":`},
		{"missing required", `{}`},
		{"wrong type", `{"query":7}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ran := false
			p := testutil.NewScriptedProvider(
				testutil.ToolCalls(testutil.Call("call_1", "lookup", tt.args)),
				testutil.Text("ok"),
			)
			loop := agent.New(p, testRegistry(func(ctx context.Context, args lookupArgs) (any, error) {
				ran = true
				return "", nil
			}), agent.Options{})

			res, err := loop.Run(context.Background(), user("go"))
			require.NoError(t, err)
			assert.False(t, ran)
			assert.Contains(t, res.CompleteMessages[2].Content, `"status":"error"`)
			assert.Contains(t, res.CompleteMessages[2].Content, "invalid arguments for lookup")
		})
	}
}

func TestRunStructuredResultIsJSON(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	reg := tools.NewRegistry(tools.Builtins(func() time.Time { return fixed }))
	p := testutil.NewScriptedProvider(
		testutil.ToolCalls(testutil.Call("call_1", tools.CurrentTimeName, "")),
		testutil.Text("It is noon."),
	)

	res, err := agent.New(p, reg, agent.Options{}).Run(context.Background(), user("time?"))
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"time":"2025-01-01T12:00:00Z","timezone":"UTC","weekday":"Wednesday"}`,
		res.CompleteMessages[2].Content)
}

func TestRunIterationCap(t *testing.T) {
	p := testutil.NewScriptedProvider(
		testutil.ToolCalls(testutil.Call("call_1", "lookup", `{"query":"a"}`)),
		testutil.ToolCalls(testutil.Call("call_2", "lookup", `{"query":"b"}`)),
	)
	rec := &recorder{}
	loop := agent.New(p, testRegistry(okLookup), agent.Options{MaxIterations: 1, Emit: rec.emit})

	res, err := loop.Run(context.Background(), user("loop forever"))
	require.NoError(t, err)

	assert.Equal(t, agent.FinishLength, res.FinishReason)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 1, p.Calls())
	assert.Equal(t, []string{"user", "assistant", "tool"}, roles(res.CompleteMessages))

	last := rec.events[len(rec.events)-1]
	assert.Equal(t, stream.ErrorEvent{Code: stream.CodeMaxIterations, Message: "stopped after 1 iterations"}, last)
}

func TestRunAlwaysTerminatesWithinCap(t *testing.T) {
	for _, limit := range []int{1, 2, 5} {
		var turns []testutil.Turn
		for i := 0; i < limit+3; i++ {
			turns = append(turns, testutil.ToolCalls(
				testutil.Call("a", "lookup", `{"query":"a"}`),
				testutil.Call("b", "missing", `{}`),
			))
		}
		p := testutil.NewScriptedProvider(turns...)

		res, err := agent.New(p, testRegistry(okLookup), agent.Options{MaxIterations: limit}).
			Run(context.Background(), user("go"))
		require.NoError(t, err)
		assert.Equal(t, limit, p.Calls())
		assert.Equal(t, agent.FinishLength, res.FinishReason)
		assertEveryCallAnswered(t, res.CompleteMessages)
	}
}

func TestRunAbortBetweenToolCalls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	reg := testRegistry(func(_ context.Context, args lookupArgs) (any, error) {
		calls++
		cancel()
		return "done " + args.Query, nil
	})
	p := testutil.NewScriptedProvider(
		testutil.ToolCalls(
			testutil.Call("call_1", "lookup", `{"query":"a"}`),
			testutil.Call("call_2", "lookup", `{"query":"b"}`),
			testutil.Call("call_3", "lookup", `{"query":"c"}`),
		),
		testutil.Text("never reached"),
	)
	rec := &recorder{}

	res, err := agent.New(p, reg, agent.Options{Emit: rec.emit}).Run(ctx, user("go"))
	require.NoError(t, err)

	assert.Equal(t, agent.FinishStopped, res.FinishReason)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, p.Calls())
	require.Len(t, res.CompleteMessages, 5)
	assert.Equal(t, "done a", res.CompleteMessages[2].Content)
	assert.JSONEq(t, `{"status":"stopped"}`, res.CompleteMessages[3].Content)
	assert.JSONEq(t, `{"status":"stopped"}`, res.CompleteMessages[4].Content)
	assertEveryCallAnswered(t, res.CompleteMessages)

	last := rec.events[len(rec.events)-1].(stream.ToolResponseEvent)
	assert.Equal(t, "call_3", last.ID)
}

func TestRunAbortDuringModelCall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := testutil.NewScriptedProvider(
		testutil.ToolCalls(testutil.Call("call_1", "lookup", `{"query":"a"}`)),
		testutil.Turn{Before: cancel},
	)

	res, err := agent.New(p, testRegistry(okLookup), agent.Options{}).Run(ctx, user("go"))
	require.NoError(t, err)
	assert.Equal(t, agent.FinishStopped, res.FinishReason)
	assert.Equal(t, []string{"user", "assistant", "tool"}, roles(res.CompleteMessages))
}

func TestRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := testutil.NewScriptedProvider(testutil.Text("hi"))
	res, err := agent.New(p, nil, agent.Options{}).Run(ctx, user("go"))
	require.NoError(t, err)
	assert.Equal(t, agent.FinishStopped, res.FinishReason)
	assert.Equal(t, 0, p.Calls())
	assert.Empty(t, res.AssistantMessages)
}

func TestRunModelErrorReturnsPartialResult(t *testing.T) {
	boom := errors.New("upstream unavailable")
	p := testutil.NewScriptedProvider(
		testutil.ToolCalls(testutil.Call("call_1", "lookup", `{"query":"a"}`)),
		testutil.Turn{Err: boom},
	)
	rec := &recorder{}

	res, err := agent.New(p, testRegistry(okLookup), agent.Options{Emit: rec.emit}).Run(context.Background(), user("go"))
	require.ErrorIs(t, err, boom)
	require.NotNil(t, res)
	assert.Equal(t, agent.FinishError, res.FinishReason)
	assert.Equal(t, []string{"user", "assistant", "tool"}, roles(res.CompleteMessages))

	last := rec.events[len(rec.events)-1].(stream.ErrorEvent)
	assert.Equal(t, stream.CodeModelError, last.Code)
}

func TestRunInteractiveToolStops(t *testing.T) {
	ran := false
	reg := testRegistry(func(ctx context.Context, args lookupArgs) (any, error) {
		ran = true
		return "", nil
	})
	turn := testutil.ToolCalls(
		testutil.Call("call_1", tools.AskUserName, `{"question":"Which city?"}`),
		testutil.Call("call_2", "lookup", `{"query":"weather"}`),
	)

	t.Run("default stub", func(t *testing.T) {
		p := testutil.NewScriptedProvider(turn)
		rec := &recorder{}
		res, err := agent.New(p, reg, agent.Options{Emit: rec.emit}).Run(context.Background(), user("weather?"))
		require.NoError(t, err)
		assert.Equal(t, agent.FinishInteractive, res.FinishReason)
		assert.False(t, ran)
		assert.Equal(t, []string{"user", "assistant"}, roles(res.CompleteMessages))
		assert.Equal(t, []stream.Kind{stream.KindToolCall, stream.KindToolParams}, rec.kinds())
	})

	t.Run("caller stub", func(t *testing.T) {
		p := testutil.NewScriptedProvider(turn)
		var asked string
		opts := agent.Options{
			OnInteractive: func(ctx context.Context, call model.ToolCall, def tools.Definition, partial *agent.RunResult) (*agent.RunResult, error) {
				asked = call.Arguments
				return &agent.RunResult{FinishReason: "awaiting_user", CompleteMessages: partial.CompleteMessages}, nil
			},
		}
		res, err := agent.New(p, reg, opts).Run(context.Background(), user("weather?"))
		require.NoError(t, err)
		assert.Equal(t, "awaiting_user", res.FinishReason)
		assert.JSONEq(t, `{"question":"Which city?"}`, asked)
		assert.False(t, ran)
	})
}

func TestStreamingAndBufferedAnswersMatch(t *testing.T) {
	script := func() *testutil.ScriptedProvider {
		return testutil.NewScriptedProvider(
			testutil.Turn{Chunks: []model.Chunk{
				{Reasoning: "need "}, {Reasoning: "a lookup"},
				{Content: "Let me "}, {Content: "check."},
				{ToolCalls: []model.ToolCall{testutil.Call("call_1", "lookup", `{"query":"q"}`)}},
			}},
			testutil.Text("The ", "answer ", "is 42."),
		)
	}

	streamed := &recorder{}
	_, err := agent.New(script(), testRegistry(okLookup), agent.Options{Stream: true, Emit: streamed.emit}).
		Run(context.Background(), user("q"))
	require.NoError(t, err)

	buffered := &recorder{}
	_, err = agent.New(script(), testRegistry(okLookup), agent.Options{Stream: false, Emit: buffered.emit}).
		Run(context.Background(), user("q"))
	require.NoError(t, err)

	assert.Equal(t, streamed.answer(), buffered.answer())
	assert.Equal(t, "Let me check.The answer is 42.", buffered.answer())
	assert.Len(t, streamed.events, 4+3+3)
	assert.Equal(t, []stream.Kind{
		stream.KindReasoning, stream.KindAnswer,
		stream.KindToolCall, stream.KindToolParams, stream.KindToolResponse,
		stream.KindAnswer,
	}, buffered.kinds())
}

func TestRunStripsLeakedToolCallText(t *testing.T) {
	p := testutil.NewScriptedProvider(
		testutil.Turn{Chunks: []model.Chunk{
			{Content: `Checking. {"name": "lookup", "arguments": {"query": "x"}}`},
			{ToolCalls: []model.ToolCall{testutil.Call("call_1", "lookup", `{"query":"x"}`)}},
		}},
		testutil.Text("done"),
	)
	res, err := agent.New(p, testRegistry(okLookup), agent.Options{}).Run(context.Background(), user("go"))
	require.NoError(t, err)
	assert.Equal(t, "Checking.", res.CompleteMessages[1].Content)
}

func TestStreamingHidesLeakedToolCallText(t *testing.T) {
	p := testutil.NewScriptedProvider(
		testutil.Turn{Chunks: []model.Chunk{
			{Content: "Checking. "},
			{Content: `{"name": "lookup", `},
			{Content: `"arguments": {"query": "x"}}`},
			{ToolCalls: []model.ToolCall{testutil.Call("call_1", "lookup", `{"query":"x"}`)}},
		}},
		testutil.Text("Use ", "{braces}", " freely."),
	)
	rec := &recorder{}
	res, err := agent.New(p, testRegistry(okLookup), agent.Options{Stream: true, Emit: rec.emit}).
		Run(context.Background(), user("go"))
	require.NoError(t, err)

	for _, ev := range rec.events {
		if a, ok := ev.(stream.AnswerEvent); ok {
			assert.NotContains(t, a.Text, `"name"`)
		}
	}
	assert.Equal(t, "Checking.Use {braces} freely.", rec.answer())
	assert.Equal(t, "Checking.", res.CompleteMessages[1].Content)
	assert.Equal(t, "Use {braces} freely.", res.CompleteMessages[3].Content)
}

func TestRunAssignsMissingCallIDs(t *testing.T) {
	p := testutil.NewScriptedProvider(
		testutil.ToolCalls(model.ToolCall{Name: "lookup", Arguments: `{"query":"a"}`}),
		testutil.Text("ok"),
	)
	res, err := agent.New(p, testRegistry(okLookup), agent.Options{}).Run(context.Background(), user("go"))
	require.NoError(t, err)

	id := res.CompleteMessages[1].ToolCalls[0].ID
	assert.True(t, strings.HasPrefix(id, "call_"))
	assert.Equal(t, id, res.CompleteMessages[2].ToolCallID)
}

func TestRunSystemPromptAndOptions(t *testing.T) {
	temp := 0.2
	p := testutil.NewScriptedProvider(testutil.Text("hi"))
	opts := agent.Options{
		SystemPrompt: "Be brief.",
		ChatOptions:  model.ChatOptions{Temperature: &temp, ToolChoice: "auto"},
	}

	res, err := agent.New(p, nil, opts).Run(context.Background(), user("hello"))
	require.NoError(t, err)

	assert.Equal(t, []string{"system", "user", "assistant"}, roles(res.CompleteMessages))
	assert.Equal(t, "Be brief.", p.Request(0)[0].Content)
	assert.Equal(t, "auto", p.Options(0).ToolChoice)
	assert.Len(t, res.AssistantMessages, 1)
}

func TestRunDeduplicatesHistory(t *testing.T) {
	first := model.NewMessage(model.RoleUser, "draft")
	edited := first
	edited.Content = "final"

	p := testutil.NewScriptedProvider(testutil.Text("ok"))
	_, err := agent.New(p, nil, agent.Options{}).Run(context.Background(), []model.Message{first, edited})
	require.NoError(t, err)

	req := p.Request(0)
	require.Len(t, req, 1)
	assert.Equal(t, "final", req[0].Content)
}

func TestRunWithoutProvider(t *testing.T) {
	_, err := agent.New(nil, nil, agent.Options{}).Run(context.Background(), user("hi"))
	assert.ErrorIs(t, err, agent.ErrNoProvider)
}

func TestRunWithUnreachableToolServer(t *testing.T) {
	dialer := &mcptest.Dialer{
		NewSession: func(server mcp.Server) *mcptest.Session {
			return &mcptest.Session{Tools: []mcptypes.Tool{mcptest.Tool("search", "Search", "query")}}
		},
		Fail: map[string]error{"down": errors.New("connection refused")},
	}
	cache := mcp.NewConnectionCache(dialer, time.Minute)
	defer cache.Close()

	reg := tools.Build(context.Background(), tools.Builtins(nil), []mcp.Server{
		{Name: "down", URL: "http://down.local/mcp"},
	}, cache)
	p := testutil.NewScriptedProvider(testutil.Text("hello"))

	res, err := agent.New(p, reg, agent.Options{}).Run(context.Background(), user("hi"))
	require.NoError(t, err)
	assert.Equal(t, agent.FinishStop, res.FinishReason)
	assert.Len(t, p.Tools(0), 2)
}

func TestRunRemoteTool(t *testing.T) {
	dialer := &mcptest.Dialer{
		NewSession: func(server mcp.Server) *mcptest.Session {
			return &mcptest.Session{
				Tools: []mcptypes.Tool{mcptest.Tool("search", "Search", "query")},
				CallFunc: func(ctx context.Context, name string, args map[string]any) (*mcptypes.CallToolResult, error) {
					return mcptypes.NewToolResultText("found " + args["query"].(string)), nil
				},
			}
		},
	}
	cache := mcp.NewConnectionCache(dialer, time.Minute)
	defer cache.Close()

	reg := tools.Build(context.Background(), nil, []mcp.Server{{Name: "web", URL: "http://web.local/mcp"}}, cache)
	p := testutil.NewScriptedProvider(
		testutil.ToolCalls(testutil.Call("call_1", "web__search", `{"query":"mcp"}`)),
		testutil.Text("ok"),
	)

	res, err := agent.New(p, reg, agent.Options{}).Run(context.Background(), user("search"))
	require.NoError(t, err)
	assert.Equal(t, "found mcp", res.CompleteMessages[2].Content)
	assert.Equal(t, 1, dialer.Dials("web"))
}

func TestRunAnswersOpenCallsFromHistory(t *testing.T) {
	interrupted := func() []model.Message {
		asst := model.NewMessage(model.RoleAssistant, "")
		asst.ToolCalls = []model.ToolCall{
			testutil.Call("call_1", tools.AskUserName, `{"question":"Which city?"}`),
			testutil.Call("call_2", "lookup", `{"query":"weather"}`),
		}
		return append(user("weather?"), asst)
	}

	t.Run("reply binds to the interactive call", func(t *testing.T) {
		p := testutil.NewScriptedProvider(testutil.Text("Sunny in Oslo."))
		history := append(interrupted(), model.NewMessage(model.RoleUser, "Oslo"))

		res, err := agent.New(p, testRegistry(okLookup), agent.Options{}).Run(context.Background(), history)
		require.NoError(t, err)
		assert.Equal(t, agent.FinishStop, res.FinishReason)

		sent := p.Request(0)
		assert.Equal(t, []string{"user", "assistant", "tool", "tool"}, roles(sent))
		assertEveryCallAnswered(t, sent)
		assert.Equal(t, "call_1", sent[2].ToolCallID)
		assert.Equal(t, "Oslo", sent[2].Content)
		assert.Equal(t, "call_2", sent[3].ToolCallID)
		assert.JSONEq(t, `{"status":"stopped"}`, sent[3].Content)
	})

	t.Run("no reply answers every call as stopped", func(t *testing.T) {
		p := testutil.NewScriptedProvider(testutil.Text("ok"))

		_, err := agent.New(p, testRegistry(okLookup), agent.Options{}).Run(context.Background(), interrupted())
		require.NoError(t, err)

		sent := p.Request(0)
		assert.Equal(t, []string{"user", "assistant", "tool", "tool"}, roles(sent))
		assertEveryCallAnswered(t, sent)
		for _, m := range sent[2:] {
			assert.JSONEq(t, `{"status":"stopped"}`, m.Content)
		}
	})

	t.Run("answered history is untouched", func(t *testing.T) {
		history := interrupted()
		history = append(history,
			model.NewToolResponse(history[1].ToolCalls[0], "Oslo"),
			model.NewToolResponse(history[1].ToolCalls[1], "rain"),
			model.NewMessage(model.RoleUser, "thanks"),
		)
		p := testutil.NewScriptedProvider(testutil.Text("welcome"))

		_, err := agent.New(p, testRegistry(okLookup), agent.Options{}).Run(context.Background(), history)
		require.NoError(t, err)

		sent := p.Request(0)
		require.Len(t, sent, len(history))
		for i := range history {
			assert.Equal(t, history[i].ID, sent[i].ID)
		}
	})
}

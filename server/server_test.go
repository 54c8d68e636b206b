package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"agentrelay/config"
	"agentrelay/mcp"
	"agentrelay/mcp/mcptest"
	"agentrelay/metrics"
	"agentrelay/model"
	"agentrelay/provider/testutil"
	"agentrelay/server"
	"agentrelay/storage"
	"agentrelay/stream"
	"agentrelay/tools"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	srv      *httptest.Server
	store    *storage.SessionStore
	provider *testutil.ScriptedProvider

	mu        sync.Mutex
	requested [][2]string
}

func newHarness(t *testing.T, turns []testutil.Turn, configure ...func(*server.Options)) *harness {
	t.Helper()

	store, err := storage.OpenSessionStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{store: store, provider: testutil.NewScriptedProvider(turns...)}

	cfg := config.DefaultConfig()
	cfg.Providers = append(cfg.Providers, config.ProviderConfig{ID: "openai", Enabled: true, Model: "gpt-4o-mini"})

	opts := server.Options{
		Config: cfg,
		NewProvider: func(providerID, modelName string) (model.Provider, error) {
			h.mu.Lock()
			h.requested = append(h.requested, [2]string{providerID, modelName})
			h.mu.Unlock()
			return h.provider, nil
		},
		LocalTools: tools.Builtins(func() time.Time { return fixedNow }),
		Store:      store,
		Metrics:    metrics.Default(),
	}
	for _, fn := range configure {
		fn(&opts)
	}

	h.srv = httptest.NewServer(server.New(opts).Handler())
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) chat(t *testing.T, req stream.ChatRequest) ([]stream.Event, error) {
	t.Helper()
	client := stream.NewClient(h.srv.URL)
	client.FrameInterval = time.Millisecond

	var events []stream.Event
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := client.Stream(ctx, req, func(ev stream.Event) {
		events = append(events, ev)
	})
	return events, err
}

func (h *harness) get(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(h.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (h *harness) patch(t *testing.T, path, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPatch, h.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func kinds(events []stream.Event) []stream.Kind {
	out := make([]stream.Kind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind()
	}
	return out
}

func userRequest(text string) stream.ChatRequest {
	return stream.ChatRequest{
		Messages: []model.Message{model.NewMessage(model.RoleUser, text)},
		Stream:   true,
	}
}

func TestChatStreamsAnswer(t *testing.T) {
	h := newHarness(t, []testutil.Turn{testutil.Text("Hel", "lo")})

	events, err := h.chat(t, userRequest("hi"))
	require.NoError(t, err)

	assert.Equal(t, []stream.Event{
		stream.AnswerEvent{Text: "Hel"},
		stream.AnswerEvent{Text: "lo"},
		stream.DoneEvent{},
	}, events)
}

func TestChatToolRound(t *testing.T) {
	h := newHarness(t, []testutil.Turn{
		testutil.ToolCalls(testutil.Call("c1", "current_time", `{"timezone":"UTC"}`)),
		testutil.Text("It is noon."),
	})

	events, err := h.chat(t, userRequest("What time is it?"))
	require.NoError(t, err)

	assert.Equal(t, []stream.Kind{
		stream.KindToolCall,
		stream.KindToolParams,
		stream.KindToolResponse,
		stream.KindAnswer,
		stream.KindDone,
	}, kinds(events))

	resp, ok := events[2].(stream.ToolResponseEvent)
	require.True(t, ok)
	assert.Equal(t, "c1", resp.ID)
	assert.Equal(t, "current_time", resp.ToolName)
	assert.Contains(t, resp.Response, "2025-01-01T12:00:00Z")
	assert.Contains(t, resp.Response, "Wednesday")

	// The tool result was fed back to the model.
	second := h.provider.Request(1)
	last := second[len(second)-1]
	assert.Equal(t, model.RoleTool, last.Role)
	assert.Equal(t, "c1", last.ToolCallID)
}

func TestChatBufferedAnswer(t *testing.T) {
	h := newHarness(t, []testutil.Turn{testutil.Text("Hel", "lo")})

	req := userRequest("hi")
	req.Stream = false
	events, err := h.chat(t, req)
	require.NoError(t, err)

	assert.Equal(t, []stream.Event{stream.AnswerEvent{Text: "Hello"}, stream.DoneEvent{}}, events)
}

func TestChatResolvesProvider(t *testing.T) {
	tests := []struct {
		model    string
		provider string
		name     string
	}{
		{"", "ollama", ""},
		{"openai:gpt-4o", "openai", "gpt-4o"},
		{"llama3:8b", "ollama", "llama3:8b"},
		{"qwen3", "ollama", "qwen3"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			h := newHarness(t, []testutil.Turn{testutil.Text("ok")})

			req := userRequest("hi")
			req.Model = tt.model
			_, err := h.chat(t, req)
			require.NoError(t, err)

			require.Len(t, h.requested, 1)
			assert.Equal(t, [2]string{tt.provider, tt.name}, h.requested[0])
		})
	}
}

func TestChatOptionsReachProvider(t *testing.T) {
	h := newHarness(t, []testutil.Turn{testutil.Text("ok")})

	temp := 0.2
	req := userRequest("hi")
	req.Temperature = &temp
	req.ToolChoice = "none"
	req.Tools = []string{"current_time"}
	_, err := h.chat(t, req)
	require.NoError(t, err)

	opts := h.provider.Options(0)
	require.NotNil(t, opts.Temperature)
	assert.Equal(t, 0.2, *opts.Temperature)
	assert.Equal(t, "none", opts.ToolChoice)

	offered := h.provider.Tools(0)
	require.Len(t, offered, 1)
	assert.Equal(t, "current_time", offered[0].Name)
}

func TestChatIterationCap(t *testing.T) {
	h := newHarness(t, []testutil.Turn{
		testutil.ToolCalls(testutil.Call("c1", "current_time", `{}`)),
	})

	req := userRequest("loop")
	req.MaxIterations = 1
	events, err := h.chat(t, req)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, stream.ErrorEvent{Code: stream.CodeMaxIterations, Message: "stopped after 1 iterations"}, events[len(events)-2])
	assert.Equal(t, stream.DoneEvent{}, events[len(events)-1])
	assert.Equal(t, 1, h.provider.Calls())
}

func TestChatModelError(t *testing.T) {
	h := newHarness(t, []testutil.Turn{{Err: errors.New("upstream 502")}})

	events, err := h.chat(t, userRequest("hi"))
	require.NoError(t, err)

	require.Len(t, events, 2)
	errEv, ok := events[0].(stream.ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, stream.CodeModelError, errEv.Code)
	assert.Contains(t, errEv.Message, "upstream 502")
	assert.Equal(t, stream.DoneEvent{}, events[1])
}

func TestChatRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"messages":`},
		{"no messages", `{"messages":[]}`},
		{"unknown tool choice", `{"messages":[{"role":"user","content":"hi"}],"tool_choice":"lookup"}`},
	}

	h := newHarness(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(h.srv.URL+stream.ChatPath, "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body, _ := io.ReadAll(resp.Body)
			assert.Contains(t, string(body), `"code":"bad_request"`)
		})
	}
	assert.Zero(t, h.provider.Calls())
}

func TestChatProviderUnavailable(t *testing.T) {
	h := newHarness(t, nil, func(o *server.Options) {
		o.NewProvider = func(providerID, modelName string) (model.Provider, error) {
			return nil, errors.New(`provider "ollama" is disabled`)
		}
	})

	_, err := h.chat(t, userRequest("hi"))
	var statusErr *stream.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "disabled")
}

func TestChatPersistsSession(t *testing.T) {
	h := newHarness(t, []testutil.Turn{
		testutil.Text("It is noon."),
		testutil.Text("You asked about the time."),
	})
	ctx := context.Background()

	req := userRequest("What time is it?")
	req.SessionID = "s1"
	_, err := h.chat(t, req)
	require.NoError(t, err)

	stored, err := h.store.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "What time is it?", stored[0].Content)
	assert.Equal(t, "It is noon.", stored[1].Content)

	session, err := h.store.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "What time is it?", session.Title)
	assert.Equal(t, "scripted", session.Model)

	// The follow-up only carries the new message; history comes from storage.
	req = userRequest("What did I ask?")
	req.SessionID = "s1"
	_, err = h.chat(t, req)
	require.NoError(t, err)

	sent := h.provider.Request(1)
	require.Len(t, sent, 3)
	assert.Equal(t, "What time is it?", sent[0].Content)
	assert.Equal(t, "It is noon.", sent[1].Content)
	assert.Equal(t, "What did I ask?", sent[2].Content)

	stored, err = h.store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, stored, 4)
}

func TestChatFollowUpAnswersAskUser(t *testing.T) {
	h := newHarness(t, []testutil.Turn{
		testutil.ToolCalls(
			testutil.Call("c1", tools.AskUserName, `{"question":"Which city?"}`),
			testutil.Call("c2", tools.CurrentTimeName, `{}`),
		),
		testutil.Text("Sunny in Oslo."),
	})

	req := userRequest("What's the weather?")
	req.SessionID = "s1"
	_, err := h.chat(t, req)
	require.NoError(t, err)

	req = userRequest("Oslo")
	req.SessionID = "s1"
	_, err = h.chat(t, req)
	require.NoError(t, err)

	sent := h.provider.Request(1)
	responses := map[string]model.Message{}
	for _, m := range sent {
		if m.Role == model.RoleTool {
			responses[m.ToolCallID] = m
		}
	}
	for _, m := range sent {
		for _, id := range m.ToolCallIDs() {
			assert.Contains(t, responses, id)
		}
	}
	assert.Equal(t, "Oslo", responses["c1"].Content)
	assert.JSONEq(t, `{"status":"stopped"}`, responses["c2"].Content)
	assert.Equal(t, model.RoleTool, sent[len(sent)-1].Role)
}

func TestChatResentHistoryIsNotDuplicated(t *testing.T) {
	h := newHarness(t, []testutil.Turn{testutil.Text("first"), testutil.Text("second")})

	first := model.NewMessage(model.RoleUser, "hello")
	_, err := h.chat(t, stream.ChatRequest{SessionID: "s1", Messages: []model.Message{first}})
	require.NoError(t, err)

	stored, err := h.store.Get(context.Background(), "s1")
	require.NoError(t, err)

	// A client that resends the whole transcript.
	next := append(stored, model.NewMessage(model.RoleUser, "again"))
	_, err = h.chat(t, stream.ChatRequest{SessionID: "s1", Messages: next})
	require.NoError(t, err)

	assert.Len(t, h.provider.Request(1), 3)
}

func TestSessionEndpoints(t *testing.T) {
	h := newHarness(t, []testutil.Turn{testutil.Text("Paris is the capital of France.")})
	ctx := context.Background()

	req := userRequest("Tell me about Paris")
	req.SessionID = "trip"
	_, err := h.chat(t, req)
	require.NoError(t, err)
	require.NoError(t, h.store.Replace(ctx, "other", []model.Message{model.NewMessage(model.RoleUser, "unrelated")}, "Groceries"))

	var list struct {
		Sessions []storage.Session `json:"sessions"`
	}
	assert.Equal(t, http.StatusOK, h.get(t, "/api/v1/sessions", &list))
	assert.Len(t, list.Sessions, 2)

	var found struct {
		Matches []storage.Match `json:"matches"`
	}
	assert.Equal(t, http.StatusOK, h.get(t, "/api/v1/sessions?q=capital&limit=5", &found))
	require.NotEmpty(t, found.Matches)
	assert.Equal(t, "trip", found.Matches[0].SessionID)

	assert.Equal(t, http.StatusBadRequest, h.get(t, "/api/v1/sessions?q=paris&limit=zero", nil))

	var detail struct {
		storage.Session
		Messages []model.Message `json:"messages"`
	}
	assert.Equal(t, http.StatusOK, h.get(t, "/api/v1/sessions/trip", &detail))
	assert.Equal(t, "trip", detail.ID)
	assert.Len(t, detail.Messages, 2)

	assert.Equal(t, http.StatusNotFound, h.get(t, "/api/v1/sessions/missing", nil))

	var renamed storage.Session
	assert.Equal(t, http.StatusOK, h.patch(t, "/api/v1/sessions/trip", `{"title":"  Paris trip "}`, &renamed))
	assert.Equal(t, "Paris trip", renamed.Title)
	assert.Equal(t, http.StatusBadRequest, h.patch(t, "/api/v1/sessions/trip", `{"title":" "}`, nil))
	assert.Equal(t, http.StatusNotFound, h.patch(t, "/api/v1/sessions/missing", `{"title":"x"}`, nil))

	del, err := http.NewRequest(http.MethodDelete, h.srv.URL+"/api/v1/sessions/trip", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(del)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, http.StatusNotFound, h.get(t, "/api/v1/sessions/trip", nil))
}

func TestSessionEndpointsWithoutStore(t *testing.T) {
	h := newHarness(t, nil, func(o *server.Options) { o.Store = nil })
	assert.Equal(t, http.StatusServiceUnavailable, h.get(t, "/api/v1/sessions", nil))
}

func TestToolsEndpoint(t *testing.T) {
	dialer := &mcptest.Dialer{
		NewSession: func(server mcp.Server) *mcptest.Session {
			return &mcptest.Session{Tools: []mcptypes.Tool{mcptest.Tool("search", "Search the web", "query")}}
		},
		Fail: map[string]error{"down": errors.New("connection refused")},
	}
	cache := mcp.NewConnectionCache(dialer, time.Minute)
	t.Cleanup(func() { _ = cache.Close() })

	h := newHarness(t, nil, func(o *server.Options) {
		o.Servers = []mcp.Server{{Name: "down", URL: "http://down"}, {Name: "web", URL: "http://web"}}
		o.Connector = cache
	})

	var body struct {
		Tools []struct {
			Name        string `json:"name"`
			Origin      string `json:"origin"`
			Server      string `json:"server"`
			Interactive bool   `json:"interactive"`
		} `json:"tools"`
	}
	assert.Equal(t, http.StatusOK, h.get(t, "/api/v1/tools", &body))

	names := make([]string, len(body.Tools))
	for i, tool := range body.Tools {
		names[i] = tool.Name
	}
	assert.Equal(t, []string{"current_time", "ask_user", "web__search"}, names)
	assert.True(t, body.Tools[1].Interactive)
	assert.Equal(t, "remote", body.Tools[2].Origin)
	assert.Equal(t, "web", body.Tools[2].Server)
}

func TestHealthz(t *testing.T) {
	failing := func(id string) *testutil.MockProvider {
		p := testutil.NewMockProvider(id)
		p.PingFunc = func(ctx context.Context) error { return errors.New("connection refused") }
		return p
	}

	tests := []struct {
		name      string
		providers map[string]model.Provider
		code      int
		status    string
	}{
		{
			name:      "all healthy",
			providers: map[string]model.Provider{"ollama": testutil.NewMockProvider("llama3")},
			code:      http.StatusOK,
			status:    "ok",
		},
		{
			name: "degraded",
			providers: map[string]model.Provider{
				"ollama": testutil.NewMockProvider("llama3"),
				"openai": failing("gpt-4o"),
			},
			code:   http.StatusOK,
			status: "degraded",
		},
		{
			name:      "unavailable",
			providers: map[string]model.Provider{"openai": failing("gpt-4o")},
			code:      http.StatusServiceUnavailable,
			status:    "unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil, func(o *server.Options) { o.Providers = tt.providers })

			var body struct {
				Status    string `json:"status"`
				Providers []struct {
					ProviderID string `json:"provider"`
					OK         bool   `json:"ok"`
				} `json:"providers"`
			}
			assert.Equal(t, tt.code, h.get(t, "/healthz", &body))
			assert.Equal(t, tt.status, body.Status)
			assert.Len(t, body.Providers, len(tt.providers))
		})
	}
}

func TestModelsEndpoint(t *testing.T) {
	broken := testutil.NewMockProvider("gpt-4o")
	broken.ListModelsFunc = func(ctx context.Context) ([]model.ModelInfo, error) {
		return nil, errors.New("invalid api key")
	}
	h := newHarness(t, nil, func(o *server.Options) {
		o.Providers = map[string]model.Provider{
			"ollama": testutil.NewMockProvider("llama3"),
			"openai": broken,
		}
	})

	var body struct {
		Providers []struct {
			ProviderID string `json:"provider"`
			Models     []struct {
				Name string `json:"name"`
			} `json:"models"`
			Error string `json:"error"`
		} `json:"providers"`
	}
	assert.Equal(t, http.StatusOK, h.get(t, "/api/v1/models", &body))
	require.Len(t, body.Providers, 2)

	assert.Equal(t, "ollama", body.Providers[0].ProviderID)
	require.Len(t, body.Providers[0].Models, 2)
	assert.Equal(t, "mock-model-1", body.Providers[0].Models[0].Name)

	assert.Equal(t, "openai", body.Providers[1].ProviderID)
	assert.Empty(t, body.Providers[1].Models)
	assert.Equal(t, "invalid api key", body.Providers[1].Error)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, nil)

	resp, err := http.Get(h.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "agentrelay_active_streams")
}

func TestMethodNotAllowed(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, h.get(t, stream.ChatPath, nil))
}

func TestServeStopsOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := server.New(server.Options{Config: config.DefaultConfig()})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, listener) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listener.Addr().String() + "/metrics")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

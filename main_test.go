package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"agentrelay/stream"
	"agentrelay/tools"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	for _, name := range []string{"serve", "chat", "tools"} {
		assert.True(t, names[name], "expected subcommand %q", name)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func frameServer(t *testing.T, events ...stream.Event) (*httptest.Server, *stream.ChatRequest) {
	t.Helper()
	var got stream.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		enc := stream.NewEncoder(w)
		for _, ev := range events {
			_ = enc.Encode(ev)
		}
		_ = enc.Done()
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestChatOnce(t *testing.T) {
	srv, got := frameServer(t,
		stream.ToolParamsEvent{ID: "c1", ToolName: "current_time", Params: map[string]any{}},
		stream.ToolResponseEvent{ID: "c1", ToolName: "current_time", Response: "noon"},
		stream.AnswerEvent{Text: "It is "},
		stream.AnswerEvent{Text: "noon."},
	)

	var stdout, stderr bytes.Buffer
	req := stream.ChatRequest{Model: "openai:gpt-4o", Stream: true, SessionID: "s1"}
	err := chatOnce(context.Background(), stream.NewClient(srv.URL), req, "What time is it?", &stdout, &stderr)
	require.NoError(t, err)

	assert.Equal(t, "It is noon.\n", stdout.String())
	assert.Contains(t, stderr.String(), "→ current_time")
	assert.Equal(t, "s1", got.SessionID)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "What time is it?", got.Messages[0].Content)
}

func TestChatOnceReportsRunErrors(t *testing.T) {
	srv, _ := frameServer(t, stream.ErrorEvent{Code: stream.CodeModelError, Message: "upstream 502"})

	var stdout, stderr bytes.Buffer
	err := chatOnce(context.Background(), stream.NewClient(srv.URL), stream.ChatRequest{}, "hi", &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, stderr.String(), "model_error: upstream 502")
}

func TestWriteTools(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeTools(&out, tools.NewRegistry(tools.Builtins(nil))))

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), "NAME")
	assert.Contains(t, string(lines[1]), "current_time")
	assert.Contains(t, string(lines[2]), "ask_user")
}

// Package ollama is a thin client over the Ollama chat API bound to one
// model.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"agentrelay/model"

	"github.com/ollama/ollama/api"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.1:latest"
)

// Client talks to one Ollama server on behalf of one model.
type Client struct {
	api   *api.Client
	model string
}

// ChatRequest is one streamed chat call.
type ChatRequest struct {
	Messages []api.Message
	Tools    api.Tools
	// Temperature is left to the model default when nil.
	Temperature *float64
}

// Fragment is one piece of a streamed response.
type Fragment struct {
	Content   string
	Thinking  string
	ToolCalls []api.ToolCall
}

// NewClient returns a client for baseURL. Empty arguments select
// DefaultBaseURL and DefaultModel; a nil httpClient uses
// http.DefaultClient.
func NewClient(baseURL, modelName string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}
	return &Client{api: api.NewClient(u, httpClient), model: modelName}, nil
}

// Chat streams one response, calling fn for every fragment in order.
func (c *Client) Chat(ctx context.Context, req ChatRequest, fn func(Fragment) error) error {
	streaming := true
	chatReq := &api.ChatRequest{
		Model:    c.model,
		Messages: req.Messages,
		Tools:    req.Tools,
		Stream:   &streaming,
	}
	if req.Temperature != nil {
		chatReq.Options = map[string]any{"temperature": *req.Temperature}
	}

	return c.api.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		if fn == nil {
			return nil
		}
		return fn(Fragment{
			Content:   resp.Message.Content,
			Thinking:  resp.Message.Thinking,
			ToolCalls: resp.Message.ToolCalls,
		})
	})
}

// ListModels returns the models installed on the server.
func (c *Client) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	resp, err := c.api.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	models := make([]model.ModelInfo, len(resp.Models))
	for i, m := range resp.Models {
		models[i] = model.ModelInfo{
			Name:         m.Name,
			InternalName: m.Name,
			Provider:     "ollama",
			Size:         m.Size,
		}
	}
	return models, nil
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) SetModel(modelName string) {
	c.model = modelName
}

// Ping checks that the server answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.api.Heartbeat(ctx)
}

// nativeToolFamilies lists model families by whether they handle the tools
// field of the chat API. More specific prefixes come first so "llama3.1"
// is not matched as "llama3".
var nativeToolFamilies = []struct {
	prefix    string
	supported bool
}{
	{"llama3.3", true},
	{"llama3.2", true},
	{"llama3.1", true},
	{"llama3-gradient", false},
	{"command-r", true},
	{"qwen", true},
	{"mistral", true},
	{"nemotron", true},
	{"granite3", true},
	{"gpt-oss", true},
	{"codellama", false},
	{"llama3", false},
	{"deepseek", false},
	{"phi", false},
	{"gemma", false},
}

// SupportsNativeTools reports whether a model belongs to a family known to
// accept structured tool definitions. Unknown families are assumed not to;
// they get tools described in the system prompt instead.
func SupportsNativeTools(modelName string) bool {
	name := strings.ToLower(modelName)
	for _, f := range nativeToolFamilies {
		if strings.HasPrefix(name, f.prefix) {
			return f.supported
		}
	}
	return false
}

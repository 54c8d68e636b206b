// Package mcptest provides in-memory tool server sessions and dialers for
// tests that must not touch the network.
package mcptest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"agentrelay/mcp"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Session is an in-memory mcp.Session.
type Session struct {
	Tools []mcptypes.Tool
	// CallFunc handles CallTool; when nil every call returns "ok".
	CallFunc func(ctx context.Context, name string, args map[string]any) (*mcptypes.CallToolResult, error)

	closed atomic.Bool
	calls  atomic.Int32
}

func (s *Session) ListTools(ctx context.Context) ([]mcptypes.Tool, error) {
	return s.Tools, nil
}

func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (*mcptypes.CallToolResult, error) {
	s.calls.Add(1)
	if s.CallFunc != nil {
		return s.CallFunc(ctx, name, args)
	}
	return mcptypes.NewToolResultText("ok"), nil
}

func (s *Session) Close() error {
	s.closed.Store(true)
	return nil
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Calls reports how many times CallTool ran.
func (s *Session) Calls() int {
	return int(s.calls.Load())
}

// Dialer hands out sessions built by NewSession and counts dials per server.
// Servers listed in Fail are refused.
type Dialer struct {
	NewSession func(server mcp.Server) *Session
	Fail       map[string]error
	// Gate, when set, is received from before each dial completes.
	Gate chan struct{}

	mu       sync.Mutex
	dials    map[string]int
	sessions []*Session
}

func (d *Dialer) Dial(ctx context.Context, server mcp.Server) (mcp.Session, error) {
	if d.Gate != nil {
		select {
		case <-d.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dials == nil {
		d.dials = make(map[string]int)
	}
	d.dials[server.Name]++

	if err, ok := d.Fail[server.Name]; ok {
		return nil, err
	}
	if d.NewSession == nil {
		return nil, fmt.Errorf("no session for %s", server.Name)
	}
	s := d.NewSession(server)
	d.sessions = append(d.sessions, s)
	return s, nil
}

// Dials reports the number of dials made to the named server.
func (d *Dialer) Dials(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials[name]
}

// Sessions returns every session handed out, in dial order.
func (d *Dialer) Sessions() []*Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Session(nil), d.sessions...)
}

// Tool builds a tool definition with string properties, all required.
func Tool(name, description string, props ...string) mcptypes.Tool {
	opts := []mcptypes.ToolOption{mcptypes.WithDescription(description)}
	for _, p := range props {
		opts = append(opts, mcptypes.WithString(p, mcptypes.Required()))
	}
	return mcptypes.NewTool(name, opts...)
}

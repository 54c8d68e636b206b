package mcp

import (
	"context"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

const (
	TransportStreamableHTTP = "streamable-http"
	TransportSSE            = "sse"
)

// Server identifies a remote tool server.
type Server struct {
	Name      string
	URL       string
	Transport string // TransportStreamableHTTP (default) or TransportSSE
	Headers   map[string]string
}

// Session is an initialized connection to a remote tool server.
type Session interface {
	ListTools(ctx context.Context) ([]mcptypes.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*mcptypes.CallToolResult, error)
	Close() error
}

// Dialer opens sessions. The context passed to Dial bounds the handshake only;
// the returned session must outlive it.
type Dialer interface {
	Dial(ctx context.Context, server Server) (Session, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, server Server) (Session, error)

func (f DialerFunc) Dial(ctx context.Context, server Server) (Session, error) {
	return f(ctx, server)
}

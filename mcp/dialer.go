package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

const (
	ClientName      = "agentrelay"
	ClientVersion   = "1.0.0"
	ProtocolVersion = "2025-06-18"
)

// HTTPDialer connects to remote tool servers over streamable HTTP or SSE.
type HTTPDialer struct {
	// HandshakeTimeout bounds Initialize. Zero means no extra bound.
	HandshakeTimeout time.Duration
}

// NewHTTPDialer returns a dialer with a 30 second handshake timeout.
func NewHTTPDialer() *HTTPDialer {
	return &HTTPDialer{HandshakeTimeout: 30 * time.Second}
}

func (d *HTTPDialer) Dial(ctx context.Context, server Server) (Session, error) {
	// The transport keeps the context given to Start for its whole lifetime
	// (the SSE stream in particular), so it must not be the caller's.
	mcpClient, err := createRemoteClient(context.WithoutCancel(ctx), server)
	if err != nil {
		return nil, err
	}

	initCtx := ctx
	if d.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, d.HandshakeTimeout)
		defer cancel()
	}

	if err := initialize(initCtx, mcpClient); err != nil {
		mcpClient.Close()
		return nil, fmt.Errorf("failed to initialize %s: %w", server.Name, err)
	}

	return &clientSession{client: mcpClient}, nil
}

func createRemoteClient(ctx context.Context, server Server) (*client.Client, error) {
	switch server.Transport {
	case "", TransportStreamableHTTP:
		return createStreamableHTTPClient(ctx, server)
	case TransportSSE:
		return createSSEClient(ctx, server)
	default:
		return nil, fmt.Errorf("unknown transport type: %s", server.Transport)
	}
}

func createStreamableHTTPClient(ctx context.Context, server Server) (*client.Client, error) {
	var opts []transport.StreamableHTTPCOption
	if len(server.Headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(server.Headers))
	}

	mcpClient, err := client.NewStreamableHttpClient(server.URL, opts...)
	if err != nil {
		return nil, err
	}

	// Start HTTP transport (required before Initialize/ListTools)
	if err := mcpClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start HTTP transport: %w", err)
	}

	logger().Debug().Str("server", server.Name).Msg("started streamable HTTP transport")
	return mcpClient, nil
}

func createSSEClient(ctx context.Context, server Server) (*client.Client, error) {
	var opts []transport.ClientOption
	if len(server.Headers) > 0 {
		opts = append(opts, transport.WithHeaders(server.Headers))
	}

	mcpClient, err := client.NewSSEMCPClient(server.URL, opts...)
	if err != nil {
		return nil, err
	}

	// Start SSE transport (required before Initialize/ListTools)
	if err := mcpClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start SSE transport: %w", err)
	}

	logger().Debug().Str("server", server.Name).Msg("started SSE transport")
	return mcpClient, nil
}

func initialize(ctx context.Context, c *client.Client) error {
	initReq := mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    ClientName,
				Version: ClientVersion,
			},
		},
	}
	_, err := c.Initialize(ctx, initReq)
	return err
}

type clientSession struct {
	client *client.Client
}

// ListTools returns every page; the client follows NextCursor until the
// server stops sending one.
func (s *clientSession) ListTools(ctx context.Context) ([]mcptypes.Tool, error) {
	result, err := s.client.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	return result.Tools, nil
}

func (s *clientSession) CallTool(ctx context.Context, name string, args map[string]any) (*mcptypes.CallToolResult, error) {
	return s.client.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
}

func (s *clientSession) Close() error {
	return s.client.Close()
}

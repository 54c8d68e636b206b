package tools

import (
	"context"
	"fmt"

	"agentrelay/mcp"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/sourcegraph/conc/pool"
)

// MaxConcurrentDiscovery bounds how many servers are contacted at once.
const MaxConcurrentDiscovery = 8

// Connector resolves a live connection to a tool server.
// *mcp.ConnectionCache implements it.
type Connector interface {
	Get(ctx context.Context, server mcp.Server) (*mcp.Connection, error)
}

// invalidator is implemented by connectors that can drop a broken
// connection so the next Get dials again.
type invalidator interface {
	Invalidate(conn *mcp.Connection)
}

// Build returns local ∪ the tools of every server. Servers are contacted
// concurrently but their tools are appended in configuration order. A server
// that cannot be reached is logged and contributes no tools.
func Build(ctx context.Context, local []Definition, servers []mcp.Server, conn Connector) *Registry {
	alloc := newNameAllocator()
	defs := make([]Definition, 0, len(local))
	for _, d := range local {
		if !alloc.reserve(d.Name) {
			logger().Warn().Str("tool", d.Name).Msg("duplicate local tool name, keeping the first")
			continue
		}
		defs = append(defs, d)
	}

	discovered := make([][]mcptypes.Tool, len(servers))
	if conn != nil && len(servers) > 0 {
		p := pool.New().WithMaxGoroutines(MaxConcurrentDiscovery)
		for i, server := range servers {
			p.Go(func() {
				c, err := conn.Get(ctx, server)
				if err != nil {
					logger().Warn().Err(err).Str("server", server.Name).Str("url", server.URL).Msg("tool discovery failed, skipping server")
					return
				}
				discovered[i] = c.Tools
			})
		}
		p.Wait()
	}

	for i, server := range servers {
		for _, tool := range discovered[i] {
			defs = append(defs, remoteDefinition(alloc.allocate(server.Name, tool.Name), server, tool, conn))
		}
	}

	return NewRegistry(defs)
}

// remoteDefinition adapts a remote tool. Run resolves the connection through
// conn on every call, so an expired connection is refreshed rather than
// reused. A transport failure evicts the connection; an error result does not.
func remoteDefinition(name string, server mcp.Server, tool mcptypes.Tool, conn Connector) Definition {
	return Definition{
		Name:        name,
		Description: tool.Description,
		Parameters:  tool.InputSchema,
		Origin:      OriginRemote,
		Server:      server.Name,
		RemoteName:  tool.Name,
		Run: func(ctx context.Context, args map[string]any) (any, error) {
			c, err := conn.Get(ctx, server)
			if err != nil {
				return nil, fmt.Errorf("tool server %s unavailable: %w", server.Name, err)
			}
			result, err := c.CallTool(ctx, tool.Name, args)
			if err != nil {
				if inv, ok := conn.(invalidator); ok && ctx.Err() == nil {
					inv.Invalidate(c)
				}
				return nil, fmt.Errorf("call %s on %s: %w", tool.Name, server.Name, err)
			}
			return mcp.ResultText(result)
		},
	}
}

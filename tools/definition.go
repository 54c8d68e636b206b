// Package tools assembles the set of tools a run may call: local Go
// functions plus tools discovered on remote MCP servers.
package tools

import (
	"context"

	"agentrelay/config"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
)

// Origin tells where a tool runs.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// RunFunc executes a tool with decoded arguments. A string result is passed
// to the model verbatim; anything else is JSON-encoded.
type RunFunc func(ctx context.Context, args map[string]any) (any, error)

// Definition is one callable tool.
type Definition struct {
	Name        string
	Description string
	Parameters  mcptypes.ToolInputSchema
	Origin      Origin
	// Server and RemoteName identify the tool on its MCP server.
	Server     string
	RemoteName string
	// Interactive tools need the end user; the run loop stops instead of
	// calling them.
	Interactive bool
	Run         RunFunc
}

// Tool returns the MCP description of d offered to the model.
func (d Definition) Tool() mcptypes.Tool {
	return mcptypes.Tool{
		Name:        d.Name,
		Description: d.Description,
		InputSchema: d.Parameters,
	}
}

func logger() *zerolog.Logger {
	return config.Logger("tools")
}

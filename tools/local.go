package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// LocalOption customizes a local tool.
type LocalOption func(*Definition)

// Interactive marks the tool as requiring the end user.
func Interactive() LocalOption {
	return func(d *Definition) { d.Interactive = true }
}

// NewLocal builds a local tool whose parameters are described by the struct
// type T. Field names come from json tags; fields without omitempty are
// required, and `jsonschema:"description=..."` tags document them.
func NewLocal[T any](name, description string, run func(ctx context.Context, args T) (any, error), opts ...LocalOption) Definition {
	def := Definition{
		Name:        name,
		Description: description,
		Parameters:  SchemaFor[T](),
		Origin:      OriginLocal,
		Run: func(ctx context.Context, args map[string]any) (any, error) {
			var typed T
			data, err := json.Marshal(args)
			if err != nil {
				return nil, fmt.Errorf("failed to encode arguments: %w", err)
			}
			if err := json.Unmarshal(data, &typed); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
			return run(ctx, typed)
		},
	}
	for _, opt := range opts {
		opt(&def)
	}
	return def
}

// SchemaFor reflects T into an MCP input schema.
func SchemaFor[T any]() mcptypes.ToolInputSchema {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	var zero T
	schema := reflector.Reflect(&zero)

	var out mcptypes.ToolInputSchema
	data, err := json.Marshal(schema)
	if err == nil {
		err = json.Unmarshal(data, &out)
	}
	if err != nil {
		logger().Warn().Err(err).Msg("failed to convert reflected schema")
	}
	if out.Type == "" {
		out.Type = "object"
	}
	if out.Properties == nil {
		out.Properties = map[string]any{}
	}
	return out
}

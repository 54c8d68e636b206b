package tools

import (
	"sync"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/sahilm/fuzzy"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Registry is the immutable set of tools for one run, in a stable order:
// local tools first, then remote tools in server configuration order.
type Registry struct {
	defs   []Definition
	byName map[string]int

	mu      sync.Mutex
	schemas map[string]*jsonschema.Schema
}

// NewRegistry indexes defs. A name already taken is dropped with a warning.
func NewRegistry(defs []Definition) *Registry {
	r := &Registry{
		byName:  make(map[string]int, len(defs)),
		schemas: make(map[string]*jsonschema.Schema),
	}
	for _, d := range defs {
		if _, dup := r.byName[d.Name]; dup {
			logger().Warn().Str("tool", d.Name).Msg("duplicate tool name, keeping the first")
			continue
		}
		r.byName[d.Name] = len(r.defs)
		r.defs = append(r.defs, d)
	}
	return r
}

// Lookup returns the tool with the given name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Definition{}, false
	}
	return r.defs[i], true
}

// Definitions returns every tool in registry order.
func (r *Registry) Definitions() []Definition {
	return append([]Definition(nil), r.defs...)
}

// Len returns the number of tools.
func (r *Registry) Len() int {
	return len(r.defs)
}

// Tools returns the MCP descriptions of every tool, for the model.
func (r *Registry) Tools() []mcptypes.Tool {
	out := make([]mcptypes.Tool, len(r.defs))
	for i, d := range r.defs {
		out[i] = d.Tool()
	}
	return out
}

// Subset returns a registry restricted to names, in registry order. Unknown
// names are ignored. An empty list selects everything.
func (r *Registry) Subset(names []string) *Registry {
	if len(names) == 0 {
		return r
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := r.byName[n]; !ok {
			logger().Debug().Str("tool", n).Msg("requested tool not in registry")
		}
		want[n] = true
	}
	var defs []Definition
	for _, d := range r.defs {
		if want[d.Name] {
			defs = append(defs, d)
		}
	}
	return NewRegistry(defs)
}

// Suggest returns the registered name closest to name, or "" when nothing
// resembles it.
func (r *Registry) Suggest(name string) string {
	if len(r.defs) == 0 || name == "" {
		return ""
	}
	names := make([]string, len(r.defs))
	for i, d := range r.defs {
		names[i] = d.Name
	}
	if matches := fuzzy.Find(name, names); len(matches) > 0 {
		return matches[0].Str
	}
	// Typos rarely keep every character; try the other direction.
	best := ""
	for _, n := range names {
		if m := fuzzy.Find(n, []string{name}); len(m) > 0 && len(n) > len(best) {
			best = n
		}
	}
	return best
}

package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ArgumentError reports arguments that could not be parsed or do not match
// the tool's parameter schema.
type ArgumentError struct {
	Tool   string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Reason)
}

// ParseArguments decodes raw JSON arguments for def and validates them
// against its parameter schema. Empty input means no arguments.
func (r *Registry) ParseArguments(def Definition, raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = "{}"
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, &ArgumentError{Tool: def.Name, Reason: "arguments are not a JSON object: " + err.Error()}
	}
	if args == nil {
		args = map[string]any{}
	}

	schema := r.schema(def)
	if schema == nil {
		return args, nil
	}

	// Validate against a UseNumber decoding so integer checks are exact.
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var instance any
	if err := dec.Decode(&instance); err != nil {
		return nil, &ArgumentError{Tool: def.Name, Reason: err.Error()}
	}
	if instance == nil {
		instance = map[string]any{}
	}

	if err := schema.Validate(instance); err != nil {
		return nil, &ArgumentError{Tool: def.Name, Reason: validationReason(err)}
	}
	return args, nil
}

// schema compiles and caches the parameter schema of def. A schema that does
// not compile disables validation for that tool.
func (r *Registry) schema(def Definition) *jsonschema.Schema {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.schemas[def.Name]; ok {
		return s
	}

	s, err := compileSchema(def)
	if err != nil {
		logger().Debug().Err(err).Str("tool", def.Name).Msg("parameter schema not usable, skipping validation")
	}
	r.schemas[def.Name] = s
	return s
}

func compileSchema(def Definition) (*jsonschema.Schema, error) {
	doc := map[string]any{"type": def.Parameters.Type}
	if def.Parameters.Type == "" {
		doc["type"] = "object"
	}
	if def.Parameters.Properties != nil {
		doc["properties"] = def.Parameters.Properties
	}
	if len(def.Parameters.Required) > 0 {
		doc["required"] = def.Parameters.Required
	}
	if def.Parameters.Defs != nil {
		doc["$defs"] = def.Parameters.Defs
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	url := "mem://tools/" + def.Name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

func validationReason(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	location := leaf.InstanceLocation
	if location == "" {
		location = "/"
	}
	return location + ": " + leaf.Message
}

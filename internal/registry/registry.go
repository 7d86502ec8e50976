// Package registry implements the Tool Registry (C1, spec.md §4.1): a
// read-only-after-startup, thread-safe map from tool name to descriptor +
// handler, grounded on the teacher's internal/agent/tool_registry.go
// (ToolRegistry.Register/Get/Execute) and generalized to the richer
// ToolDescriptor shape spec.md §3 requires (parameter schema, credit cost,
// confirmation flag, category). Each descriptor's parameter list is also
// compiled to a JSON Schema document at registration time, grounded on
// the teacher's internal/gateway/ws_schema.go use of
// santhosh-tekuri/jsonschema/v5 to compile-once/validate-many against a
// fixed set of schemas.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/adpilot-ai/agentkernel/internal/errtax"
	"github.com/adpilot-ai/agentkernel/pkg/models"
)

// Handler executes a tool call. Implementations must not retain params
// after returning (spec.md §4.1).
type Handler func(ctx context.Context, params map[string]any, tc models.ToolContext) models.Observation

// ErrDuplicateTool is returned by Register when the name already exists.
var ErrDuplicateTool = fmt.Errorf("duplicate_tool")

// ErrInvalidSchema is returned by Register when the descriptor's parameter
// schema is malformed.
var ErrInvalidSchema = fmt.Errorf("invalid_schema")

// ErrUnknownTool is returned by Lookup when no tool is registered under
// that name.
var ErrUnknownTool = fmt.Errorf("unknown_tool")

type entry struct {
	descriptor models.ToolDescriptor
	handler    Handler
	schema     *jsonschema.Schema
}

// Registry is the tool catalog. Safe for concurrent registration and
// lookup, though in normal operation all registration happens at startup
// before any lookup (spec.md §4.1 invariant).
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]entry
	order   []string // registration order, for DescribeAll's stable order
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{byName: make(map[string]entry)}
}

// Register adds a tool. It fails with ErrDuplicateTool if the name is
// already registered, or ErrInvalidSchema if the descriptor's parameter
// list is malformed (duplicate parameter names, or an enum on a
// non-string parameter).
func (r *Registry) Register(descriptor models.ToolDescriptor, handler Handler) error {
	if err := validateDescriptor(descriptor); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	schema, err := compileParameterSchema(descriptor)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[descriptor.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, descriptor.Name)
	}
	r.byName[descriptor.Name] = entry{descriptor: descriptor, handler: handler, schema: schema}
	r.order = append(r.order, descriptor.Name)
	return nil
}

// ValidateParams checks params against name's compiled parameter schema,
// returning an errtax validation error (spec.md §4.7/§4.8: malformed tool
// input is a non-retryable validation failure, surfaced before the tool
// handler or Credit Gate ever sees the call) describing the first schema
// violation. Unknown tool names are reported as ErrUnknownTool, not a
// validation error, since that is a Registry-level condition the
// Executor already distinguishes via FatalError.
func (r *Registry) ValidateParams(name string, params map[string]any) error {
	r.mu.RLock()
	e, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if e.schema == nil {
		return nil
	}

	// jsonschema validates against Go values produced by encoding/json
	// (map[string]any, []any, float64, ...); round-tripping through
	// json.Marshal/Unmarshal normalizes caller-supplied params (which may
	// contain int, time.Time, etc. from upstream decoding) into that
	// shape instead of requiring every caller to pre-normalize.
	raw, err := json.Marshal(params)
	if err != nil {
		return errtax.New(errtax.KindValidation, err, nil)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return errtax.New(errtax.KindValidation, err, nil)
	}
	if err := e.schema.Validate(doc); err != nil {
		return errtax.New(errtax.KindValidation, err, map[string]any{"tool": name})
	}
	return nil
}

// compileParameterSchema turns a ToolDescriptor's ordered Parameter list
// into a JSON Schema object document and compiles it, so a schema that
// fails to compile is caught at registration time rather than on the
// first call. Parameter defaults are not part of the schema, so a default
// that doesn't match its declared type is not caught here.
func compileParameterSchema(d models.ToolDescriptor) (*jsonschema.Schema, error) {
	properties := make(map[string]any, len(d.Parameters))
	var required []string
	for _, p := range d.Parameters {
		prop := map[string]any{"type": jsonSchemaType(p.Type)}
		if len(p.Enum) > 0 {
			enum := make([]any, len(p.Enum))
			for i, v := range p.Enum {
				enum[i] = v
			}
			prop["enum"] = enum
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	doc := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": true,
	}
	if len(required) > 0 {
		doc["required"] = required
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal parameter schema: %w", err)
	}
	return jsonschema.CompileString("agentkernel://tools/"+d.Name, string(raw))
}

// jsonSchemaType maps this module's Parameter.Type to its JSON Schema
// equivalent; ParamInteger compiles to JSON Schema's own "integer" type,
// which jsonschema/v5 supports natively. Unknown types compile to "string".
func jsonSchemaType(t models.ParamType) string {
	switch t {
	case models.ParamInteger:
		return "integer"
	case models.ParamNumber:
		return "number"
	case models.ParamBoolean:
		return "boolean"
	case models.ParamObject:
		return "object"
	case models.ParamArray:
		return "array"
	default:
		return "string"
	}
}

// Lookup returns the descriptor and handler for name, or ErrUnknownTool.
func (r *Registry) Lookup(name string) (models.ToolDescriptor, Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	if !ok {
		return models.ToolDescriptor{}, nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return e.descriptor, e.handler, nil
}

// Has reports whether a tool by that name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// DescribeAll returns every registered descriptor in registration order
// (spec.md §4.1).
func (r *Registry) DescribeAll() []models.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name].descriptor)
	}
	return out
}

func validateDescriptor(d models.ToolDescriptor) error {
	if d.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	seen := make(map[string]struct{}, len(d.Parameters))
	for _, p := range d.Parameters {
		if p.Name == "" {
			return fmt.Errorf("parameter with empty name")
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("duplicate parameter %q", p.Name)
		}
		seen[p.Name] = struct{}{}
		if len(p.Enum) > 0 && p.Type != models.ParamString {
			return fmt.Errorf("parameter %q: enum only valid on string parameters", p.Name)
		}
	}
	if d.CreditCost != nil && *d.CreditCost < 0 {
		return fmt.Errorf("credit_cost must be non-negative")
	}
	return nil
}

// Package tools defines the uniform tool surface advertised to the
// model: JSON-schema descriptors, toolboxes grouping related functions,
// and a registry that dispatches calls.
package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/haasonsaas/helmsman/internal/llm"
	"github.com/haasonsaas/helmsman/pkg/models"
)

// Param describes one tool parameter in JSON-Schema terms.
type Param map[string]any

// Schema describes one callable function.
type Schema struct {
	Name        string
	Description string
	Params      map[string]Param
	Required    []string
}

// Parameters renders the schema's parameter block for the LLM API.
func (s Schema) Parameters() map[string]any {
	properties := map[string]any{}
	for name, p := range s.Params {
		properties[name] = map[string]any(p)
	}
	required := s.Required
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// Toolbox groups related functions behind one name (browser, shell,
// file, search, message, mcp, a2a).
type Toolbox interface {
	Name() string
	Schemas() []Schema
	Invoke(ctx context.Context, function string, args map[string]any) *models.ToolResult
}

// Registry maps function names to their owning toolbox.
type Registry struct {
	mu        sync.RWMutex
	toolboxes []Toolbox
	owners    map[string]Toolbox
	schemas   map[string]Schema
}

func NewRegistry(toolboxes ...Toolbox) *Registry {
	r := &Registry{
		owners:  make(map[string]Toolbox),
		schemas: make(map[string]Schema),
	}
	for _, tb := range toolboxes {
		r.Register(tb)
	}
	return r
}

// Register adds a toolbox. Later registrations win on name collisions.
func (r *Registry) Register(tb Toolbox) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolboxes = append(r.toolboxes, tb)
	for _, schema := range tb.Schemas() {
		r.owners[schema.Name] = tb
		r.schemas[schema.Name] = schema
	}
}

// Schemas returns the flat list of function schemas, in registration
// order.
func (r *Registry) Schemas() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Schema
	for _, tb := range r.toolboxes {
		out = append(out, tb.Schemas()...)
	}
	return out
}

// LLMTools renders every schema as an LLM function definition.
func (r *Registry) LLMTools() []llm.Tool {
	schemas := r.Schemas()
	out := make([]llm.Tool, len(schemas))
	for i, s := range schemas {
		out[i] = llm.Tool{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  s.Parameters(),
		}
	}
	return out
}

// Has reports whether a function is registered.
func (r *Registry) Has(function string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.owners[function]
	return ok
}

// Resolve returns the toolbox owning a function.
func (r *Registry) Resolve(function string) (Toolbox, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tb, ok := r.owners[function]
	return tb, ok
}

// Invoke dispatches a function call to its toolbox, dropping arguments
// the function does not declare.
func (r *Registry) Invoke(ctx context.Context, function string, args map[string]any) (*models.ToolResult, error) {
	r.mu.RLock()
	tb, ok := r.owners[function]
	schema := r.schemas[function]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", function)
	}

	filtered := make(map[string]any, len(args))
	for name := range schema.Params {
		if v, present := args[name]; present {
			filtered[name] = v
		}
	}
	return tb.Invoke(ctx, function, filtered), nil
}

// Argument extraction helpers shared by the toolboxes. Models send
// numbers as float64 and occasionally quote booleans and integers.

func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func argBool(args map[string]any, key string) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

func argInt(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

func argFloat(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

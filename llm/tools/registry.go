package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/nid-27/regnex/internal/metrics"
	providershared "github.com/nid-27/regnex/llm/providers/shared"
	toolshared "github.com/nid-27/regnex/llm/tools/shared"
)

// Tool defines the interface that all tools must implement
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]any
	Execute(ctx context.Context, input *toolshared.ToolInput) (*toolshared.ToolResult, error)
}

type entry struct {
	tool   Tool
	schema *gojsonschema.Schema
}

// Registry manages tool registration and execution
type Registry struct {
	mu    sync.RWMutex
	tools map[string]entry
}

// NewRegistry creates a new tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]entry),
	}
}

// Register adds a tool to the registry. The input schema is compiled once
// here and used to check every call.
func (r *Registry) Register(tool Tool) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(tool.Schema()))
	if err != nil {
		return fmt.Errorf("invalid schema for tool %s: %w", tool.Name(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name()]; exists {
		return fmt.Errorf("tool already registered: %s", tool.Name())
	}
	r.tools[tool.Name()] = entry{tool: tool, schema: schema}
	return nil
}

// MustRegister is Register for static tool sets
func (r *Registry) MustRegister(tools ...Tool) *Registry {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, exists := r.tools[name]
	if !exists {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return e.tool, nil
}

// List returns the registered tool names in order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the provider tool definitions in name order
func (r *Registry) Definitions() []providershared.ToolDef {
	names := r.List()
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]providershared.ToolDef, 0, len(names))
	for _, name := range names {
		t := r.tools[name].tool
		defs = append(defs, toolshared.ToDefinition(t.Name(), t.Description(), t.Schema()))
	}
	return defs
}

// Execute runs a tool by name with the given input. Unknown tools and
// arguments that fail the schema produce an unsuccessful result so the model
// can correct itself; a Go error means the tool itself broke.
func (r *Registry) Execute(ctx context.Context, input *toolshared.ToolInput) (*toolshared.ToolResult, error) {
	r.mu.RLock()
	e, exists := r.tools[input.Name]
	r.mu.RUnlock()
	if !exists {
		// the name comes from the model, keep it out of the labels
		metrics.ToolCalls.WithLabelValues("unknown", "not_found").Inc()
		return toolshared.Failure("tool not found: %s (available: %s)", input.Name, strings.Join(r.List(), ", ")), nil
	}

	if input.Data == nil {
		input.Data = map[string]any{}
	}
	if msg := validate(e.schema, input.Data); msg != "" {
		metrics.ToolCalls.WithLabelValues(input.Name, "invalid").Inc()
		return toolshared.Failure("invalid arguments for %s: %s", input.Name, msg), nil
	}

	start := time.Now()
	result, err := e.tool.Execute(ctx, input)
	if err != nil {
		metrics.ToolCalls.WithLabelValues(input.Name, "error").Inc()
		return nil, err
	}

	status := "success"
	if !result.Success {
		status = "failure"
	}
	metrics.ToolCalls.WithLabelValues(input.Name, status).Inc()
	result.Stats.ExecutionTime = time.Since(start)
	return result, nil
}

func validate(schema *gojsonschema.Schema, data map[string]any) string {
	result, err := schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return err.Error()
	}
	if result.Valid() {
		return ""
	}
	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return strings.Join(errs, "; ")
}

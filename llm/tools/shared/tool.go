package shared

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	providershared "github.com/nid-27/regnex/llm/providers/shared"
)

// ToolInput represents input data for tool execution
type ToolInput struct {
	Name string         `json:"name"`
	Data map[string]any `json:"data"`
	// Call is the model request this input came from, if any.
	Call providershared.ToolCall `json:"call,omitempty"`
}

// ToolResult represents the result of tool execution
type ToolResult struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Stats   ToolStats      `json:"stats,omitempty"`
}

// ToolStats tracks tool execution statistics
type ToolStats struct {
	ExecutionTime time.Duration `json:"execution_time"`
	TokensUsed    int           `json:"tokens_used,omitempty"`
}

// Failure builds an unsuccessful result. Tools return these instead of Go
// errors when the model can fix the call and retry.
func Failure(format string, args ...any) *ToolResult {
	return &ToolResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Content renders the result as the tool message sent back to the model
func (r *ToolResult) Content() string {
	if !r.Success {
		return "Error: " + r.Error
	}
	data, err := json.Marshal(r.Data)
	if err != nil {
		return fmt.Sprintf("Error: failed to encode tool result: %v", err)
	}
	return string(data)
}

// ToDefinition converts a tool description into the provider tool format
func ToDefinition(name, description string, schema map[string]any) providershared.ToolDef {
	return providershared.ToolDef{
		Name:        name,
		Description: description,
		JSONSchema:  schema,
	}
}

// StringArg reads a trimmed string argument
func StringArg(data map[string]any, key string) string {
	v, _ := data[key].(string)
	return strings.TrimSpace(v)
}

// IntArg reads an integer argument, falling back to def when absent.
// JSON numbers decode as float64.
func IntArg(data map[string]any, key string, def int) int {
	switch v := data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}

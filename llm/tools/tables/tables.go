// Package tables exposes the CSV stock data to agents.
package tables

import (
	"context"
	"errors"

	"github.com/nid-27/regnex/internal/knowledge"
	toolshared "github.com/nid-27/regnex/llm/tools/shared"
)

// Store is the part of the table store the tools read from
type Store interface {
	Get(name string) (*knowledge.Table, error)
	List() []knowledge.TableInfo
}

const (
	defaultRows = 10
	maxRows     = 200
)

var tableProperty = map[string]any{
	"type":        "string",
	"minLength":   1,
	"description": "CSV file name as shown by list_tables, with or without the .csv extension",
}

// lookupFailure turns a missing table or column into a result the model can
// act on.
func lookupFailure(err error) (*toolshared.ToolResult, error) {
	if errors.Is(err, knowledge.ErrTableNotFound) || errors.Is(err, knowledge.ErrColumnNotFound) {
		return toolshared.Failure("%v", err), nil
	}
	return nil, err
}

// ListTool lists the loaded CSV files
type ListTool struct {
	store Store
}

// NewListTool creates the list_tables tool
func NewListTool(store Store) *ListTool {
	return &ListTool{store: store}
}

func (t *ListTool) Name() string { return "list_tables" }

func (t *ListTool) Description() string {
	return "Lists the CSV data files with their row counts and column names"
}

func (t *ListTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// Execute returns the table listing
func (t *ListTool) Execute(ctx context.Context, input *toolshared.ToolInput) (*toolshared.ToolResult, error) {
	tables := t.store.List()
	return &toolshared.ToolResult{
		Success: true,
		Data: map[string]any{
			"count":  len(tables),
			"tables": tables,
		},
	}, nil
}

// DescribeTool computes summary statistics for a table
type DescribeTool struct {
	store Store
}

// NewDescribeTool creates the describe_table tool
func NewDescribeTool(store Store) *DescribeTool {
	return &DescribeTool{store: store}
}

func (t *DescribeTool) Name() string { return "describe_table" }

func (t *DescribeTool) Description() string {
	return "Returns statistics for every column of a CSV file: count, min, max, mean, standard deviation, first and last value and percent change for numeric columns, top values for text columns"
}

func (t *DescribeTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"table": tableProperty,
		},
		"required": []string{"table"},
	}
}

// Execute describes the table
func (t *DescribeTool) Execute(ctx context.Context, input *toolshared.ToolInput) (*toolshared.ToolResult, error) {
	table, err := t.store.Get(toolshared.StringArg(input.Data, "table"))
	if err != nil {
		return lookupFailure(err)
	}
	return &toolshared.ToolResult{
		Success: true,
		Data:    map[string]any{"summary": table.Describe()},
	}, nil
}

// QueryTool returns rows matching a value
type QueryTool struct {
	store Store
}

// NewQueryTool creates the query_table tool
func NewQueryTool(store Store) *QueryTool {
	return &QueryTool{store: store}
}

func (t *QueryTool) Name() string { return "query_table" }

func (t *QueryTool) Description() string {
	return "Finds rows of a CSV file where a column equals a value (case-insensitive, falling back to prefix match, so a date like 2005-03-11 matches timestamps on that day). Leave column empty to search all columns"
}

func (t *QueryTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"table": tableProperty,
			"column": map[string]any{
				"type":        "string",
				"description": "Column to match, e.g. Date",
			},
			"value": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Value to look for",
			},
			"limit": map[string]any{
				"type":    "integer",
				"minimum": 1,
				"maximum": maxRows,
			},
		},
		"required": []string{"table", "value"},
	}
}

// Execute runs the lookup
func (t *QueryTool) Execute(ctx context.Context, input *toolshared.ToolInput) (*toolshared.ToolResult, error) {
	table, err := t.store.Get(toolshared.StringArg(input.Data, "table"))
	if err != nil {
		return lookupFailure(err)
	}

	column := toolshared.StringArg(input.Data, "column")
	value := toolshared.StringArg(input.Data, "value")
	rows, err := table.Lookup(column, value, toolshared.IntArg(input.Data, "limit", defaultRows))
	if err != nil {
		return lookupFailure(err)
	}

	data := map[string]any{
		"table":   table.Name,
		"columns": table.Columns,
		"count":   len(rows),
		"rows":    rows,
	}
	if len(rows) == 0 {
		data["note"] = "no rows matched " + value
	}
	return &toolshared.ToolResult{Success: true, Data: data}, nil
}

// HeadTool returns the first or last rows of a table
type HeadTool struct {
	store Store
}

// NewHeadTool creates the head_table tool
func NewHeadTool(store Store) *HeadTool {
	return &HeadTool{store: store}
}

func (t *HeadTool) Name() string { return "head_table" }

func (t *HeadTool) Description() string {
	return "Returns the first rows of a CSV file, or the last rows when from_end is true"
}

func (t *HeadTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"table": tableProperty,
			"limit": map[string]any{
				"type":    "integer",
				"minimum": 1,
				"maximum": maxRows,
			},
			"from_end": map[string]any{
				"type":        "boolean",
				"description": "Return the most recent rows instead of the first ones",
			},
		},
		"required": []string{"table"},
	}
}

// Execute returns the rows
func (t *HeadTool) Execute(ctx context.Context, input *toolshared.ToolInput) (*toolshared.ToolResult, error) {
	table, err := t.store.Get(toolshared.StringArg(input.Data, "table"))
	if err != nil {
		return lookupFailure(err)
	}

	n := toolshared.IntArg(input.Data, "limit", defaultRows)
	rows := table.Head(n)
	if fromEnd, _ := input.Data["from_end"].(bool); fromEnd {
		rows = table.Tail(n)
	}
	return &toolshared.ToolResult{
		Success: true,
		Data: map[string]any{
			"table":      table.Name,
			"columns":    table.Columns,
			"total_rows": len(table.Rows),
			"rows":       rows,
		},
	}, nil
}

// Package documents exposes the finance document store to agents.
package documents

import (
	"context"

	"github.com/nid-27/regnex/internal/knowledge"
	"github.com/nid-27/regnex/internal/processing"
	toolshared "github.com/nid-27/regnex/llm/tools/shared"
	"github.com/nid-27/regnex/pkg/interfaces"
)

// Store is the part of the document store the tools read from
type Store interface {
	interfaces.Searcher
	Get(name string) (*knowledge.Document, bool)
	List() []knowledge.DocumentInfo
}

const (
	defaultLimit    = 5
	maxLimit        = 20
	defaultMaxChars = 12000
)

// SearchTool ranks document passages against a query
type SearchTool struct {
	store        Store
	defaultLimit int
}

// NewSearchTool creates the search_documents tool
func NewSearchTool(store Store, limit int) *SearchTool {
	if limit <= 0 {
		limit = defaultLimit
	}
	return &SearchTool{store: store, defaultLimit: limit}
}

func (t *SearchTool) Name() string { return "search_documents" }

func (t *SearchTool) Description() string {
	return "Searches the financial documents knowledge base and returns the most relevant passages with their source file"
}

func (t *SearchTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Keywords or a question describing what to find, e.g. 'quarterly revenue guidance'",
			},
			"limit": map[string]any{
				"type":        "integer",
				"minimum":     1,
				"maximum":     maxLimit,
				"description": "Maximum number of passages to return",
			},
		},
		"required": []string{"query"},
	}
}

// Execute runs the search
func (t *SearchTool) Execute(ctx context.Context, input *toolshared.ToolInput) (*toolshared.ToolResult, error) {
	query := toolshared.StringArg(input.Data, "query")
	limit := toolshared.IntArg(input.Data, "limit", t.defaultLimit)

	results, err := t.store.Search(ctx, query, limit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return toolshared.Failure("search failed: %v", err), nil
	}

	passages := make([]map[string]any, 0, len(results))
	for _, r := range results {
		passages = append(passages, map[string]any{
			"source": r.Chunk.Source,
			"chunk":  r.Chunk.ChunkIndex,
			"score":  round(r.Score),
			"text":   r.Chunk.Text,
		})
	}

	data := map[string]any{
		"query":    query,
		"count":    len(passages),
		"passages": passages,
	}
	if len(passages) == 0 {
		data["note"] = "no passages matched; try different keywords or list_documents"
	}
	return &toolshared.ToolResult{Success: true, Data: data}, nil
}

func round(f float64) float64 {
	return float64(int(f*1000+0.5)) / 1000
}

// ListTool lists the loaded documents
type ListTool struct {
	store Store
}

// NewListTool creates the list_documents tool
func NewListTool(store Store) *ListTool {
	return &ListTool{store: store}
}

func (t *ListTool) Name() string { return "list_documents" }

func (t *ListTool) Description() string {
	return "Lists the financial documents available in the knowledge base"
}

func (t *ListTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// Execute returns the document listing
func (t *ListTool) Execute(ctx context.Context, input *toolshared.ToolInput) (*toolshared.ToolResult, error) {
	docs := t.store.List()
	return &toolshared.ToolResult{
		Success: true,
		Data: map[string]any{
			"count":     len(docs),
			"documents": docs,
		},
	}, nil
}

// ReadTool returns the text of a single document
type ReadTool struct {
	store Store
}

// NewReadTool creates the read_document tool
func NewReadTool(store Store) *ReadTool {
	return &ReadTool{store: store}
}

func (t *ReadTool) Name() string { return "read_document" }

func (t *ReadTool) Description() string {
	return "Reads the full text of one financial document by file name, truncated to max_chars characters"
}

func (t *ReadTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Document file name as shown by list_documents",
			},
			"max_chars": map[string]any{
				"type":        "integer",
				"minimum":     100,
				"description": "Maximum number of characters to return",
			},
		},
		"required": []string{"name"},
	}
}

// Execute reads the document
func (t *ReadTool) Execute(ctx context.Context, input *toolshared.ToolInput) (*toolshared.ToolResult, error) {
	name := toolshared.StringArg(input.Data, "name")
	doc, ok := t.store.Get(name)
	if !ok {
		return toolshared.Failure("document not found: %s", name), nil
	}

	maxChars := toolshared.IntArg(input.Data, "max_chars", defaultMaxChars)
	text := processing.TruncateText(doc.Content, maxChars)
	return &toolshared.ToolResult{
		Success: true,
		Data: map[string]any{
			"name":      doc.Name,
			"encoding":  doc.Encoding,
			"truncated": processing.Truncates(doc.Content, maxChars),
			"content":   text,
		},
	}, nil
}

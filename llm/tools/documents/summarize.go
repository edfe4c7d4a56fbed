package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/nid-27/regnex/internal/processing"
	"github.com/nid-27/regnex/llm/providers/shared"
	toolshared "github.com/nid-27/regnex/llm/tools/shared"
)

const (
	defaultSummaryWords = 200
	maxSummaryInput     = 60000
)

// SummarizeTool condenses one document with a separate model call, so long
// reports do not have to be read into the agent's context.
type SummarizeTool struct {
	store    Store
	provider shared.LLMProvider
	model    string
}

// NewSummarizeTool creates the summarize_document tool
func NewSummarizeTool(store Store, provider shared.LLMProvider, model string) *SummarizeTool {
	return &SummarizeTool{store: store, provider: provider, model: model}
}

func (t *SummarizeTool) Name() string { return "summarize_document" }

func (t *SummarizeTool) Description() string {
	return "Summarizes one financial document by file name, keeping figures, dates and the overall tone"
}

func (t *SummarizeTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Document file name as shown by list_documents",
			},
			"max_words": map[string]any{
				"type":        "integer",
				"minimum":     20,
				"maximum":     1000,
				"description": "Upper bound on the summary length in words",
			},
		},
		"required": []string{"name"},
	}
}

// Execute summarizes the document
func (t *SummarizeTool) Execute(ctx context.Context, input *toolshared.ToolInput) (*toolshared.ToolResult, error) {
	name := toolshared.StringArg(input.Data, "name")
	doc, ok := t.store.Get(name)
	if !ok {
		return toolshared.Failure("document not found: %s", name), nil
	}

	maxWords := toolshared.IntArg(input.Data, "max_words", defaultSummaryWords)
	content := processing.TruncateText(doc.Content, maxSummaryInput)

	messages := []shared.Message{{
		Role: shared.RoleUser,
		Content: fmt.Sprintf("Summarize the following text in %d words or less. "+
			"Keep the key figures and dates and state whether the tone is positive, neutral or negative:\n\n%s", maxWords, content),
	}}
	req := &shared.CompletionRequest{
		System:   "You are a professional financial document summarizer. Provide concise, accurate summaries that capture the essential information.",
		Messages: messages,
		Options: shared.CompletionOptions{
			Model:       t.model,
			MaxTokens:   maxWords * 5,
			Temperature: 0.3,
		},
	}

	resp, err := t.provider.Complete(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var pe *shared.ProviderError
		if errors.As(err, &pe) && pe.Code == shared.ErrAuth {
			return nil, err
		}
		return toolshared.Failure("summarization failed: %v", err), nil
	}

	return &toolshared.ToolResult{
		Success: true,
		Data: map[string]any{
			"name":            doc.Name,
			"summary":         resp.Content,
			"original_length": len(doc.Content),
			"summary_length":  len(resp.Content),
			"truncated_input": processing.Truncates(doc.Content, maxSummaryInput),
		},
		Stats: toolshared.ToolStats{TokensUsed: resp.Usage.TotalTokens},
	}, nil
}

// Package finance builds the agent that answers from the financial
// documents folder.
package finance

import (
	"github.com/nid-27/regnex/llm/agents"
	"github.com/nid-27/regnex/llm/tools"
	"github.com/nid-27/regnex/llm/tools/documents"
)

const (
	Name = "Finance_Document_Expert"
	Role = "Financial Document Knowledge Base Specialist"
)

// New creates the finance document agent over store. searchLimit is the
// default number of passages returned by search_documents. summarize_document
// is only offered when rt carries a provider.
func New(store documents.Store, rt *agents.Runtime, settings agents.Settings, searchLimit int) (*agents.Agent, error) {
	toolset := []tools.Tool{
		documents.NewSearchTool(store, searchLimit),
		documents.NewListTool(store),
		documents.NewReadTool(store),
	}
	if rt != nil && rt.Provider != nil {
		toolset = append(toolset, documents.NewSummarizeTool(store, rt.Provider, settings.Model))
	}

	registry := tools.NewRegistry()
	for _, t := range toolset {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}

	return &agents.Agent{
		Name:         Name,
		Role:         Role,
		Description:  "Answers questions from the financial documents knowledge base, including the sentiment of news and reports.",
		Instructions: agents.FinanceInstructions,
		Model:        settings.Model,
		Markdown:     settings.Markdown,
		Temperature:  settings.Temperature,
		MaxTokens:    settings.MaxTokens,
		Tools:        registry,
	}, nil
}

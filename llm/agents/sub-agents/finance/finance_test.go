package finance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nid-27/regnex/internal/knowledge"
	"github.com/nid-27/regnex/llm/agents"
	providertest "github.com/nid-27/regnex/llm/providers/test"
)

func TestNew(t *testing.T) {
	store := knowledge.NewDocumentStore(knowledge.DocumentOptions{})
	agent, err := New(store, nil, agents.Settings{Model: "gemini-2.5-pro", Markdown: true}, 5)
	require.NoError(t, err)

	assert.Equal(t, "Finance_Document_Expert", agent.Name)
	assert.Equal(t, "Financial Document Knowledge Base Specialist", agent.Role)
	assert.Equal(t, "gemini-2.5-pro", agent.Model)
	assert.True(t, agent.Markdown)
	assert.Equal(t, []string{"list_documents", "read_document", "search_documents"}, agent.Tools.List())
	assert.Contains(t, agent.SystemPrompt(), "positive/agreed, neutral or negative")
}

func TestNewWithProviderAddsSummarizer(t *testing.T) {
	store := knowledge.NewDocumentStore(knowledge.DocumentOptions{})
	rt := &agents.Runtime{Provider: providertest.NewFakeProvider()}
	agent, err := New(store, rt, agents.Settings{Model: "gemini-2.5-pro"}, 5)
	require.NoError(t, err)

	assert.Equal(t, []string{"list_documents", "read_document", "search_documents", "summarize_document"}, agent.Tools.List())
	assert.Contains(t, agent.SystemPrompt(), "summarize_document")
}

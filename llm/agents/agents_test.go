package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nid-27/regnex/llm/providers/shared"
	providertest "github.com/nid-27/regnex/llm/providers/test"
	"github.com/nid-27/regnex/llm/tools"
	"github.com/nid-27/regnex/llm/tools/calculator"
)

func newCalcAgent(name string) *Agent {
	return &Agent{
		Name:         name,
		Role:         "Arithmetic Helper",
		Instructions: []string{"Always use the calculator"},
		Model:        "test-model",
		Markdown:     true,
		Tools:        tools.NewRegistry().MustRegister(calculator.NewCalculator()),
	}
}

func toolMessages(req *shared.CompletionRequest) []shared.Message {
	var out []shared.Message
	for _, m := range req.Messages {
		if m.Role == shared.RoleTool {
			out = append(out, m)
		}
	}
	return out
}

func TestRunPlainAnswer(t *testing.T) {
	fake := providertest.NewFakeProvider()
	fake.AddText("What is 2+2?", "It is 4.")

	agent := newCalcAgent("Calc")
	res, err := agent.Run(context.Background(), &AgentInput{Input: "What is 2+2?"}, &Runtime{Provider: fake})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "It is 4.", res.Content)
	assert.Equal(t, 1, res.Stats.CallsMade)
	assert.Equal(t, 0, res.Stats.ToolCalls)
	assert.Equal(t, 10, res.Stats.TokensIn)
	assert.Equal(t, 5, res.Stats.TokensOut)
	assert.False(t, res.Stats.FinishedAt.Before(res.Stats.StartedAt))

	req := fake.GetLastRequest()
	assert.Equal(t, "test-model", req.Options.Model)
	require.Len(t, req.Options.Tools, 1)
	assert.Equal(t, "calculator", req.Options.Tools[0].Name)
	assert.Contains(t, req.System, "You are Calc.\nRole: Arithmetic Helper\n")
	assert.Contains(t, req.System, "1. Always use the calculator")
	assert.Contains(t, req.System, "Use markdown")
}

func TestRunHistoryIsSentFirst(t *testing.T) {
	fake := providertest.NewFakeProvider()
	fake.AddText("earlier question", "ok")

	history := []shared.Message{
		{Role: shared.RoleUser, Content: "earlier question"},
		{Role: shared.RoleAssistant, Content: "earlier answer"},
	}
	_, err := newCalcAgent("Calc").Run(context.Background(), &AgentInput{Input: "follow up", History: history}, &Runtime{Provider: fake})
	require.NoError(t, err)

	req := fake.GetLastRequest()
	require.Len(t, req.Messages, 3)
	assert.Equal(t, "follow up", req.Messages[2].Content)
}

func TestRunExecutesToolCalls(t *testing.T) {
	fake := providertest.NewFakeProvider()
	fake.AddResponse("Add 1 and 2",
		providertest.Call("c1", "calculator", map[string]any{"expression": "1+2"}),
		providertest.Text("The answer is 3."),
	)

	res, err := newCalcAgent("Calc").Run(context.Background(), &AgentInput{Input: "Add 1 and 2"}, &Runtime{Provider: fake})
	require.NoError(t, err)
	assert.Equal(t, "The answer is 3.", res.Content)
	assert.Equal(t, 2, res.Stats.CallsMade)
	assert.Equal(t, 1, res.Stats.ToolCalls)

	msgs := toolMessages(fake.GetLastRequest())
	require.Len(t, msgs, 1)
	assert.Equal(t, "c1", msgs[0].ToolCallID)
	assert.Equal(t, "calculator", msgs[0].Name)
	assert.Equal(t, `{"expression":"1+2","result":"3"}`, msgs[0].Content)
}

func TestRunToolErrorsGoBackToModel(t *testing.T) {
	tests := []struct {
		name string
		call shared.ToolCall
		want string
	}{
		{"schema violation", shared.ToolCall{ID: "c1", Name: "calculator", Arguments: map[string]any{}}, "invalid arguments for calculator"},
		{"unknown tool", shared.ToolCall{ID: "c1", Name: "stock_price", Arguments: map[string]any{}}, "tool not found: stock_price"},
		{"invalid json", shared.ToolCall{ID: "c1", Name: "calculator", RawArguments: "{bad"}, "not valid JSON"},
		{"tool failure", shared.ToolCall{ID: "c1", Name: "calculator", Arguments: map[string]any{"expression": "1/0"}}, "division by zero"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := providertest.NewFakeProvider()
			fake.AddResponse("go", providertest.Calls(tt.call), providertest.Text("recovered"))

			res, err := newCalcAgent("Calc").Run(context.Background(), &AgentInput{Input: "go"}, &Runtime{Provider: fake})
			require.NoError(t, err)
			assert.Equal(t, "recovered", res.Content)

			msgs := toolMessages(fake.GetLastRequest())
			require.Len(t, msgs, 1)
			assert.True(t, strings.HasPrefix(msgs[0].Content, "Error: "))
			assert.Contains(t, msgs[0].Content, tt.want)
		})
	}
}

func TestRunParallelToolCallsKeepOrder(t *testing.T) {
	fake := providertest.NewFakeProvider()
	fake.AddResponse("two sums",
		providertest.Calls(
			shared.ToolCall{Name: "calculator", Arguments: map[string]any{"expression": "1+1"}},
			shared.ToolCall{Name: "calculator", Arguments: map[string]any{"expression": "2+2"}},
		),
		providertest.Text("2 and 4"),
	)

	res, err := newCalcAgent("Calc").Run(context.Background(), &AgentInput{Input: "two sums"}, &Runtime{Provider: fake})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stats.ToolCalls)

	msgs := toolMessages(fake.GetLastRequest())
	require.Len(t, msgs, 2)
	assert.Equal(t, "call_0_0", msgs[0].ToolCallID)
	assert.Contains(t, msgs[0].Content, `"result":"2"`)
	assert.Equal(t, "call_0_1", msgs[1].ToolCallID)
	assert.Contains(t, msgs[1].Content, `"result":"4"`)
}

func TestRunStopsAtMaxTurns(t *testing.T) {
	fake := providertest.NewFakeProvider()
	fake.SetFallback(providertest.Call("c1", "calculator", map[string]any{"expression": "1+1"}))

	_, err := newCalcAgent("Calc").Run(context.Background(), &AgentInput{Input: "loop"}, &Runtime{Provider: fake, MaxTurns: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxTurnsExceeded)
	assert.Equal(t, 3, fake.GetCallCount())
}

func TestRunProviderError(t *testing.T) {
	fake := providertest.NewFakeProvider()
	fake.AddError("boom", &shared.ProviderError{Code: shared.ErrRateLimited, Message: "slow down", Provider: "fake"})

	_, err := newCalcAgent("Calc").Run(context.Background(), &AgentInput{Input: "boom"}, &Runtime{Provider: fake})
	require.Error(t, err)
	var pe *shared.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, shared.ErrRateLimited, pe.Code)
	assert.Contains(t, err.Error(), "agent Calc")
}

func TestRunValidatesInput(t *testing.T) {
	fake := providertest.NewFakeProvider()
	agent := newCalcAgent("Calc")

	_, err := agent.Run(context.Background(), &AgentInput{Input: "   "}, &Runtime{Provider: fake})
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = agent.Run(context.Background(), &AgentInput{
		Input:   "hi",
		History: []shared.Message{{Role: shared.RoleTool, Content: "x"}},
	}, &Runtime{Provider: fake})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "INVALID_ROLE", verr.Code)

	_, err = agent.Run(context.Background(), &AgentInput{Input: "hi"}, &Runtime{})
	assert.Error(t, err)

	assert.Equal(t, 0, fake.GetCallCount())
}

func TestDelegateTool(t *testing.T) {
	fake := providertest.NewFakeProvider()
	rt := &Runtime{Provider: fake}

	member := &Agent{Name: "Finance_Document_Expert", Role: "Specialist", Model: "test-model"}
	tool := member.AsTool(rt)
	assert.Equal(t, "ask_finance_document_expert", tool.Name())
	assert.Contains(t, tool.Description(), "Finance_Document_Expert (Specialist)")

	lead := &Agent{
		Name:  "Lead",
		Model: "test-model",
		Tools: tools.NewRegistry().MustRegister(tool),
	}

	fake.AddResponse("How is ACME doing?",
		providertest.Call("d1", "ask_finance_document_expert", map[string]any{"input": "Summarize ACME news"}),
		providertest.Text("ACME looks positive overall."),
	)
	fake.AddText("Summarize ACME news", "News about ACME is positive.")

	res, err := lead.Run(context.Background(), &AgentInput{Input: "How is ACME doing?"}, rt)
	require.NoError(t, err)
	assert.Equal(t, "ACME looks positive overall.", res.Content)
	assert.Equal(t, 3, fake.GetCallCount())

	msgs := toolMessages(fake.GetLastRequest())
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "News about ACME is positive.")
	assert.Contains(t, msgs[0].Content, `"agent":"Finance_Document_Expert"`)
}

func TestDelegateFailureIsReported(t *testing.T) {
	fake := providertest.NewFakeProvider()
	rt := &Runtime{Provider: fake}
	member := &Agent{Name: "Member", Model: "test-model"}
	lead := &Agent{Name: "Lead", Model: "test-model", Tools: tools.NewRegistry().MustRegister(member.AsTool(rt))}

	fake.AddResponse("question",
		providertest.Call("d1", "ask_member", map[string]any{"input": "sub question"}),
		providertest.Text("partial answer"),
	)
	fake.AddError("sub question", errors.New("model unavailable"))

	res, err := lead.Run(context.Background(), &AgentInput{Input: "question"}, rt)
	require.NoError(t, err)
	assert.Equal(t, "partial answer", res.Content)

	msgs := toolMessages(fake.GetLastRequest())
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "Error: agent Member: model unavailable")
}

func TestAgentRegistry(t *testing.T) {
	r := NewAgentRegistry()
	r.Register(&Agent{Name: "b"})
	r.Register(&Agent{Name: "a"})

	assert.Equal(t, 2, r.Len())
	list := r.List()
	assert.Equal(t, "a", list[0].Name)

	_, err := r.Get("c")
	assert.EqualError(t, err, "agent not found: c")
}

func TestSystemPromptWithoutMarkdown(t *testing.T) {
	agent := &Agent{Name: "Plain", Instructions: CSVInstructions}
	prompt := agent.SystemPrompt()
	assert.Contains(t, prompt, "5. Mention data quality limitations if present")
	assert.NotContains(t, prompt, "markdown")
	assert.NotContains(t, prompt, "Available tools")
}

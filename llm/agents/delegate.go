package agents

import (
	"context"
	"fmt"
	"strings"

	toolshared "github.com/nid-27/regnex/llm/tools/shared"
)

// DelegateTool exposes an agent as a tool another agent can call with a
// single free-text input.
type DelegateTool struct {
	agent *Agent
	rt    *Runtime
}

// AsTool wraps the agent so a coordinating agent can delegate to it
func (a *Agent) AsTool(rt *Runtime) *DelegateTool {
	return &DelegateTool{agent: a, rt: rt}
}

// Name is ask_ followed by the lower-cased agent name
func (d *DelegateTool) Name() string {
	return "ask_" + strings.ToLower(d.agent.Name)
}

func (d *DelegateTool) Description() string {
	desc := fmt.Sprintf("Delegates a question to %s", d.agent.Name)
	if d.agent.Role != "" {
		desc += fmt.Sprintf(" (%s)", d.agent.Role)
	}
	if d.agent.Description != "" {
		desc += ". " + d.agent.Description
	}
	return desc
}

func (d *DelegateTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"input": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "The complete question for the agent, including any dates, tickers or file names it needs",
			},
		},
		"required": []string{"input"},
	}
}

// Execute runs the wrapped agent. A failed run is reported to the caller's
// model; cancellation is returned as an error.
func (d *DelegateTool) Execute(ctx context.Context, input *toolshared.ToolInput) (*toolshared.ToolResult, error) {
	res, err := d.agent.Run(ctx, &AgentInput{Input: toolshared.StringArg(input.Data, "input")}, d.rt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return toolshared.Failure("%v", err), nil
	}
	return &toolshared.ToolResult{
		Success: true,
		Data: map[string]any{
			"agent":  d.agent.Name,
			"answer": res.Content,
		},
	}, nil
}

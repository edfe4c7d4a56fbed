// Package leader builds the coordinating agent of the team.
package leader

import (
	"fmt"

	"github.com/nid-27/regnex/llm/agents"
	"github.com/nid-27/regnex/llm/tools"
)

const (
	Name = "Team_Leader"
	Role = "Multi-Agent Coordinator and Team Leader"
)

// New creates the team leader. Each member becomes an ask_<name> tool that
// runs the member with rt.
func New(members []*agents.Agent, rt *agents.Runtime, settings agents.Settings) (*agents.Agent, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("team leader needs at least one member")
	}

	registry := tools.NewRegistry()
	for _, m := range members {
		if err := registry.Register(m.AsTool(rt)); err != nil {
			return nil, err
		}
	}

	return &agents.Agent{
		Name:         Name,
		Role:         Role,
		Description:  "Coordinates the finance document expert and the CSV data analyst and combines their findings.",
		Instructions: agents.LeaderInstructions,
		Model:        settings.Model,
		Markdown:     settings.Markdown,
		Temperature:  settings.Temperature,
		MaxTokens:    settings.MaxTokens,
		Tools:        registry,
	}, nil
}

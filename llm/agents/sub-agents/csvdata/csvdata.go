// Package csvdata builds the agent that analyses the CSV stock data folder.
package csvdata

import (
	"github.com/nid-27/regnex/llm/agents"
	"github.com/nid-27/regnex/llm/tools"
	"github.com/nid-27/regnex/llm/tools/calculator"
	"github.com/nid-27/regnex/llm/tools/tables"
)

const (
	Name = "CSV_Data_Analyst"
	Role = "Real-Time CSV Data Analyst"
)

// New creates the CSV analyst over store
func New(store tables.Store, settings agents.Settings) (*agents.Agent, error) {
	registry := tools.NewRegistry()
	for _, t := range []tools.Tool{
		tables.NewListTool(store),
		tables.NewDescribeTool(store),
		tables.NewQueryTool(store),
		tables.NewHeadTool(store),
		calculator.NewCalculator(),
	} {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}

	return &agents.Agent{
		Name:         Name,
		Role:         Role,
		Description:  "Answers questions from the CSV stock data: prices, volumes, statistics and trends.",
		Instructions: agents.CSVInstructions,
		Model:        settings.Model,
		Markdown:     settings.Markdown,
		Temperature:  settings.Temperature,
		MaxTokens:    settings.MaxTokens,
		Tools:        registry,
	}, nil
}

package agents

import (
	"fmt"
	"strings"
)

// Instruction sets for the three team members.
var (
	FinanceInstructions = []string{
		"Analyze financial documents thoroughly and provide detailed insights",
		"Reference specific sections of documents when making claims",
		"Provide context and explanations for financial terms and concepts",
		"Be precise with numbers, dates, and financial calculations",
		"When uncertain, clearly state what information is missing",
		"When asked about sentiment, classify the tone of the relevant text as positive/agreed, neutral or negative and quote the passages that support it",
	}

	CSVInstructions = []string{
		"Analyze CSV data to extract relevant insights based on queries",
		"Provide statistical summaries and key findings",
		"Highlight trends and patterns in the data",
		"Be specific with numbers and percentages",
		"Mention data quality limitations if present",
	}

	LeaderInstructions = []string{
		"Understand the user's query and determine what information is needed",
		"Coordinate with both Finance and CSV agents to gather insights",
		"Synthesize responses from multiple agents into a coherent answer",
		"Highlight synergies and contradictions between document knowledge and real data",
		"Provide a balanced perspective that combines both sources",
		"Clearly structure the final response with sections and proper formatting",
		"If agents provide conflicting information, present both views with context",
	}
)

const markdownHint = "Use markdown to format your answers."

// SystemPrompt renders the agent's identity, instructions and tool list
// into the system message.
func (a *Agent) SystemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.\n", a.Name)
	if a.Role != "" {
		fmt.Fprintf(&b, "Role: %s\n", a.Role)
	}
	if a.Description != "" {
		b.WriteString(a.Description)
		b.WriteString("\n")
	}

	if len(a.Instructions) > 0 {
		b.WriteString("\n<instructions>\n")
		for i, line := range a.Instructions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, line)
		}
		b.WriteString("</instructions>\n")
	}

	if a.Tools != nil {
		if names := a.Tools.List(); len(names) > 0 {
			fmt.Fprintf(&b, "\nAvailable tools: %s. Use them to ground every claim in the data instead of guessing.\n", strings.Join(names, ", "))
		}
	}

	if a.Markdown {
		b.WriteString("\n")
		b.WriteString(markdownHint)
		b.WriteString("\n")
	}
	return b.String()
}

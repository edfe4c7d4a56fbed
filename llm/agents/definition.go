package agents

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nid-27/regnex/llm/providers/shared"
	"github.com/nid-27/regnex/llm/tools"
)

var (
	// ErrMaxTurnsExceeded is returned when the model keeps requesting tools
	// past the runtime's turn limit
	ErrMaxTurnsExceeded = errors.New("max turns exceeded")
	// ErrEmptyQuery is returned for blank input
	ErrEmptyQuery = errors.New("query is empty")
)

// DefaultMaxTurns bounds the tool loop when the runtime does not set one
const DefaultMaxTurns = 10

// Agent is a model identity plus an instruction set and the tools it may
// call. Agents are immutable once built and safe to run concurrently.
type Agent struct {
	Name         string
	Role         string
	Description  string
	Instructions []string
	Model        string
	Markdown     bool
	Temperature  float32
	MaxTokens    int
	Tools        *tools.Registry
}

// Settings are the model parameters shared by the agents of a team
type Settings struct {
	Model       string
	Temperature float32
	MaxTokens   int
	Markdown    bool
}

// AgentInput is a single request to an agent
type AgentInput struct {
	Input string `json:"input"`
	// Earlier turns of the conversation, oldest first.
	History []shared.Message `json:"history,omitempty"`
	Session SessionInfo      `json:"session"`
}

// SessionInfo ties a run to a conversation
type SessionInfo struct {
	SessionID string
	UserID    string
}

// AgentResult is the outcome of a run
type AgentResult struct {
	Content  string         `json:"content"`
	Success  bool           `json:"success"`
	Stats    AgentStats     `json:"stats"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AgentStats tracks what a run consumed
type AgentStats struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
	TokensIn   int           `json:"tokens_in"`
	TokensOut  int           `json:"tokens_out"`
	CallsMade  int           `json:"calls_made"`
	ToolCalls  int           `json:"tool_calls"`
}

// Runtime carries the shared services a run needs
type Runtime struct {
	Provider shared.LLMProvider
	Logger   *zerolog.Logger
	MaxTurns int
}

func (rt *Runtime) logger() *zerolog.Logger {
	if rt.Logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return rt.Logger
}

func (rt *Runtime) maxTurns() int {
	if rt.MaxTurns <= 0 {
		return DefaultMaxTurns
	}
	return rt.MaxTurns
}

// ValidationError describes a rejected input field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Code == "EMPTY_QUERY" {
		return ErrEmptyQuery
	}
	return nil
}

// ValidateInput checks a request before any model call is made
func (a *Agent) ValidateInput(input *AgentInput) error {
	if input == nil || strings.TrimSpace(input.Input) == "" {
		return &ValidationError{Field: "input", Message: "input must not be empty", Code: "EMPTY_QUERY"}
	}
	for i, msg := range input.History {
		if msg.Role != shared.RoleUser && msg.Role != shared.RoleAssistant {
			return &ValidationError{
				Field:   fmt.Sprintf("history[%d].role", i),
				Message: fmt.Sprintf("unsupported role %q", msg.Role),
				Code:    "INVALID_ROLE",
			}
		}
	}
	return nil
}

// AgentRegistry holds the agents of a team by name
type AgentRegistry struct {
	mu     sync.RWMutex
	agents map[string]*Agent
}

// NewAgentRegistry creates an empty registry
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{agents: make(map[string]*Agent)}
}

// Register adds or replaces an agent
func (r *AgentRegistry) Register(agent *Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agent.Name] = agent
}

// Get returns an agent by name
func (r *AgentRegistry) Get(name string) (*Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, exists := r.agents[name]
	if !exists {
		return nil, fmt.Errorf("agent not found: %s", name)
	}
	return agent, nil
}

// List returns the agents ordered by name
func (r *AgentRegistry) List() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of agents
func (r *AgentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

package agents

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nid-27/regnex/internal/metrics"
	"github.com/nid-27/regnex/llm/providers/shared"
	toolshared "github.com/nid-27/regnex/llm/tools/shared"
)

var tracer = otel.Tracer("github.com/nid-27/regnex/llm/agents")

// Run sends the input to the model and executes requested tool calls until
// the model answers in plain text. Tool failures are reported back to the
// model as tool messages; only provider errors, cancellation and the turn
// limit end the run with an error.
func (a *Agent) Run(ctx context.Context, input *AgentInput, rt *Runtime) (*AgentResult, error) {
	if err := a.ValidateInput(input); err != nil {
		return nil, err
	}
	if rt == nil || rt.Provider == nil {
		return nil, fmt.Errorf("agent %s: runtime has no model provider", a.Name)
	}

	ctx, span := tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("agent.name", a.Name),
		attribute.String("agent.model", a.Model),
	))
	defer span.End()

	log := rt.logger().With().Str("agent", a.Name).Logger()
	stats := AgentStats{StartedAt: time.Now()}

	messages := make([]shared.Message, 0, len(input.History)+1)
	messages = append(messages, input.History...)
	messages = append(messages, shared.Message{Role: shared.RoleUser, Content: input.Input})

	var defs []shared.ToolDef
	if a.Tools != nil {
		defs = a.Tools.Definitions()
	}
	system := a.SystemPrompt()

	fail := func(err error) (*AgentResult, error) {
		stats.finish()
		metrics.AgentRuns.WithLabelValues(a.Name, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Int("calls", stats.CallsMade).Dur("duration", stats.Duration).Msg("agent run failed")
		return nil, fmt.Errorf("agent %s: %w", a.Name, err)
	}

	for turn := 0; turn < rt.maxTurns(); turn++ {
		req := &shared.CompletionRequest{
			System:   system,
			Messages: messages,
			Options: shared.CompletionOptions{
				Model:       a.Model,
				MaxTokens:   a.MaxTokens,
				Temperature: a.Temperature,
				Tools:       defs,
			},
		}

		resp, err := rt.Provider.Complete(ctx, req)
		if err != nil {
			return fail(err)
		}
		stats.CallsMade++
		stats.TokensIn += resp.Usage.PromptTokens
		stats.TokensOut += resp.Usage.CompletionTokens
		metrics.ModelTokens.WithLabelValues(a.Name, "in").Add(float64(resp.Usage.PromptTokens))
		metrics.ModelTokens.WithLabelValues(a.Name, "out").Add(float64(resp.Usage.CompletionTokens))

		if len(resp.ToolCalls) == 0 {
			stats.finish()
			metrics.AgentRuns.WithLabelValues(a.Name, "success").Inc()
			span.SetAttributes(
				attribute.Int("agent.calls", stats.CallsMade),
				attribute.Int("agent.tool_calls", stats.ToolCalls),
			)
			log.Debug().
				Int("calls", stats.CallsMade).
				Int("tool_calls", stats.ToolCalls).
				Int("tokens_in", stats.TokensIn).
				Int("tokens_out", stats.TokensOut).
				Dur("duration", stats.Duration).
				Msg("agent run finished")
			return &AgentResult{
				Content: resp.Content,
				Success: true,
				Stats:   stats,
				Metadata: map[string]any{
					"agent":       a.Name,
					"stop_reason": resp.StopReason,
				},
			}, nil
		}

		for i := range resp.ToolCalls {
			if resp.ToolCalls[i].ID == "" {
				resp.ToolCalls[i].ID = fmt.Sprintf("call_%d_%d", turn, i)
			}
		}
		messages = append(messages, resp.Message())

		results, err := a.executeTools(ctx, resp.ToolCalls, &log)
		if err != nil {
			return fail(err)
		}
		stats.ToolCalls += len(resp.ToolCalls)
		messages = append(messages, results...)
	}

	return fail(fmt.Errorf("%w (%d)", ErrMaxTurnsExceeded, rt.maxTurns()))
}

// executeTools runs the calls of one model turn concurrently and returns the
// tool messages in call order.
func (a *Agent) executeTools(ctx context.Context, calls []shared.ToolCall, log *zerolog.Logger) ([]shared.Message, error) {
	out := make([]shared.Message, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call shared.ToolCall) {
			defer wg.Done()
			out[i] = shared.Message{
				Role:       shared.RoleTool,
				ToolCallID: call.ID,
				Name:       call.Name,
				Content:    a.executeTool(ctx, call, log),
			}
		}(i, call)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Agent) executeTool(ctx context.Context, call shared.ToolCall, log *zerolog.Logger) string {
	start := time.Now()
	if a.Tools == nil {
		return fmt.Sprintf("Error: tool not found: %s", call.Name)
	}
	if call.Arguments == nil && call.RawArguments != "" {
		return fmt.Sprintf("Error: arguments for %s are not valid JSON: %s", call.Name, call.RawArguments)
	}

	result, err := a.Tools.Execute(ctx, &toolshared.ToolInput{Name: call.Name, Data: call.Arguments, Call: call})
	if err != nil {
		log.Warn().Err(err).Str("tool", call.Name).Msg("tool execution failed")
		return fmt.Sprintf("Error: %s failed: %v", call.Name, err)
	}
	log.Debug().Str("tool", call.Name).Bool("success", result.Success).Dur("duration", time.Since(start)).Msg("tool executed")
	return result.Content()
}

func (s *AgentStats) finish() {
	s.FinishedAt = time.Now()
	s.Duration = s.FinishedAt.Sub(s.StartedAt)
}

package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nid-27/regnex/internal/metrics"
	"github.com/nid-27/regnex/llm/tools/calculator"
	toolshared "github.com/nid-27/regnex/llm/tools/shared"
)

type echoTool struct {
	err error
}

func (e *echoTool) Name() string        { return "echo" }
func (e *echoTool) Description() string { return "Echoes the text back" }
func (e *echoTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text":  map[string]any{"type": "string"},
			"times": map[string]any{"type": "integer", "minimum": 1},
		},
		"required": []string{"text"},
	}
}

func (e *echoTool) Execute(ctx context.Context, input *toolshared.ToolInput) (*toolshared.ToolResult, error) {
	if e.err != nil {
		return nil, e.err
	}
	return &toolshared.ToolResult{Success: true, Data: map[string]any{"text": input.Data["text"]}}, nil
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&echoTool{}))
	require.NoError(t, r.Register(calculator.NewCalculator()))

	err := r.Register(&echoTool{})
	assert.EqualError(t, err, "tool already registered: echo")

	assert.Equal(t, []string{"calculator", "echo"}, r.List())

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "calculator", defs[0].Name)
	assert.Equal(t, "echo", defs[1].Name)
	assert.Equal(t, "object", defs[1].JSONSchema["type"])

	tool, err := r.Get("echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", tool.Name())

	_, err = r.Get("missing")
	assert.EqualError(t, err, "tool not found: missing")
}

func TestRegistryExecute(t *testing.T) {
	r := NewRegistry().MustRegister(&echoTool{})
	ctx := context.Background()

	t.Run("valid arguments", func(t *testing.T) {
		result, err := r.Execute(ctx, &toolshared.ToolInput{Name: "echo", Data: map[string]any{"text": "hi", "times": float64(2)}})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, "hi", result.Data["text"])
		assert.Equal(t, `{"text":"hi"}`, result.Content())
	})

	t.Run("missing required argument", func(t *testing.T) {
		result, err := r.Execute(ctx, &toolshared.ToolInput{Name: "echo"})
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "invalid arguments for echo")
		assert.Contains(t, result.Error, "text")
		assert.Contains(t, result.Content(), "Error: ")
	})

	t.Run("wrong type", func(t *testing.T) {
		result, err := r.Execute(ctx, &toolshared.ToolInput{Name: "echo", Data: map[string]any{"text": "hi", "times": "twice"}})
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "times")
	})

	t.Run("unknown tool", func(t *testing.T) {
		result, err := r.Execute(ctx, &toolshared.ToolInput{Name: "nope"})
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, "tool not found: nope (available: echo)", result.Error)
	})
}

func TestRegistryUnknownToolMetricLabel(t *testing.T) {
	r := NewRegistry().MustRegister(&echoTool{})
	ctx := context.Background()
	notFound := metrics.ToolCalls.WithLabelValues("unknown", "not_found")

	_, err := r.Execute(ctx, &toolshared.ToolInput{Name: "made_up_1"})
	require.NoError(t, err)
	series := testutil.CollectAndCount(metrics.ToolCalls)
	before := testutil.ToFloat64(notFound)

	for _, name := range []string{"made_up_2", "made_up_3"} {
		_, err := r.Execute(ctx, &toolshared.ToolInput{Name: name})
		require.NoError(t, err)
	}
	assert.Equal(t, before+2, testutil.ToFloat64(notFound))
	assert.Equal(t, series, testutil.CollectAndCount(metrics.ToolCalls))
}

func TestRegistryExecuteToolError(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistry().MustRegister(&echoTool{err: boom})

	_, err := r.Execute(context.Background(), &toolshared.ToolInput{Name: "echo", Data: map[string]any{"text": "x"}})
	assert.ErrorIs(t, err, boom)
}

func TestRegisterRejectsBadSchema(t *testing.T) {
	r := NewRegistry()
	err := r.Register(&badSchemaTool{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schema for tool bad")
}

type badSchemaTool struct{ echoTool }

func (b *badSchemaTool) Name() string { return "bad" }
func (b *badSchemaTool) Schema() map[string]any {
	return map[string]any{"type": 12}
}

package test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nid-27/regnex/llm/providers/shared"
)

// FakeProvider implements LLMProvider for testing purposes. Responses are
// keyed by the first user message of a request; several responses for the
// same key are served in order and the last one repeats.
type FakeProvider struct {
	mu          sync.RWMutex
	responses   map[string][]*shared.CompletionResponse
	served      map[string]int
	delays      map[string]time.Duration
	errors      map[string]error
	fallback    *shared.CompletionResponse
	handler     func(*shared.CompletionRequest) (*shared.CompletionResponse, error)
	callCount   int
	requests    []*shared.CompletionRequest
	lastRequest *shared.CompletionRequest
}

// NewFakeProvider creates a new fake provider for testing
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		responses: make(map[string][]*shared.CompletionResponse),
		served:    make(map[string]int),
		delays:    make(map[string]time.Duration),
		errors:    make(map[string]error),
	}
}

// AddResponse queues canned responses for a specific prompt
func (fp *FakeProvider) AddResponse(prompt string, responses ...*shared.CompletionResponse) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.responses[prompt] = append(fp.responses[prompt], responses...)
}

// AddText queues a plain text answer for a specific prompt
func (fp *FakeProvider) AddText(prompt, text string) {
	fp.AddResponse(prompt, Text(text))
}

// SetFallback sets the response used when no prompt matches
func (fp *FakeProvider) SetFallback(resp *shared.CompletionResponse) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.fallback = resp
}

// SetHandler routes every request through fn, bypassing canned responses
func (fp *FakeProvider) SetHandler(fn func(*shared.CompletionRequest) (*shared.CompletionResponse, error)) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.handler = fn
}

// AddDelay adds a delay for a specific prompt
func (fp *FakeProvider) AddDelay(prompt string, delay time.Duration) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.delays[prompt] = delay
}

// AddError adds an error for a specific prompt
func (fp *FakeProvider) AddError(prompt string, err error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.errors[prompt] = err
}

// GetCallCount returns the number of calls made to the provider
func (fp *FakeProvider) GetCallCount() int {
	fp.mu.RLock()
	defer fp.mu.RUnlock()
	return fp.callCount
}

// GetLastRequest returns the last request made to the provider
func (fp *FakeProvider) GetLastRequest() *shared.CompletionRequest {
	fp.mu.RLock()
	defer fp.mu.RUnlock()
	return fp.lastRequest
}

// Requests returns every request seen so far
func (fp *FakeProvider) Requests() []*shared.CompletionRequest {
	fp.mu.RLock()
	defer fp.mu.RUnlock()
	out := make([]*shared.CompletionRequest, len(fp.requests))
	copy(out, fp.requests)
	return out
}

// Name returns the provider name
func (fp *FakeProvider) Name() string { return "fake" }

// Complete performs a mock completion request
func (fp *FakeProvider) Complete(ctx context.Context, req *shared.CompletionRequest) (*shared.CompletionResponse, error) {
	if err := shared.ValidateCompletionRequest(req); err != nil {
		return nil, err
	}

	fp.mu.Lock()
	fp.callCount++
	fp.lastRequest = req
	fp.requests = append(fp.requests, req)
	handler := fp.handler
	fp.mu.Unlock()

	if handler != nil {
		return handler(req)
	}

	key := FirstUserMessage(req)

	fp.mu.RLock()
	delay := fp.delays[key]
	err := fp.errors[key]
	fp.mu.RUnlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, shared.NormalizeError(fp.Name(), ctx.Err())
		}
	}
	if err != nil {
		return nil, err
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()
	if queue := fp.responses[key]; len(queue) > 0 {
		idx := fp.served[key]
		if idx >= len(queue) {
			idx = len(queue) - 1
		}
		fp.served[key]++
		resp := *queue[idx]
		return &resp, nil
	}
	if fp.fallback != nil {
		resp := *fp.fallback
		return &resp, nil
	}
	return nil, &shared.ProviderError{
		Code:     shared.ErrInvalidRequest,
		Message:  fmt.Sprintf("no canned response for prompt %q", key),
		Provider: fp.Name(),
	}
}

// FirstUserMessage returns the content of the first user message
func FirstUserMessage(req *shared.CompletionRequest) string {
	for _, msg := range req.Messages {
		if msg.Role == shared.RoleUser && msg.Content != "" {
			return msg.Content
		}
	}
	return ""
}

// Text builds a plain answer
func Text(content string) *shared.CompletionResponse {
	return &shared.CompletionResponse{
		Content:    content,
		StopReason: shared.StopReasonStop,
		Usage:      shared.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

// Call builds a response requesting a single tool call
func Call(id, name string, args map[string]any) *shared.CompletionResponse {
	return Calls(shared.ToolCall{ID: id, Name: name, Arguments: args})
}

// Calls builds a response requesting several tool calls
func Calls(calls ...shared.ToolCall) *shared.CompletionResponse {
	return &shared.CompletionResponse{
		ToolCalls:  calls,
		StopReason: shared.StopReasonTool,
		Usage:      shared.TokenUsage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12},
	}
}

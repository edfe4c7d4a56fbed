package shared

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCompletionRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     *CompletionRequest
		wantErr string
	}{
		{
			name:    "nil request",
			req:     nil,
			wantErr: "request cannot be nil",
		},
		{
			name:    "no messages",
			req:     &CompletionRequest{Options: CompletionOptions{Model: "m"}},
			wantErr: "messages cannot be empty",
		},
		{
			name: "bad role",
			req: &CompletionRequest{
				Messages: []Message{{Role: "robot", Content: "hi"}},
				Options:  CompletionOptions{Model: "m"},
			},
			wantErr: "invalid role",
		},
		{
			name: "tool message without call id",
			req: &CompletionRequest{
				Messages: []Message{{Role: RoleTool, Content: "{}"}},
				Options:  CompletionOptions{Model: "m"},
			},
			wantErr: "tool_call_id",
		},
		{
			name: "missing model",
			req: &CompletionRequest{
				Messages: []Message{{Role: RoleUser, Content: "hi"}},
			},
			wantErr: "model cannot be empty",
		},
		{
			name: "valid",
			req: &CompletionRequest{
				Messages: []Message{
					{Role: RoleUser, Content: "hi"},
					{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "t"}}},
					{Role: RoleTool, ToolCallID: "c1", Content: "ok"},
				},
				Options: CompletionOptions{Model: "gemini-2.5-pro"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCompletionRequest(tt.req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNormalizeError(t *testing.T) {
	assert.Nil(t, NormalizeError("openai", nil))

	pe := &ProviderError{Code: ErrAuth, Message: "bad key"}
	assert.Same(t, pe, NormalizeError("openai", fmt.Errorf("wrapped: %w", pe)))

	timeout := NormalizeError("openai", context.DeadlineExceeded)
	assert.Equal(t, ErrTimeout, timeout.Code)
	assert.True(t, timeout.Retryable())

	canceled := NormalizeError("openai", context.Canceled)
	assert.Equal(t, ErrCanceled, canceled.Code)
	assert.False(t, canceled.Retryable())

	other := NormalizeError("openai", errors.New("boom"))
	assert.Equal(t, ErrUnknown, other.Code)
	assert.Equal(t, "openai: boom (unknown)", other.Error())
}

func TestCodeForStatus(t *testing.T) {
	assert.Equal(t, ErrRateLimited, CodeForStatus(http.StatusTooManyRequests))
	assert.Equal(t, ErrAuth, CodeForStatus(http.StatusUnauthorized))
	assert.Equal(t, ErrAuth, CodeForStatus(http.StatusForbidden))
	assert.Equal(t, ErrModelNotFound, CodeForStatus(http.StatusNotFound))
	assert.Equal(t, ErrInvalidRequest, CodeForStatus(http.StatusBadRequest))
	assert.Equal(t, ErrUnavailable, CodeForStatus(http.StatusServiceUnavailable))
	assert.Equal(t, ErrUnknown, CodeForStatus(http.StatusTeapot))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&ProviderError{Code: ErrRateLimited}))
	assert.True(t, IsRetryable(fmt.Errorf("x: %w", &ProviderError{Code: ErrUnavailable})))
	assert.False(t, IsRetryable(&ProviderError{Code: ErrAuth}))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestTokenUsageAdd(t *testing.T) {
	u := TokenUsage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}
	u.Add(TokenUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30})
	assert.Equal(t, TokenUsage{PromptTokens: 11, CompletionTokens: 22, TotalTokens: 33}, u)
}

package shared

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// NormalizeError normalizes different error types to ProviderError
func NormalizeError(provider string, err error) *ProviderError {
	if err == nil {
		return nil
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}

	switch {
	case errors.Is(err, context.Canceled):
		return &ProviderError{Code: ErrCanceled, Message: "request canceled", Provider: provider, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &ProviderError{Code: ErrTimeout, Message: "request timed out", Provider: provider, Err: err}
	}

	return &ProviderError{
		Code:     ErrUnknown,
		Message:  err.Error(),
		Provider: provider,
		Err:      err,
	}
}

// CodeForStatus maps an HTTP status to a normalized error code.
func CodeForStatus(status int) ErrorCode {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuth
	case status == http.StatusNotFound:
		return ErrModelNotFound
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ErrTimeout
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return ErrInvalidRequest
	case status >= 500:
		return ErrUnavailable
	}
	return ErrUnknown
}

// IsRetryable reports whether err is a provider error worth retrying.
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Retryable()
}

// ValidateCompletionRequest validates a completion request
func ValidateCompletionRequest(req *CompletionRequest) error {
	if req == nil {
		return &ProviderError{
			Code:    ErrInvalidRequest,
			Message: "request cannot be nil",
		}
	}

	if len(req.Messages) == 0 {
		return &ProviderError{
			Code:    ErrInvalidRequest,
			Message: "messages cannot be empty",
		}
	}

	for i, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		case RoleTool:
			if msg.ToolCallID == "" {
				return &ProviderError{
					Code:    ErrInvalidRequest,
					Message: fmt.Sprintf("message %d: tool message without tool_call_id", i),
				}
			}
		case "":
			return &ProviderError{
				Code:    ErrInvalidRequest,
				Message: fmt.Sprintf("message %d: role cannot be empty", i),
			}
		default:
			return &ProviderError{
				Code:    ErrInvalidRequest,
				Message: fmt.Sprintf("message %d: invalid role '%s'", i, msg.Role),
			}
		}
	}

	if req.Options.Model == "" {
		return &ProviderError{
			Code:    ErrInvalidRequest,
			Message: "model cannot be empty",
		}
	}

	return nil
}

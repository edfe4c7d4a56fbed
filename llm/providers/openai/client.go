package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/nid-27/regnex/llm/providers/shared"
	"github.com/nid-27/regnex/llm/providers/transport"
)

// Config holds configuration for an OpenAI-compatible endpoint
type Config struct {
	APIKey  string
	BaseURL string
	// Name reported by the provider; defaults to "openai".
	Name    string
	Timeout time.Duration
	Limiter *transport.Limiter
	Retry   *transport.RetryPolicy
}

// Provider implements the unified LLMProvider interface on go-openai.
// Gemini is reached through its OpenAI-compatible endpoint.
type Provider struct {
	client  *openai.Client
	config  Config
	limiter *transport.Limiter
	retry   transport.RetryPolicy
}

// NewProvider creates a new OpenAI-compatible provider
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, &shared.ProviderError{Code: shared.ErrAuth, Message: "api key is required", Provider: cfg.Name}
	}
	if cfg.Name == "" {
		cfg.Name = "openai"
	}

	openaiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		openaiConfig.BaseURL = cfg.BaseURL
	}

	retry := transport.DefaultRetryPolicy(shared.IsRetryable)
	if cfg.Retry != nil {
		retry = *cfg.Retry
		if retry.Retryable == nil {
			retry.Retryable = shared.IsRetryable
		}
	}

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = transport.NewLimiter(0, 1)
	}

	return &Provider{
		client:  openai.NewClientWithConfig(openaiConfig),
		config:  cfg,
		limiter: limiter,
		retry:   retry,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string { return p.config.Name }

// Complete performs a completion request
func (p *Provider) Complete(ctx context.Context, req *shared.CompletionRequest) (*shared.CompletionResponse, error) {
	if err := shared.ValidateCompletionRequest(req); err != nil {
		return nil, err
	}

	openaiReq, err := ToOpenAIRequest(req)
	if err != nil {
		return nil, fmt.Errorf("failed to convert request: %w", err)
	}

	var resp openai.ChatCompletionResponse
	err = p.retry.Do(ctx, func(ctx context.Context) error {
		if err := p.limiter.Wait(ctx); err != nil {
			return p.normalize(err)
		}
		callCtx, cancel := p.withTimeout(ctx)
		defer cancel()

		r, err := p.client.CreateChatCompletion(callCtx, *openaiReq)
		if err != nil {
			return p.normalize(err)
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	return FromOpenAIResponse(resp)
}

func (p *Provider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.config.Timeout)
}

func (p *Provider) normalize(err error) error {
	return NormalizeOpenAIError(p.config.Name, err)
}

// NormalizeOpenAIError converts go-openai errors to ProviderError
func NormalizeOpenAIError(provider string, err error) *shared.ProviderError {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &shared.ProviderError{
			Code:       shared.CodeForStatus(apiErr.HTTPStatusCode),
			Message:    apiErr.Message,
			Provider:   provider,
			HTTPStatus: apiErr.HTTPStatusCode,
			Err:        err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &shared.ProviderError{
			Code:       shared.CodeForStatus(reqErr.HTTPStatusCode),
			Message:    reqErr.Error(),
			Provider:   provider,
			HTTPStatus: reqErr.HTTPStatusCode,
			Err:        err,
		}
	}

	return shared.NormalizeError(provider, err)
}

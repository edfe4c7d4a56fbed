package providers

import (
	"fmt"
	"sync"
	"time"

	"github.com/nid-27/regnex/internal/config"
	"github.com/nid-27/regnex/llm/providers/openai"
	"github.com/nid-27/regnex/llm/providers/shared"
	"github.com/nid-27/regnex/llm/providers/transport"
)

// Registry manages provider instances. Providers it builds share one set
// of rate limiters.
type Registry struct {
	providers map[string]shared.LLMProvider
	limiter   *transport.RateLimiter
	mu        sync.RWMutex
}

// NewRegistry creates an empty provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]shared.LLMProvider),
		limiter:   transport.NewRateLimiter(),
	}
}

// RegisterProvider registers a provider instance with a name
func (r *Registry) RegisterProvider(name string, provider shared.LLMProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = provider
}

// GetProvider gets a registered provider by name
func (r *Registry) GetProvider(name string) (shared.LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	if !exists {
		return nil, fmt.Errorf("provider not found: %s", name)
	}
	return provider, nil
}

// Resolve returns the provider registered under the model's provider name,
// building and registering it from the config on first use.
func (r *Registry) Resolve(model config.ModelConfig, limits config.RateLimitConfig) (shared.LLMProvider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if provider, exists := r.providers[model.Provider]; exists {
		return provider, nil
	}
	provider, err := NewFromConfig(model, limits, r.limiter)
	if err != nil {
		return nil, err
	}
	r.providers[model.Provider] = provider
	return provider, nil
}

// NewFromConfig builds the chat provider described by the model config.
func NewFromConfig(model config.ModelConfig, limits config.RateLimitConfig, rl *transport.RateLimiter) (shared.LLMProvider, error) {
	if rl == nil {
		rl = transport.NewRateLimiter()
	}

	switch model.Provider {
	case "openai":
		retry := transport.DefaultRetryPolicy(shared.IsRetryable)
		retry.MaxRetries = model.MaxRetries
		return openai.NewProvider(openai.Config{
			APIKey:  model.APIKey,
			BaseURL: model.BaseURL,
			Name:    model.Provider,
			Timeout: time.Duration(model.TimeoutSeconds) * time.Second,
			Limiter: rl.GetLimiter(model.Provider, limits.RequestsPerSecond, limits.Burst),
			Retry:   &retry,
		})
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", model.Provider)
	}
}

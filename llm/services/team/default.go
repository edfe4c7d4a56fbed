package team

import (
	"context"
	"fmt"
	"sync"

	"github.com/nid-27/regnex/internal/config"
	"github.com/nid-27/regnex/llm/providers"
)

var (
	defaultMu     sync.Mutex
	defaultSystem *System

	// systems created here reuse one provider and its rate limits
	defaultProviders = providers.NewRegistry()
)

// Default returns the process-wide system, creating it from the loaded
// configuration on first use. It is not set up.
func Default() (*System, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultSystem != nil {
		return defaultSystem, nil
	}
	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}
	s, err := NewSystem(cfg, Options{Providers: defaultProviders})
	if err != nil {
		return nil, err
	}
	defaultSystem = s
	return s, nil
}

// SetDefault replaces the process-wide system, closing the one it replaces.
// Passing nil resets it.
func SetDefault(s *System) {
	defaultMu.Lock()
	prev := defaultSystem
	defaultSystem = s
	defaultMu.Unlock()

	if prev != nil && prev != s {
		if err := prev.Close(); err != nil {
			prev.logger.Warn().Err(err).Msg("failed to close replaced agent system")
		}
	}
}

// Initialize replaces the process-wide system with one built from cfg and
// runs its setup.
func Initialize(ctx context.Context, cfg *config.Config, opts Options) (bool, string) {
	if opts.Providers == nil {
		opts.Providers = defaultProviders
	}
	s, err := NewSystem(cfg, opts)
	if err != nil {
		return false, fmt.Sprintf("Error during setup: %v", err)
	}
	SetDefault(s)
	return s.Setup(ctx)
}

// AskAgents answers query with the process-wide system
func AskAgents(ctx context.Context, query string) string {
	s, err := Default()
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return s.ProcessQuery(ctx, query)
}

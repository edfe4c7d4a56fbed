package team

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nid-27/regnex/internal/config"
	"github.com/nid-27/regnex/llm/services/cache"
	"github.com/nid-27/regnex/llm/services/conversations"
)

// Build creates a system with the cache and conversation store the
// configuration asks for. The caller owns the result and must Close it.
func Build(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*System, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	// fail on the credential before opening any connection
	if !cfg.HasAPIKey() {
		return nil, ErrMissingAPIKey
	}

	opts := Options{Logger: logger}

	if cfg.Cache.Enabled {
		answers := cache.New(cfg.Cache)
		if err := answers.Ping(ctx); err != nil {
			_ = answers.Close()
			return nil, fmt.Errorf("answer cache unavailable: %w", err)
		}
		opts.Cache = answers
	}

	store, err := conversations.OpenStore(ctx, cfg.Conversations)
	if err != nil {
		if opts.Cache != nil {
			_ = opts.Cache.Close()
		}
		return nil, fmt.Errorf("failed to open conversation store: %w", err)
	}
	opts.Conversations = conversations.NewService(store, cfg.Conversations.ContextWindow)

	s, err := NewSystem(cfg, opts)
	if err != nil {
		if opts.Cache != nil {
			_ = opts.Cache.Close()
		}
		_ = opts.Conversations.Close()
		return nil, err
	}
	return s, nil
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/nid-27/regnex/api/server"
	"github.com/nid-27/regnex/internal/config"
	"github.com/nid-27/regnex/internal/logging"
	"github.com/nid-27/regnex/llm/services/team"
)

func main() {
	cfg, err := config.Load(os.Getenv("REGNEX_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.New(cfg.Logging, os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sys, err := team.Build(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create agent system")
	}
	defer sys.Close()

	if ok, summary := sys.Setup(ctx); ok {
		logger.Info().Msg(summary)
	} else {
		logger.Warn().Str("summary", summary).Msg("initial setup failed, retry with POST /api/v1/setup")
	}

	if err := server.New(cfg.Server, sys, &logger).Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
	}
}

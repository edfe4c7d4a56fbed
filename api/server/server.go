package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/nid-27/regnex/api/handlers"
	"github.com/nid-27/regnex/internal/config"
	"github.com/nid-27/regnex/internal/logging"
)

// Version is reported by the health route
const Version = "1.0.0"

// Server serves the team over HTTP
type Server struct {
	cfg    config.ServerConfig
	team   handlers.Team
	logger *zerolog.Logger
	router *mux.Router
	server *http.Server
}

// New creates a server and registers its routes
func New(cfg config.ServerConfig, t handlers.Team, logger *zerolog.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Server{
		cfg:    cfg,
		team:   t,
		logger: logger,
		router: mux.NewRouter(),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.router,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	teamHandler := handlers.NewTeamHandler(s.team, s.logger, Version)
	convHandler := handlers.NewConversationHandler(s.team, s.logger)
	chatHandler := handlers.NewChatHandler(s.team, s.logger)

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", teamHandler.Health).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/status", teamHandler.Status).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/setup", teamHandler.Setup).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/ask", teamHandler.Ask).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/examples", teamHandler.Examples).Methods(http.MethodGet, http.MethodOptions)

	api.HandleFunc("/conversations", convHandler.List).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/conversations/{id}", convHandler.Get).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/conversations/{id}", convHandler.Delete).Methods(http.MethodDelete)

	// OpenAI-compatible chat completions
	s.router.HandleFunc("/v1/chat/completions", chatHandler.ChatCompletions).Methods(http.MethodPost, http.MethodOptions)

	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// Handler returns the routed handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request completed")
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowedOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowedOrigin(origin string) string {
	if slices.Contains(s.cfg.CORSOrigins, "*") {
		return "*"
	}
	if origin != "" && slices.Contains(s.cfg.CORSOrigins, origin) {
		return origin
	}
	return ""
}

// Run serves until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("starting regnex API server")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("server failed: %w", err)
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(s.cfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.logger.Info().Msg("server stopped")
	return nil
}

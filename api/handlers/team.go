package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nid-27/regnex/api"
	"github.com/nid-27/regnex/llm/agents"
	"github.com/nid-27/regnex/llm/services/conversations"
	"github.com/nid-27/regnex/llm/services/team"
)

// TeamHandler serves setup, status and question routes
type TeamHandler struct {
	team    Team
	logger  *zerolog.Logger
	version string
}

// NewTeamHandler creates a handler for the team system
func NewTeamHandler(t Team, logger *zerolog.Logger, version string) *TeamHandler {
	return &TeamHandler{team: t, logger: logger, version: version}
}

func (h *TeamHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   h.version,
	}, h.logger)
}

func (h *TeamHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.team.Status(), h.logger)
}

// Setup loads the data folders and builds the agents. The body is
// optional; blank folders fall back to the configured ones.
//
//	curl -X POST http://localhost:7860/api/v1/setup \
//	  -H "Content-Type: application/json" \
//	  -d '{"finance_dir": "financeAgent/data", "csv_dir": "csvAgent/data"}'
func (h *TeamHandler) Setup(w http.ResponseWriter, r *http.Request) {
	var req api.SetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload", h.logger)
		return
	}

	ok, summary := h.team.SetupDirs(r.Context(), team.DataDirs{FinanceDir: req.FinanceDir, CSVDir: req.CSVDir})
	if !ok {
		writeError(w, http.StatusInternalServerError, summary, h.logger)
		return
	}
	writeData(w, http.StatusOK, api.SetupResponse{Summary: summary, Status: h.team.Status()}, h.logger)
}

// Ask forwards a question to the team leader
//
//	curl -X POST http://localhost:7860/api/v1/ask \
//	  -H "Content-Type: application/json" \
//	  -d '{"query": "For 2005-03-11 data, can you tell if agreed, neutral or negative"}'
func (h *TeamHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req api.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload", h.logger)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, team.EmptyQueryMessage, h.logger)
		return
	}

	resp, err := h.team.Query(r.Context(), team.Request{
		Query:             req.Query,
		ConversationID:    req.ConversationID,
		StartConversation: true,
	})
	if err != nil {
		status, message := queryError(err)
		writeError(w, status, message, h.logger)
		return
	}

	writeData(w, http.StatusOK, api.AskResponse{
		Answer:         resp.Answer,
		ConversationID: resp.ConversationID,
		Cached:         resp.Cached,
		Stats:          resp.Stats,
	}, h.logger)
}

func (h *TeamHandler) Examples(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]any{"examples": team.ExampleQueries}, h.logger)
}

// queryError maps a query failure to an HTTP status and user message
func queryError(err error) (int, string) {
	switch {
	case errors.Is(err, team.ErrNotInitialized):
		return http.StatusServiceUnavailable, team.NotInitializedMessage
	case errors.Is(err, agents.ErrEmptyQuery):
		return http.StatusBadRequest, team.EmptyQueryMessage
	case errors.Is(err, conversations.ErrNotFound):
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, fmt.Sprintf("Error processing query: %v", err)
	}
}

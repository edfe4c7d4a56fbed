package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/nid-27/regnex/api"
	"github.com/nid-27/regnex/llm/services/conversations"
	"github.com/nid-27/regnex/llm/services/team"
)

// Team is the part of the team system the handlers use
type Team interface {
	SetupDirs(ctx context.Context, dirs team.DataDirs) (bool, string)
	Query(ctx context.Context, req team.Request) (*team.Response, error)
	Status() team.Status
	Conversations() *conversations.Service
}

func writeJSON(w http.ResponseWriter, status int, body any, log *zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func writeData(w http.ResponseWriter, status int, data any, log *zerolog.Logger) {
	writeJSON(w, status, api.APIResponse{Success: true, Data: data}, log)
}

func writeError(w http.ResponseWriter, status int, message string, log *zerolog.Logger) {
	writeJSON(w, status, api.APIResponse{Success: false, Error: message}, log)
}

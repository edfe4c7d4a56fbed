package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/nid-27/regnex/llm/services/conversations"
)

// ConversationHandler exposes stored conversations
type ConversationHandler struct {
	team   Team
	logger *zerolog.Logger
}

// NewConversationHandler creates a conversation handler
func NewConversationHandler(t Team, logger *zerolog.Logger) *ConversationHandler {
	return &ConversationHandler{team: t, logger: logger}
}

func (h *ConversationHandler) service(w http.ResponseWriter) *conversations.Service {
	svc := h.team.Conversations()
	if svc == nil {
		writeError(w, http.StatusNotFound, "conversations are disabled", h.logger)
	}
	return svc
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	svc := h.service(w)
	if svc == nil {
		return
	}
	list, err := svc.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), h.logger)
		return
	}
	writeData(w, http.StatusOK, list, h.logger)
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	svc := h.service(w)
	if svc == nil {
		return
	}
	conv, err := svc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, conv, h.logger)
}

func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	svc := h.service(w)
	if svc == nil {
		return
	}
	id := mux.Vars(r)["id"]
	if err := svc.Delete(r.Context(), id); err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"deleted": id}, h.logger)
}

func (h *ConversationHandler) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, conversations.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error(), h.logger)
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error(), h.logger)
}

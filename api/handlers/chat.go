package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/nid-27/regnex/api"
	"github.com/nid-27/regnex/llm/services/team"
)

// DefaultChatModel is reported when a chat request names no model
const DefaultChatModel = "regnex-team"

// ChatHandler answers OpenAI-compatible chat completion requests with the team
type ChatHandler struct {
	team   Team
	logger *zerolog.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(t Team, logger *zerolog.Logger) *ChatHandler {
	return &ChatHandler{team: t, logger: logger}
}

// ChatCompletions uses the last user message as the team query.
//
//	curl -X POST http://localhost:7860/v1/chat/completions \
//	  -H "Content-Type: application/json" \
//	  -d '{"model": "regnex-team", "messages": [{"role":"user","content":"Analyze the revenue trends in the CSV data"}]}'
func (h *ChatHandler) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req openai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, http.StatusBadRequest, "Invalid JSON request", err.Error())
		return
	}
	if req.Stream {
		h.writeJSONError(w, http.StatusBadRequest, "Streaming not supported", "Set stream=false or omit the field")
		return
	}

	query := lastUserMessage(req.Messages)
	if query == "" {
		h.writeJSONError(w, http.StatusBadRequest, "Invalid request", team.EmptyQueryMessage)
		return
	}

	resp, err := h.team.Query(r.Context(), team.Request{Query: query})
	if err != nil {
		status, message := queryError(err)
		h.writeJSONError(w, status, "Completion failed", message)
		return
	}

	model := req.Model
	if model == "" {
		model = DefaultChatModel
	}
	completion := openai.ChatCompletionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []openai.ChatCompletionChoice{{
			Index: 0,
			Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: resp.Answer,
			},
			FinishReason: openai.FinishReasonStop,
		}},
		Usage: openai.Usage{
			PromptTokens:     resp.Stats.TokensIn,
			CompletionTokens: resp.Stats.TokensOut,
			TotalTokens:      resp.Stats.TokensIn + resp.Stats.TokensOut,
		},
	}
	writeJSON(w, http.StatusOK, completion, h.logger)
}

func lastUserMessage(messages []openai.ChatCompletionMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role != openai.ChatMessageRoleUser {
			continue
		}
		if text := strings.TrimSpace(m.Content); text != "" {
			return text
		}
		var parts []string
		for _, p := range m.MultiContent {
			if p.Type == openai.ChatMessagePartTypeText && strings.TrimSpace(p.Text) != "" {
				parts = append(parts, strings.TrimSpace(p.Text))
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

func (h *ChatHandler) writeJSONError(w http.ResponseWriter, status int, message string, details string) {
	writeJSON(w, status, api.ErrorResponse{
		Error: message,
		Code:  http.StatusText(status),
		Details: map[string]any{
			"details": details,
		},
	}, h.logger)
}

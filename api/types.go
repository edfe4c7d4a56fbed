package api

// APIResponse is the envelope of every /api/v1 response
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AskRequest represents a question for the team
type AskRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// AskResponse represents the team's answer
type AskResponse struct {
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id,omitempty"`
	Cached         bool   `json:"cached"`
	Stats          any    `json:"stats,omitempty"`
}

// SetupRequest optionally picks the data folders for a setup run
type SetupRequest struct {
	FinanceDir string `json:"finance_dir,omitempty"`
	CSVDir     string `json:"csv_dir,omitempty"`
}

// SetupResponse reports a setup run
type SetupResponse struct {
	Summary string `json:"summary"`
	Status  any    `json:"status"`
}

// ErrorResponse represents an error on the OpenAI-compatible routes
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

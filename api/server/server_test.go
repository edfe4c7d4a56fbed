package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nid-27/regnex/api"
	"github.com/nid-27/regnex/internal/config"
	providertest "github.com/nid-27/regnex/llm/providers/test"
	"github.com/nid-27/regnex/llm/services/conversations"
	"github.com/nid-27/regnex/llm/services/team"
)

func setupTestServer(t *testing.T, fake *providertest.FakeProvider, withConversations bool) (*httptest.Server, *team.System) {
	t.Helper()
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Model.APIKey = "test-key"
	cfg.Data.FinanceDir = filepath.Join(root, "finance")
	cfg.Data.CSVDir = filepath.Join(root, "csv")
	require.NoError(t, os.MkdirAll(cfg.Data.FinanceDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Data.FinanceDir, "news.txt"), []byte("ACME beat estimates."), 0o644))

	opts := team.Options{Provider: fake}
	if withConversations {
		opts.Conversations = conversations.NewService(conversations.NewMemoryStore(), 20)
	}
	sys, err := team.NewSystem(cfg, opts)
	require.NoError(t, err)

	srv := httptest.NewServer(New(cfg.Server, sys, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, sys
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, api.APIResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out api.APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHealthAndExamples(t *testing.T) {
	srv, _ := setupTestServer(t, providertest.NewFakeProvider(), false)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	_, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/examples", nil)
	data := body.Data.(map[string]any)
	assert.Len(t, data["examples"], len(team.ExampleQueries))
}

func TestAskBeforeSetup(t *testing.T) {
	srv, _ := setupTestServer(t, providertest.NewFakeProvider(), false)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/ask", api.AskRequest{Query: "hello"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.False(t, body.Success)
	assert.Equal(t, team.NotInitializedMessage, body.Error)

	_, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/status", nil)
	assert.Equal(t, false, body.Data.(map[string]any)["initialized"])
}

func TestSetupAndAsk(t *testing.T) {
	fake := providertest.NewFakeProvider()
	fake.AddText("How is ACME doing?", "ACME beat estimates.")
	srv, _ := setupTestServer(t, fake, true)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/setup", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := body.Data.(map[string]any)["summary"].(string)
	assert.Contains(t, summary, "Finance Documents Loaded: 1")
	assert.Contains(t, summary, "CSV Files Loaded: 0")

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/ask", api.AskRequest{Query: "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, team.EmptyQueryMessage, body.Error)

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/ask", api.AskRequest{Query: "How is ACME doing?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body.Data.(map[string]any)
	assert.Equal(t, "ACME beat estimates.", data["answer"])
	convID := data["conversation_id"].(string)
	require.NotEmpty(t, convID)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/conversations/"+convID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body.Data.(map[string]any)["messages"], 2)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/conversations/"+convID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/conversations/"+convID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body.Error, "conversation not found")
}

func TestSetupWithFolders(t *testing.T) {
	srv, sys := setupTestServer(t, providertest.NewFakeProvider(), false)

	root := t.TempDir()
	financeDir := filepath.Join(root, "reports")
	csvDir := filepath.Join(root, "quotes")
	require.NoError(t, os.MkdirAll(financeDir, 0o755))
	for _, name := range []string{"q1.txt", "q2.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(financeDir, name), []byte("Revenue grew."), 0o644))
	}

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/setup", api.SetupRequest{FinanceDir: financeDir, CSVDir: csvDir})
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Error)
	summary := body.Data.(map[string]any)["summary"].(string)
	assert.Contains(t, summary, "Finance Documents Loaded: 2")
	assert.Contains(t, summary, "CSV Files Loaded: 0")
	assert.DirExists(t, csvDir)
	assert.Equal(t, financeDir, sys.Status().FinanceDir)
	assert.Equal(t, csvDir, sys.Status().CSVDir)

	// blank folders fall back to the configured ones
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/setup", api.SetupRequest{FinanceDir: "", CSVDir: " "})
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Error)
	assert.Contains(t, body.Data.(map[string]any)["summary"], "Finance Documents Loaded: 1")
	assert.NotEqual(t, financeDir, sys.Status().FinanceDir)

	resp, err := http.Post(srv.URL+"/api/v1/setup", "application/json", bytes.NewReader([]byte(`{"finance_dir":`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConversationsDisabled(t *testing.T) {
	srv, _ := setupTestServer(t, providertest.NewFakeProvider(), false)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/conversations", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "conversations are disabled", body.Error)
}

func TestAskProviderFailure(t *testing.T) {
	fake := providertest.NewFakeProvider()
	srv, sys := setupTestServer(t, fake, false)
	ok, _ := sys.Setup(context.Background())
	require.True(t, ok)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/ask", api.AskRequest{Query: "unscripted"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body.Error, "Error processing query: ")
}

func TestChatCompletions(t *testing.T) {
	fake := providertest.NewFakeProvider()
	fake.AddText("Analyze the revenue trends", "Revenue is rising.")
	srv, sys := setupTestServer(t, fake, true)
	ok, _ := sys.Setup(context.Background())
	require.True(t, ok)

	reqBody, err := json.Marshal(openai.ChatCompletionRequest{
		Model: "regnex-team",
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "be brief"},
			{Role: openai.ChatMessageRoleUser, Content: "Analyze the revenue trends"},
		},
	})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/v1/chat/completions", "application/json", bytes.NewReader(reqBody))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var completion openai.ChatCompletionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&completion))
	require.Len(t, completion.Choices, 1)
	assert.Equal(t, "Revenue is rising.", completion.Choices[0].Message.Content)
	assert.Equal(t, openai.FinishReasonStop, completion.Choices[0].FinishReason)
	assert.Equal(t, "chat.completion", completion.Object)
	assert.Equal(t, 15, completion.Usage.TotalTokens)

	// completions carry no conversation id, so nothing is stored
	list, err := sys.Conversations().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestChatCompletionsRejectsStreaming(t *testing.T) {
	srv, _ := setupTestServer(t, providertest.NewFakeProvider(), false)

	reqBody := []byte(`{"model":"x","stream":true,"messages":[{"role":"user","content":"hi"}]}`)
	resp, err := http.Post(srv.URL+"/v1/chat/completions", "application/json", bytes.NewReader(reqBody))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, "Streaming not supported", errResp.Error)
}

func TestPreflightAndMetrics(t *testing.T) {
	srv, _ := setupTestServer(t, providertest.NewFakeProvider(), false)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/ask", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAllowedOrigin(t *testing.T) {
	s := &Server{cfg: config.ServerConfig{CORSOrigins: []string{"https://app.example.com"}}}
	assert.Equal(t, "https://app.example.com", s.allowedOrigin("https://app.example.com"))
	assert.Equal(t, "", s.allowedOrigin("https://evil.example.com"))
}

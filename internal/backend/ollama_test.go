package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmajor9/relaybot/internal/domain"
)

type ollamaStub struct {
	chatCalls []ollamaChatRequest
	pullCalls []string

	// chatResponses is consumed per chat call: a non-empty string is the
	// assistant answer, an empty string means "model not found".
	chatResponses []string
}

func newOllamaServer(t *testing.T, stub *ollamaStub) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"version": "0.5.0"})
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		stub.chatCalls = append(stub.chatCalls, req)

		if len(stub.chatResponses) == 0 {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "no scripted response"})
			return
		}
		answer := stub.chatResponses[0]
		stub.chatResponses = stub.chatResponses[1:]

		if answer == "" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "model '" + req.Model + "' not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{Message: ollamaMessage{Role: "assistant", Content: answer}})
	})
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		stub.pullCalls = append(stub.pullCalls, req.Model)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "success"})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testTranscript() []domain.TranscriptEntry {
	return []domain.TranscriptEntry{
		{Role: domain.RoleSystem, Content: "You are helpful."},
		{Role: domain.RoleUser, Content: "hi"},
	}
}

func TestOllamaClient_Complete(t *testing.T) {
	stub := &ollamaStub{chatResponses: []string{"hello there"}}
	server := newOllamaServer(t, stub)
	client := NewOllamaClient(server.URL, "ollama")

	answer, err := client.Complete(context.Background(), testTranscript(), domain.ModelDescriptor{ModelName: "llama3.2"}, CompletionParams{Temperature: 0.7, MaxTokens: 256, TopP: 1})
	require.NoError(t, err)
	assert.Equal(t, "hello there", answer)

	require.Len(t, stub.chatCalls, 1)
	call := stub.chatCalls[0]
	assert.Equal(t, "llama3.2", call.Model)
	assert.False(t, call.Stream)
	assert.Len(t, call.Messages, 2)
	assert.Equal(t, 0.7, call.Options["temperature"])
	assert.Equal(t, float64(256), call.Options["num_predict"])
	assert.Nil(t, call.KeepAlive)
}

func TestOllamaClient_PullsMissingModelAndRetries(t *testing.T) {
	stub := &ollamaStub{chatResponses: []string{"", "after pull"}}
	server := newOllamaServer(t, stub)
	client := NewOllamaClient(server.URL, "ollama")

	answer, err := client.Complete(context.Background(), testTranscript(), domain.ModelDescriptor{ModelName: "llama3.2"}, CompletionParams{})
	require.NoError(t, err)
	assert.Equal(t, "after pull", answer)

	assert.Equal(t, []string{"llama3.2"}, stub.pullCalls)
	assert.Len(t, stub.chatCalls, 2)
}

func TestOllamaClient_SurfacesBackendError(t *testing.T) {
	stub := &ollamaStub{} // no scripted responses -> 500
	server := newOllamaServer(t, stub)
	client := NewOllamaClient(server.URL, "ollama")

	_, err := client.Complete(context.Background(), testTranscript(), domain.ModelDescriptor{ModelName: "llama3.2"}, CompletionParams{})
	var backendErr *domain.BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, http.StatusInternalServerError, backendErr.Status)
	assert.Empty(t, stub.pullCalls, "a server error is not a missing model")
}

func TestOllamaClient_UnloadSendsZeroKeepAlive(t *testing.T) {
	stub := &ollamaStub{chatResponses: []string{"ok"}}
	server := newOllamaServer(t, stub)
	client := NewOllamaClient(server.URL, "ollama")

	require.NoError(t, client.Unload(context.Background(), "llama3.2"))

	require.Len(t, stub.chatCalls, 1)
	call := stub.chatCalls[0]
	assert.Equal(t, "llama3.2", call.Model)
	require.NotNil(t, call.KeepAlive)
	assert.Equal(t, 0, *call.KeepAlive)
}

func TestIsModelMissing(t *testing.T) {
	assert.True(t, isModelMissing(&domain.BackendError{Status: http.StatusNotFound, Detail: "x"}))
	assert.True(t, isModelMissing(&domain.BackendError{Status: http.StatusBadRequest, Detail: "model not found"}))
	assert.False(t, isModelMissing(&domain.BackendError{Status: http.StatusInternalServerError, Detail: "boom"}))
	assert.False(t, isModelMissing(nil))
}

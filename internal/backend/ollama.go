package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/tmajor9/relaybot/internal/config"
	"github.com/tmajor9/relaybot/internal/domain"
)

// OllamaClient talks to a local ollama server over its REST API and
// manages the server process itself: the server is spawned on demand,
// missing models are pulled once and the call retried, and Unload evicts
// a model by issuing a zero-keep-alive request.
type OllamaClient struct {
	baseURL    string
	binary     string
	warmup     time.Duration
	httpClient *http.Client

	spawnMu sync.Mutex
}

func NewOllamaClient(baseURL, binary string) *OllamaClient {
	return &OllamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		binary:     binary,
		warmup:     config.ServerWarmup,
		httpClient: &http.Client{Timeout: config.RequestTimeout},
	}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model     string                 `json:"model"`
	Messages  []ollamaMessage        `json:"messages"`
	Stream    bool                   `json:"stream"`
	Options   map[string]interface{} `json:"options,omitempty"`
	KeepAlive *int                   `json:"keep_alive,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Error   string        `json:"error"`
}

func (c *OllamaClient) Complete(ctx context.Context, transcript []domain.TranscriptEntry, desc domain.ModelDescriptor, params CompletionParams) (string, error) {
	if err := c.EnsureRunning(ctx); err != nil {
		return "", err
	}

	messages := make([]ollamaMessage, len(transcript))
	for i, entry := range transcript {
		messages[i] = ollamaMessage{Role: entry.Role, Content: entry.Content}
	}

	options := map[string]interface{}{
		"temperature": params.Temperature,
		"num_predict": params.MaxTokens,
		"top_p":       params.TopP,
	}

	answer, err := c.chat(ctx, ollamaChatRequest{
		Model:    desc.ModelName,
		Messages: messages,
		Stream:   false,
		Options:  options,
	})
	if isModelMissing(err) {
		slog.Info("model not loaded on local server, pulling", "model", desc.ModelName)
		if pullErr := c.Pull(ctx, desc.ModelName); pullErr != nil {
			return "", pullErr
		}
		time.Sleep(config.PullRetryDelay)
		answer, err = c.chat(ctx, ollamaChatRequest{
			Model:    desc.ModelName,
			Messages: messages,
			Stream:   false,
			Options:  options,
		})
	}
	return answer, err
}

// Unload asks the server to release a model immediately. This is the
// eviction side-effect issued by the resource manager.
func (c *OllamaClient) Unload(ctx context.Context, modelName string) error {
	zero := 0
	_, err := c.chat(ctx, ollamaChatRequest{
		Model:     modelName,
		Messages:  []ollamaMessage{},
		Stream:    false,
		KeepAlive: &zero,
	})
	return err
}

func (c *OllamaClient) chat(ctx context.Context, chatReq ollamaChatRequest) (string, error) {
	payload, err := json.Marshal(chatReq)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domain.BackendError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	var chatResp ollamaChatResponse
	if resp.StatusCode != http.StatusOK {
		detail := string(body)
		if json.Unmarshal(body, &chatResp) == nil && chatResp.Error != "" {
			detail = chatResp.Error
		}
		return "", &domain.BackendError{Status: resp.StatusCode, Detail: detail}
	}

	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("parse chat response: %w", err)
	}
	return chatResp.Message.Content, nil
}

// Pull downloads a model into the local server.
func (c *OllamaClient) Pull(ctx context.Context, modelName string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"model":  modelName,
		"stream": false,
	})
	if err != nil {
		return fmt.Errorf("marshal pull request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/pull", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create pull request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Pulling can take far longer than a chat call.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return &domain.BackendError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read pull response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &domain.BackendError{Status: resp.StatusCode, Detail: string(body)}
	}
	return nil
}

// EnsureRunning probes the server and spawns it when absent. The probe
// makes the spawn idempotent: a server started by anyone else is reused.
func (c *OllamaClient) EnsureRunning(ctx context.Context) error {
	c.spawnMu.Lock()
	defer c.spawnMu.Unlock()

	if c.probe(ctx) {
		return nil
	}

	slog.Info("local chat server not running, starting", "binary", c.binary)
	cmd := exec.Command(c.binary, "serve")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start local chat server: %w", err)
	}
	go cmd.Wait()

	time.Sleep(c.warmup)
	if !c.probe(ctx) {
		return &domain.BackendError{Detail: "local chat server did not come up"}
	}
	return nil
}

func (c *OllamaClient) probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, "GET", c.baseURL+"/api/version", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func isModelMissing(err error) bool {
	var backendErr *domain.BackendError
	if !errors.As(err, &backendErr) {
		return false
	}
	return backendErr.Status == http.StatusNotFound ||
		strings.Contains(backendErr.Detail, "not found")
}

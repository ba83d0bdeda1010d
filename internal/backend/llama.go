package backend

import (
	"context"
	"fmt"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"
	"github.com/tmajor9/relaybot/internal/domain"
)

// LlamaClient runs inference in-process against a GGUF model file loaded
// at construction. No admission control happens here: the caller sizes
// the model against the resource budget before constructing one.
type LlamaClient struct {
	model *llama.LLama
}

func NewLlamaClient(modelPath string, contextSize int) (*LlamaClient, error) {
	model, err := llama.New(modelPath, llama.SetContext(contextSize))
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", modelPath, err)
	}
	return &LlamaClient{model: model}, nil
}

// Close releases the loaded model's memory.
func (c *LlamaClient) Close() {
	if c.model != nil {
		c.model.Free()
		c.model = nil
	}
}

func (c *LlamaClient) Complete(ctx context.Context, transcript []domain.TranscriptEntry, desc domain.ModelDescriptor, params CompletionParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	out, err := c.model.Predict(renderPrompt(transcript),
		llama.SetTemperature(float32(params.Temperature)),
		llama.SetTopP(float32(params.TopP)),
		llama.SetTokens(params.MaxTokens),
	)
	if err != nil {
		return "", &domain.BackendError{Detail: err.Error()}
	}
	return strings.TrimSpace(out), nil
}

// renderPrompt flattens a transcript into a plain chat prompt ending
// with an open assistant turn.
func renderPrompt(transcript []domain.TranscriptEntry) string {
	var b strings.Builder
	for _, entry := range transcript {
		switch entry.Role {
		case domain.RoleSystem:
			b.WriteString(entry.Content)
			b.WriteString("\n\n")
		case domain.RoleUser:
			b.WriteString("User: ")
			b.WriteString(entry.Content)
			b.WriteString("\n")
		case domain.RoleAssistant:
			b.WriteString("Assistant: ")
			b.WriteString(entry.Content)
			b.WriteString("\n")
		}
	}
	b.WriteString("Assistant:")
	return b.String()
}

package backend

import (
	"context"
	"errors"
	"net/url"

	"github.com/sashabaranov/go-openai"
	"github.com/tmajor9/relaybot/internal/domain"
)

// GroqClient talks to Groq's OpenAI-compatible chat completion API.
// It is stateless: one network call per completion.
type GroqClient struct {
	client *openai.Client
}

func NewGroqClient(apiKey, baseURL string) *GroqClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &GroqClient{client: openai.NewClientWithConfig(cfg)}
}

func (c *GroqClient) Complete(ctx context.Context, transcript []domain.TranscriptEntry, desc domain.ModelDescriptor, params CompletionParams) (string, error) {
	messages := make([]openai.ChatCompletionMessage, len(transcript))
	for i, entry := range transcript {
		messages[i] = openai.ChatCompletionMessage{
			Role:    entry.Role,
			Content: entry.Content,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       desc.ModelName,
		Messages:    messages,
		Temperature: float32(params.Temperature),
		MaxTokens:   params.MaxTokens,
		TopP:        float32(params.TopP),
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", &domain.BackendError{Detail: "empty completion response"}
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &domain.BackendError{Status: apiErr.HTTPStatusCode, Detail: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &domain.BackendError{Status: reqErr.HTTPStatusCode, Detail: reqErr.Error()}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &domain.BackendError{Detail: urlErr.Error()}
	}
	return &domain.BackendError{Detail: err.Error()}
}

package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tmajor9/relaybot/internal/domain"
)

// SDWebUIClient talks to a Stable Diffusion WebUI txt2img endpoint.
// Generation failures are soft: an absent or malformed image yields
// (nil, nil) and a logged warning so the caller can report a failed
// generation without tearing down the request path.
type SDWebUIClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewSDWebUIClient(baseURL string) *SDWebUIClient {
	return &SDWebUIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

type txt2imgRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt"`
	Steps          int    `json:"steps"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
}

type txt2imgResponse struct {
	Images []string `json:"images"`
}

func (c *SDWebUIClient) Generate(ctx context.Context, prompt string, desc domain.ModelDescriptor) ([]byte, error) {
	payload, err := json.Marshal(txt2imgRequest{
		Prompt: prompt,
		Steps:  20,
		Width:  512,
		Height: 512,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal txt2img request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/sdapi/v1/txt2img", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create txt2img request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("image generation request failed", "error", err)
		return nil, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Warn("image generation read failed", "error", err)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		slog.Warn("image generation returned non-success", "status", resp.StatusCode)
		return nil, nil
	}

	var imgResp txt2imgResponse
	if err := json.Unmarshal(body, &imgResp); err != nil || len(imgResp.Images) == 0 {
		slog.Warn("image generation response missing image", "error", err)
		return nil, nil
	}

	data, err := base64.StdEncoding.DecodeString(imgResp.Images[0])
	if err != nil {
		slog.Warn("image generation returned malformed image data", "error", err)
		return nil, nil
	}
	return data, nil
}

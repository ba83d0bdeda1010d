package backend

import (
	"context"

	"github.com/tmajor9/relaybot/internal/domain"
)

// CompletionParams are the per-request generation parameters.
type CompletionParams struct {
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// TextCompleter produces a chat completion for a transcript.
type TextCompleter interface {
	Complete(ctx context.Context, transcript []domain.TranscriptEntry, desc domain.ModelDescriptor, params CompletionParams) (string, error)
}

// ImageGenerator produces a PNG image for a prompt. A nil result with a
// nil error means the backend failed softly; callers must treat it as a
// failed generation, not a crash.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, desc domain.ModelDescriptor) ([]byte, error)
}

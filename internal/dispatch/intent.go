package dispatch

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tmajor9/relaybot/internal/backend"
	"github.com/tmajor9/relaybot/internal/config"
	"github.com/tmajor9/relaybot/internal/domain"
)

const confirmSystemPrompt = "You decide whether a chat message is asking for a picture " +
	"to be generated. Answer with exactly one word: yes or no."

const rewriteSystemPrompt = "Rewrite the user's request as a single concise image " +
	"generation prompt. Use the conversation for context. Reply with the prompt only, " +
	"no commentary."

// IntentClassifier runs the two fast-model calls on the enqueue path:
// a yes/no confirmation that a trigger-word message really wants an
// image, and a prompt rewrite against the transcript.
type IntentClassifier struct {
	completer backend.TextCompleter
	desc      domain.ModelDescriptor
	triggers  []string
}

func NewIntentClassifier(completer backend.TextCompleter, modelName string) *IntentClassifier {
	return &IntentClassifier{
		completer: completer,
		desc: domain.ModelDescriptor{
			Name:      modelName,
			APIType:   domain.APITypeHosted,
			API:       domain.APIKindGroq,
			ModelName: modelName,
		},
		triggers: config.ImageTriggerWords,
	}
}

// Matches reports whether the text contains an image trigger word.
func (ic *IntentClassifier) Matches(text string) bool {
	lower := strings.ToLower(text)
	for _, w := range ic.triggers {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// Confirm asks the fast model whether the message wants an image.
// Any failure counts as "no" so a flaky classifier degrades to plain
// text handling instead of blocking the message.
func (ic *IntentClassifier) Confirm(ctx context.Context, text string) bool {
	answer, err := ic.completer.Complete(ctx, []domain.TranscriptEntry{
		{Role: domain.RoleSystem, Content: confirmSystemPrompt},
		{Role: domain.RoleUser, Content: text},
	}, ic.desc, backend.CompletionParams{
		Temperature: 0,
		MaxTokens:   5,
		TopP:        config.DefaultTopP,
	})
	if err != nil {
		slog.Warn("image intent confirmation failed", "error", err)
		return false
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "yes")
}

// Rewrite produces an improved image prompt from the transcript and the
// triggering message. Falls back to the raw text on failure.
func (ic *IntentClassifier) Rewrite(ctx context.Context, transcript []domain.TranscriptEntry, text string) string {
	messages := []domain.TranscriptEntry{{Role: domain.RoleSystem, Content: rewriteSystemPrompt}}
	for _, entry := range transcript {
		if entry.Role == domain.RoleSystem {
			continue
		}
		messages = append(messages, entry)
	}
	messages = append(messages, domain.TranscriptEntry{Role: domain.RoleUser, Content: text})

	prompt, err := ic.completer.Complete(ctx, messages, ic.desc, backend.CompletionParams{
		Temperature: config.DefaultTemperature,
		MaxTokens:   200,
		TopP:        config.DefaultTopP,
	})
	if err != nil || strings.TrimSpace(prompt) == "" {
		slog.Warn("image prompt rewrite failed, using raw text", "error", err)
		return text
	}
	return strings.TrimSpace(prompt)
}

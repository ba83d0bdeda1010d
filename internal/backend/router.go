package backend

import (
	"fmt"

	"github.com/tmajor9/relaybot/internal/config"
	"github.com/tmajor9/relaybot/internal/domain"
)

// Router picks the client for a model descriptor. Hosted chat and the
// local server client are shared; llama_cpp clients are constructed per
// call because each call may target a different model file, and their
// cleanup func frees the loaded model.
type Router struct {
	groq   *GroqClient
	ollama *OllamaClient
	sd     *SDWebUIClient
}

func NewRouter(groq *GroqClient, ollama *OllamaClient, sd *SDWebUIClient) *Router {
	return &Router{groq: groq, ollama: ollama, sd: sd}
}

func noop() {}

// TextClient returns the text completion client for desc plus a cleanup
// func the caller must run after the completion call.
func (r *Router) TextClient(desc domain.ModelDescriptor) (TextCompleter, func(), error) {
	switch {
	case desc.APIType == domain.APITypeHosted && desc.API == domain.APIKindGroq:
		return r.groq, noop, nil
	case desc.APIType == domain.APITypeLocal && desc.API == domain.APIKindOllama:
		return r.ollama, noop, nil
	case desc.APIType == domain.APITypeLocal && desc.API == domain.APIKindLlamaCpp:
		client, err := NewLlamaClient(desc.ModelName, config.LlamaContextSize)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("text backend (%s, %s): %w", desc.APIType, desc.API, domain.ErrUnknownModel)
	}
}

// ImageClient returns the image generation client for desc.
func (r *Router) ImageClient(desc domain.ModelDescriptor) (ImageGenerator, error) {
	if desc.APIType == domain.APITypeLocal && desc.API == domain.APIKindSDWebUI {
		return r.sd, nil
	}
	return nil, fmt.Errorf("image backend (%s, %s): %w", desc.APIType, desc.API, domain.ErrUnknownModel)
}

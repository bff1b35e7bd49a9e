// Package embeddings turns archived source text into vectors.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrMissingKey is returned when the selected provider has no credentials.
var ErrMissingKey = errors.New("missing API key")

// Embedder matches langchaingo's embeddings.Embedder so either backend can
// sit behind the archive.
type Embedder = lcembeddings.Embedder

// New builds the embedder for provider. "googleai" (the default) uses the
// genai SDK; "openai" goes through langchaingo.
func New(ctx context.Context, provider, model string, dimensions int, googleKey, openAIKey string) (Embedder, error) {
	switch provider {
	case "", "googleai", "google", "gemini":
		return NewGoogleEmbedder(ctx, model, googleKey, dimensions)
	case "openai":
		if openAIKey == "" {
			return nil, fmt.Errorf("openai embedder: %w", ErrMissingKey)
		}
		llm, err := openai.New(openai.WithToken(openAIKey), openai.WithEmbeddingModel(model))
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}
		return lcembeddings.NewEmbedder(llm, lcembeddings.WithBatchSize(64))
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", provider)
	}
}

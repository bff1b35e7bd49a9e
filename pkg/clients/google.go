package clients

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/googleai"
)

const (
	GeminiFlash = "gemini-3-flash-preview"
	GeminiPro   = "gemini-3-pro-preview"
)

// See https://ai.google.dev/gemini-api/docs/models/gemini for possible models
func GoogleAi(ctx context.Context, model, apiKey string) (*googleai.GoogleAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is not set")
	}
	if model == "" {
		model = GeminiFlash
	}
	return googleai.New(ctx, googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(model))
}

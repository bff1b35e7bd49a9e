package clients

import (
	"fmt"

	"github.com/tmc/langchaingo/llms/anthropic"
)

// Provider identifiers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderDeepSeek  = "deepseek"
	ProviderGoogle    = "googleai"
	ProviderOllama    = "ollama"
)

const (
	Claude37Sonnet = "claude-3-7-sonnet-latest"
	Claude35Sonnet = "claude-3-5-sonnet-latest"
	Claude4Sonnet  = "claude-sonnet-4-20250514"
	Claude35Haiku  = "claude-3-5-haiku-20241022"
)

func Anthropic(model, apiKey string) (*anthropic.LLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}
	return anthropic.New(anthropic.WithToken(apiKey), anthropic.WithModel(model))
}

package clients

import (
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const deepSeekBaseURL = "https://api.deepseek.com/v1"

// OpenAI builds an OpenAI-compatible client. An empty baseURL uses the
// OpenAI API.
func OpenAI(model, apiKey, baseURL string) (*openai.LLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	opts := []openai.Option{openai.WithToken(apiKey), openai.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	return openai.New(opts...)
}

// DeepSeek speaks the OpenAI protocol against the DeepSeek endpoint.
func DeepSeek(model, apiKey string) (*openai.LLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("DEEPSEEK_API_KEY is not set")
	}
	return OpenAI(model, apiKey, deepSeekBaseURL)
}

func Ollama(model, serverURL string) (*ollama.LLM, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	return ollama.New(opts...)
}

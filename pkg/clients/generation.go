package clients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mikeboe/deep-research/pkg/metrics"
)

// Generator invokes a named model with a system and a user message and
// returns the text of the reply.
type Generator interface {
	Invoke(ctx context.Context, model, provider, systemPrompt, userPrompt string) (string, error)
}

// GenerationError wraps a failed generation call.
type GenerationError struct {
	Provider string
	Model    string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation %s/%s: %v", e.Provider, e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Keys holds credentials and endpoints for every supported provider.
type Keys struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	DeepSeekAPIKey  string
	GoogleAPIKey    string
	OllamaServerURL string
}

// ModelFactory builds a langchaingo model for a provider.
type ModelFactory func(ctx context.Context, provider, model string) (llms.Model, error)

// Registry is a Generator backed by langchaingo models, built on first use
// and cached per provider and model.
type Registry struct {
	Logger *slog.Logger

	factory ModelFactory
	mu      sync.Mutex
	models  map[string]llms.Model
}

func NewRegistry(keys Keys) *Registry {
	return NewRegistryWithFactory(keys.Factory())
}

// NewRegistryWithFactory uses factory instead of the built-in providers.
func NewRegistryWithFactory(factory ModelFactory) *Registry {
	return &Registry{
		Logger:  slog.Default(),
		factory: factory,
		models:  make(map[string]llms.Model),
	}
}

// Factory returns a ModelFactory for the built-in providers. Unknown
// providers are served by OpenAI.
func (k Keys) Factory() ModelFactory {
	return func(ctx context.Context, provider, model string) (llms.Model, error) {
		switch strings.ToLower(provider) {
		case ProviderAnthropic:
			return Anthropic(model, k.AnthropicAPIKey)
		case ProviderGoogle, "google", "gemini":
			return GoogleAi(ctx, model, k.GoogleAPIKey)
		case ProviderADK:
			return ADK(ctx, model, k.GoogleAPIKey)
		case ProviderDeepSeek:
			return DeepSeek(model, k.DeepSeekAPIKey)
		case ProviderOllama:
			return Ollama(model, k.OllamaServerURL)
		default:
			return OpenAI(model, k.OpenAIAPIKey, "")
		}
	}
}

func (r *Registry) model(ctx context.Context, provider, model string) (llms.Model, error) {
	key := strings.ToLower(provider) + "/" + model

	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.models[key]; ok {
		return m, nil
	}

	r.Logger.Info("Initializing model", "provider", provider, "model", model)
	m, err := r.factory(ctx, provider, model)
	if err != nil {
		return nil, err
	}
	r.models[key] = m
	return m, nil
}

func (r *Registry) Invoke(ctx context.Context, model, provider, systemPrompt, userPrompt string) (string, error) {
	ctx, span := otel.Tracer("deep-research/clients").Start(ctx, "generate")
	span.SetAttributes(attribute.String("llm.provider", provider), attribute.String("llm.model", model))
	defer span.End()

	fail := func(err error) (string, error) {
		metrics.GenerationCalls.WithLabelValues(provider, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", &GenerationError{Provider: provider, Model: model, Err: err}
	}

	llm, err := r.model(ctx, provider, model)
	if err != nil {
		return fail(fmt.Errorf("failed to init model: %w", err))
	}

	start := time.Now()
	resp, err := llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	})
	metrics.GenerationDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		return fail(fmt.Errorf("llm generation failed: %w", err))
	}
	if resp == nil || len(resp.Choices) == 0 {
		return fail(errors.New("llm returned no choices"))
	}

	metrics.GenerationCalls.WithLabelValues(provider, "ok").Inc()
	return resp.Choices[0].Content, nil
}

package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"
)

const ProviderADK = "adk"

// ADKModel adapts an adk model to langchaingo's llms.Model so the Registry
// can serve Gemini through the agent development kit.
type ADKModel struct {
	LLM model.LLM
}

func ADK(ctx context.Context, modelName, apiKey string) (*ADKModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is not set")
	}
	if modelName == "" {
		modelName = GeminiFlash
	}
	llm, err := gemini.NewModel(ctx, modelName, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}
	return &ADKModel{LLM: llm}, nil
}

func (m *ADKModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	req := &model.LLMRequest{
		Model:  m.LLM.Name(),
		Config: &genai.GenerateContentConfig{},
	}
	for _, msg := range messages {
		text := messageText(msg)
		switch msg.Role {
		case llms.ChatMessageTypeSystem:
			req.Config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: text}}}
		case llms.ChatMessageTypeAI:
			req.Contents = append(req.Contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}})
		default:
			req.Contents = append(req.Contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: text}}})
		}
	}

	var out strings.Builder
	for resp, err := range m.LLM.GenerateContent(ctx, req, false) {
		if err != nil {
			return nil, err
		}
		if resp == nil || resp.Content == nil {
			continue
		}
		for _, part := range resp.Content.Parts {
			if part != nil {
				out.WriteString(part.Text)
			}
		}
	}
	if out.Len() == 0 {
		return nil, errors.New("adk model returned no text")
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: out.String()}}}, nil
}

func (m *ADKModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func messageText(msg llms.MessageContent) string {
	var b strings.Builder
	for _, part := range msg.Parts {
		if t, ok := part.(llms.TextContent); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

package clients

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

type fakeLLM struct {
	parts []string
	err   error
	req   *model.LLMRequest
}

func (f *fakeLLM) Name() string { return "gemini-test" }

func (f *fakeLLM) GenerateContent(_ context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	f.req = req
	return func(yield func(*model.LLMResponse, error) bool) {
		if f.err != nil {
			yield(nil, f.err)
			return
		}
		content := &genai.Content{Role: "model"}
		for _, p := range f.parts {
			content.Parts = append(content.Parts, &genai.Part{Text: p})
		}
		yield(&model.LLMResponse{Content: content}, nil)
	}
}

func TestADKModelThroughRegistry(t *testing.T) {
	llm := &fakeLLM{parts: []string{`{"queries": `, `[]}`}}
	r := NewRegistryWithFactory(func(_ context.Context, provider, _ string) (llms.Model, error) {
		assert.Equal(t, ProviderADK, provider)
		return &ADKModel{LLM: llm}, nil
	})

	out, err := r.Invoke(context.Background(), "gemini-test", ProviderADK, "be brief", "list queries")
	require.NoError(t, err)
	assert.Equal(t, `{"queries": []}`, out)

	require.NotNil(t, llm.req)
	assert.Equal(t, "gemini-test", llm.req.Model)
	require.NotNil(t, llm.req.Config.SystemInstruction)
	assert.Equal(t, "be brief", llm.req.Config.SystemInstruction.Parts[0].Text)
	require.Len(t, llm.req.Contents, 1)
	assert.Equal(t, "user", llm.req.Contents[0].Role)
	assert.Equal(t, "list queries", llm.req.Contents[0].Parts[0].Text)
}

func TestADKModelErrors(t *testing.T) {
	boom := errors.New("quota exceeded")
	_, err := (&ADKModel{LLM: &fakeLLM{err: boom}}).GenerateContent(context.Background(), []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, "hi"),
	})
	assert.ErrorIs(t, err, boom)

	_, err = (&ADKModel{LLM: &fakeLLM{}}).GenerateContent(context.Background(), nil)
	assert.Error(t, err)

	_, err = ADK(context.Background(), "", "")
	assert.Error(t, err)
}

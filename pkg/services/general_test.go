package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkhani/shipping-agent/pkg/llm"
)

func TestGeneralAnswerer_Answer(t *testing.T) {
	model := llm.NewMockClient("<think>user wants a definition</think>\n  A bill of lading is a shipping receipt.  ")
	g := NewGeneralAnswerer(model, GeneralConfig{}, zap.NewNop())

	got := g.Answer(context.Background(), "What is a bill of lading?")

	assert.Equal(t, "A bill of lading is a shipping receipt.", got)
	reqs := model.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "What is a bill of lading?", reqs[0].Prompt)
	assert.Equal(t, 1024, reqs[0].MaxTokens)
	assert.Empty(t, reqs[0].System)
}

func TestGeneralAnswerer_Errors(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		err      error
		want     string
	}{
		{
			name:     "ollama unreachable",
			provider: llm.ProviderOllama,
			err:      llm.NewError(llm.ErrorTypeConnection, "connection refused", true, nil),
			want:     "Error: Could not connect to Ollama at http://localhost:11434. Is 'ollama run mistral' running?",
		},
		{
			name:     "other provider unreachable",
			provider: llm.ProviderOpenAI,
			err:      llm.NewError(llm.ErrorTypeConnection, "connection refused", true, nil),
			want:     "Error: Could not connect to the openai endpoint at http://localhost:11434.",
		},
		{
			name:     "malformed",
			provider: llm.ProviderOllama,
			err:      llm.NewError(llm.ErrorTypeMalformed, "bad json", false, nil),
			want:     "Error: Invalid JSON response from the model.",
		},
		{
			name:     "unclassified",
			provider: llm.ProviderOllama,
			err:      errors.New("something odd"),
			want:     "Error: Request to the model failed - llm error: something odd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &llm.MockClient{Err: tt.err, Model: "mistral", Endpoint: "http://localhost:11434"}
			g := NewGeneralAnswerer(model, GeneralConfig{Provider: tt.provider, Timeout: time.Second}, zap.NewNop())

			assert.Equal(t, tt.want, g.Answer(context.Background(), "What is freight?"))
		})
	}
}

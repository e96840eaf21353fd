// Package llm talks to the language models that write SQL and answer
// general questions: Ollama's native API, OpenAI-compatible endpoints and
// Anthropic.
package llm

import (
	"context"
	"time"
)

// Client sends one prompt to a model and returns its text.
// Use this interface for dependency injection to enable mocking in tests.
type Client interface {
	// Generate runs a single non-streaming completion.
	Generate(ctx context.Context, req Request) (*Response, error)

	// GetModel returns the configured model name.
	GetModel() string

	// GetEndpoint returns the configured endpoint.
	GetEndpoint() string
}

// Request is a single-turn completion request.
type Request struct {
	// System is the instruction block. Providers that have no system role
	// receive it prepended to the prompt.
	System      string
	Prompt      string
	Temperature float64
	// MaxTokens caps the completion length. Zero uses the client default.
	MaxTokens int
}

// Response is the model's answer plus usage when the provider reports it.
type Response struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	Elapsed          time.Duration
}

package llm

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Providers.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds configuration for creating an LLM client.
type Config struct {
	Provider  string
	Endpoint  string // Base URL, e.g. "http://localhost:11434"
	Model     string
	APIKey    string // Optional for local endpoints
	MaxTokens int    // Default completion cap (Ollama num_predict)

	// BreakerThreshold enables the circuit breaker when positive.
	BreakerThreshold int
	BreakerReset     time.Duration

	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

func (c *Config) validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if c.Model == "" {
		return errors.New("model is required")
	}
	return nil
}

// New creates the client for cfg.Provider, wrapped in a circuit breaker when
// one is configured.
func New(cfg *Config, logger *zap.Logger) (Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		client Client
		err    error
	)
	switch cfg.Provider {
	case ProviderOllama, "":
		client, err = NewOllamaClient(cfg, logger)
	case ProviderOpenAI:
		client, err = NewOpenAIClient(cfg, logger)
	case ProviderAnthropic:
		client, err = NewAnthropicClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}

	if cfg.BreakerThreshold > 0 {
		breaker := NewCircuitBreaker(CircuitBreakerConfig{
			Threshold:  cfg.BreakerThreshold,
			ResetAfter: cfg.BreakerReset,
		})
		client = NewBreakerClient(client, breaker, logger)
	}
	return client, nil
}

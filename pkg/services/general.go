package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkhani/shipping-agent/pkg/llm"
)

// GeneralConfig tunes general-knowledge answers.
type GeneralConfig struct {
	// Provider names the backend in connectivity errors.
	Provider  string
	Timeout   time.Duration
	MaxTokens int
}

// DefaultGeneralConfig returns the settings used when none are configured.
func DefaultGeneralConfig() GeneralConfig {
	return GeneralConfig{Provider: llm.ProviderOllama, Timeout: 120 * time.Second, MaxTokens: 1024}
}

// GeneralAnswerer answers questions that are not about the database with a
// plain text-in, text-out model call.
type GeneralAnswerer struct {
	model  llm.Client
	cfg    GeneralConfig
	logger *zap.Logger
}

// NewGeneralAnswerer creates a GeneralAnswerer.
func NewGeneralAnswerer(model llm.Client, cfg GeneralConfig, logger *zap.Logger) *GeneralAnswerer {
	defaults := DefaultGeneralConfig()
	if cfg.Provider == "" {
		cfg.Provider = defaults.Provider
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	return &GeneralAnswerer{model: model, cfg: cfg, logger: logger.Named("general")}
}

// Answer returns the model's reply with any reasoning block removed. Failures
// are rendered as a user-facing "Error: ..." message.
func (g *GeneralAnswerer) Answer(ctx context.Context, question string) string {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	resp, err := g.model.Generate(callCtx, llm.Request{Prompt: question, MaxTokens: g.cfg.MaxTokens})
	if err != nil {
		llmErr := llm.ClassifyError(err)
		g.logger.Error("General model call failed",
			zap.String("model", g.model.GetModel()),
			zap.Error(llmErr))
		return g.errorMessage(llmErr)
	}
	return strings.TrimSpace(llm.StripThinking(resp.Content))
}

func (g *GeneralAnswerer) errorMessage(err *llm.Error) string {
	switch err.Type {
	case llm.ErrorTypeConnection:
		if g.cfg.Provider == llm.ProviderOllama {
			return fmt.Sprintf("Error: Could not connect to Ollama at %s. Is 'ollama run %s' running?",
				g.model.GetEndpoint(), g.model.GetModel())
		}
		return fmt.Sprintf("Error: Could not connect to the %s endpoint at %s.", g.cfg.Provider, g.model.GetEndpoint())
	case llm.ErrorTypeMalformed:
		return "Error: Invalid JSON response from the model."
	case llm.ErrorTypeTimeout:
		return fmt.Sprintf("Error: The model did not answer within %s.", g.cfg.Timeout)
	default:
		detail := err.Message
		if err.Cause != nil {
			detail = fmt.Sprintf("%s: %v", detail, err.Cause)
		}
		return fmt.Sprintf("Error: Request to the model failed - %s", detail)
	}
}

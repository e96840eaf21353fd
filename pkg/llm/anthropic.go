package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

const defaultAnthropicMaxTokens = 2048

// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	client    *anthropic.Client
	endpoint  string
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewAnthropicClient creates a client for Anthropic models. The endpoint is
// optional; an empty one uses the public API.
func NewAnthropicClient(cfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.Model == "" {
		return nil, errors.New("model is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("api key is required")
	}

	opts := []anthropic.ClientOption{anthropic.WithHTTPClient(newHTTPClient(cfg.Transport))}
	if cfg.Endpoint != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.Endpoint, "/")))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	return &AnthropicClient{
		client:    anthropic.NewClient(cfg.APIKey, opts...),
		endpoint:  cfg.Endpoint,
		model:     cfg.Model,
		maxTokens: maxTokens,
		logger:    logger.Named("llm.anthropic"),
	}, nil
}

// Generate implements Client.
func (c *AnthropicClient) Generate(ctx context.Context, req Request) (*Response, error) {
	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	prompt := req.Prompt
	temperature := float32(req.Temperature)

	c.logger.Debug("LLM request",
		requestIDField(ctx),
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)))

	start := time.Now()
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		System:      req.System,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	})
	elapsed := time.Since(start)
	if err != nil {
		llmErr := ClassifyError(err).withContext(c.model, c.endpoint)
		c.logger.Error("LLM request failed",
			requestIDField(ctx),
			zap.Duration("elapsed", elapsed),
			zap.String("error_type", string(llmErr.Type)),
			zap.Error(llmErr))
		return nil, llmErr
	}

	content := textContent(resp)
	if content == "" {
		return nil, NewError(ErrorTypeMalformed, "no text in response", false, nil).withContext(c.model, c.endpoint)
	}

	c.logger.Info("LLM request completed",
		requestIDField(ctx),
		zap.Int("prompt_tokens", resp.Usage.InputTokens),
		zap.Int("completion_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", elapsed))

	return &Response{
		Content:          strings.TrimSpace(content),
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		Elapsed:          elapsed,
	}, nil
}

func textContent(resp anthropic.MessagesResponse) string {
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			b.WriteString(*block.Text)
		}
	}
	return b.String()
}

// GetModel implements Client.
func (c *AnthropicClient) GetModel() string {
	return c.model
}

// GetEndpoint implements Client.
func (c *AnthropicClient) GetEndpoint() string {
	if c.endpoint == "" {
		return "https://api.anthropic.com/v1"
	}
	return c.endpoint
}

var _ Client = (*AnthropicClient)(nil)

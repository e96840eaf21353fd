package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient provides access to OpenAI-compatible chat endpoints.
type OpenAIClient struct {
	client    *openai.Client
	endpoint  string
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewOpenAIClient creates a new OpenAI-compatible LLM client.
func NewOpenAIClient(cfg *Config, logger *zap.Logger) (*OpenAIClient, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	clientConfig.HTTPClient = newHTTPClient(cfg.Transport)

	return &OpenAIClient{
		client:    openai.NewClientWithConfig(clientConfig),
		endpoint:  cfg.Endpoint,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger.Named("llm.openai"),
	}, nil
}

// Generate implements Client.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (*Response, error) {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	c.logger.Debug("LLM request",
		requestIDField(ctx),
		zap.String("model", c.model),
		zap.Int("prompt_len", len(req.Prompt)),
		zap.Float64("temperature", req.Temperature))

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   maxTokens,
	})
	elapsed := time.Since(start)
	if err != nil {
		llmErr := c.parseError(err)
		c.logger.Error("LLM request failed",
			requestIDField(ctx),
			zap.Duration("elapsed", elapsed),
			zap.String("error_type", string(llmErr.Type)),
			zap.Error(llmErr))
		return nil, llmErr
	}

	if len(resp.Choices) == 0 {
		return nil, NewError(ErrorTypeMalformed, "no choices in response", false, nil).withContext(c.model, c.endpoint)
	}

	c.logger.Info("LLM request completed",
		requestIDField(ctx),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", elapsed))

	return &Response{
		Content:          strings.TrimSpace(resp.Choices[0].Message.Content),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		Elapsed:          elapsed,
	}, nil
}

// GetModel implements Client.
func (c *OpenAIClient) GetModel() string {
	return c.model
}

// GetEndpoint implements Client.
func (c *OpenAIClient) GetEndpoint() string {
	return c.endpoint
}

// parseError maps go-openai errors onto Error, keeping the HTTP status.
func (c *OpenAIClient) parseError(err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		e := StatusError(apiErr.HTTPStatusCode, apiErr.Message)
		e.Cause = err
		return e.withContext(c.model, c.endpoint)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		if reqErr.HTTPStatusCode >= 200 && reqErr.HTTPStatusCode < 300 {
			return NewError(ErrorTypeMalformed, "invalid JSON response", false, err).withContext(c.model, c.endpoint)
		}
		e := StatusError(reqErr.HTTPStatusCode, fmt.Sprint(reqErr.Err))
		e.Cause = err
		return e.withContext(c.model, c.endpoint)
	}
	return ClassifyError(err).withContext(c.model, c.endpoint)
}

var _ Client = (*OpenAIClient)(nil)

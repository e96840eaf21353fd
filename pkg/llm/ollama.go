package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// OllamaClient speaks Ollama's native API. Requests with a system block go
// to /api/chat; bare prompts go to /api/generate.
type OllamaClient struct {
	http      *http.Client
	endpoint  string
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewOllamaClient creates a client for an Ollama server.
func NewOllamaClient(cfg *Config, logger *zap.Logger) (*OllamaClient, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &OllamaClient{
		http:      newHTTPClient(cfg.Transport),
		endpoint:  strings.TrimSuffix(cfg.Endpoint, "/"),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger.Named("llm.ollama"),
	}, nil
}

type ollamaOptions struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Prompt   string          `json:"prompt,omitempty"`
	Messages []ollamaMessage `json:"messages,omitempty"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaResponse struct {
	Response        string         `json:"response"`
	Message         *ollamaMessage `json:"message"`
	PromptEvalCount int            `json:"prompt_eval_count"`
	EvalCount       int            `json:"eval_count"`
	Error           string         `json:"error"`
}

// Generate implements Client.
func (c *OllamaClient) Generate(ctx context.Context, req Request) (*Response, error) {
	body := ollamaRequest{
		Model:  c.model,
		Stream: false,
		Options: ollamaOptions{
			NumPredict: c.maxTokens,
		},
	}
	if req.MaxTokens > 0 {
		body.Options.NumPredict = req.MaxTokens
	}
	if req.Temperature > 0 {
		t := req.Temperature
		body.Options.Temperature = &t
	}

	path := "/api/generate"
	if req.System != "" {
		path = "/api/chat"
		body.Messages = []ollamaMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		}
	} else {
		body.Prompt = req.Prompt
	}

	c.logger.Debug("LLM request",
		requestIDField(ctx),
		zap.String("model", c.model),
		zap.String("path", path),
		zap.Int("prompt_len", len(req.Prompt)))

	start := time.Now()
	out, err := c.post(ctx, path, body)
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

	content := out.Response
	if out.Message != nil {
		content = out.Message.Content
	}

	c.logger.Info("LLM request completed",
		requestIDField(ctx),
		zap.Int("prompt_tokens", out.PromptEvalCount),
		zap.Int("completion_tokens", out.EvalCount),
		zap.Duration("elapsed", elapsed))

	return &Response{
		Content:          strings.TrimSpace(content),
		PromptTokens:     out.PromptEvalCount,
		CompletionTokens: out.EvalCount,
		Elapsed:          elapsed,
	}, nil
}

func (c *OllamaClient) post(ctx context.Context, path string, body ollamaRequest) (*ollamaResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return nil, NewError(ErrorTypeConnection, "invalid endpoint", false, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, NewError(ErrorTypeConnection, "read response", true, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(raw)
		var errBody ollamaResponse
		if json.Unmarshal(raw, &errBody) == nil && errBody.Error != "" {
			msg = errBody.Error
		}
		return nil, StatusError(resp.StatusCode, msg)
	}

	var out ollamaResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, NewError(ErrorTypeMalformed, "invalid JSON response", false, err)
	}
	if out.Error != "" {
		return nil, NewError(ErrorTypeStatus, out.Error, false, nil)
	}
	return &out, nil
}

// GetModel implements Client.
func (c *OllamaClient) GetModel() string {
	return c.model
}

// GetEndpoint implements Client.
func (c *OllamaClient) GetEndpoint() string {
	return c.endpoint
}

var _ Client = (*OllamaClient)(nil)

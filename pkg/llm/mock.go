package llm

import (
	"context"
	"sync"
)

// MockClient is a configurable Client for tests. Responses are served in
// order; once they run out the last one repeats. GenerateFunc, when set,
// takes precedence.
type MockClient struct {
	GenerateFunc func(ctx context.Context, req Request) (*Response, error)
	Responses    []string
	Err          error

	// Model is returned by GetModel. Defaults to "mock-model".
	Model string
	// Endpoint is returned by GetEndpoint. Defaults to "http://mock-endpoint".
	Endpoint string

	mu       sync.Mutex
	requests []Request
}

// NewMockClient returns a mock that answers with responses in order.
func NewMockClient(responses ...string) *MockClient {
	return &MockClient{Responses: responses}
}

// Generate implements Client.
func (m *MockClient) Generate(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	n := len(m.requests)
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Responses) == 0 {
		return &Response{}, nil
	}
	if n >= len(m.Responses) {
		n = len(m.Responses) - 1
	}
	return &Response{Content: m.Responses[n]}, nil
}

// Calls returns how many times Generate was invoked.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of every request received.
func (m *MockClient) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// GetModel implements Client.
func (m *MockClient) GetModel() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

// GetEndpoint implements Client.
func (m *MockClient) GetEndpoint() string {
	if m.Endpoint == "" {
		return "http://mock-endpoint"
	}
	return m.Endpoint
}

var _ Client = (*MockClient)(nil)

package llm

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const requestIDKey contextKey = "llm_request_id"

// RequestIDHeader carries the request ID on outbound model calls.
const RequestIDHeader = "X-Request-ID"

// WithRequestID returns a context carrying id. An empty id generates one.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request ID attached to ctx, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func requestIDField(ctx context.Context) zap.Field {
	return zap.String("request_id", RequestID(ctx))
}

// requestIDTransport stamps the context's request ID on every request.
type requestIDTransport struct {
	base http.RoundTripper
}

func (t *requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if id := RequestID(req.Context()); id != "" && req.Header.Get(RequestIDHeader) == "" {
		req = req.Clone(req.Context())
		req.Header.Set(RequestIDHeader, id)
	}
	return t.base.RoundTrip(req)
}

// newHTTPClient returns an http.Client that propagates request IDs.
// Timeouts come from the caller's context, not the client.
func newHTTPClient(base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{Transport: &requestIDTransport{base: base}}
}

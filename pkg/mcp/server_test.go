package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkhani/shipping-agent/pkg/llm"
)

func TestNewServer(t *testing.T) {
	s := NewServer("1.0.0", nil, zap.NewNop())

	require.NotNil(t, s)
	require.NotNil(t, s.MCP())
	assert.Same(t, s.mcp, s.MCP())
	assert.NotNil(t, s.NewStreamableHTTPServer())
}

func TestServer_InitializeReportsName(t *testing.T) {
	s := NewServer("2.3.4", nil, zap.NewNop())

	result := s.MCP().HandleMessage(context.Background(), []byte(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"0"}}}`))

	raw, err := json.Marshal(result)
	require.NoError(t, err)

	var response struct {
		Result struct {
			ServerInfo struct {
				Name    string `json:"name"`
				Version string `json:"version"`
			} `json:"serverInfo"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &response))
	assert.Equal(t, ServerName, response.Result.ServerInfo.Name)
	assert.Equal(t, "2.3.4", response.Result.ServerInfo.Version)
}

// The HTTP transport must hand the request context to tool handlers so the
// request ID reaches the model client and the logs.
func TestServer_HTTPContextPropagation(t *testing.T) {
	var received string

	s := NewServer("1.0.0", nil, zap.NewNop())
	s.RegisterTool(mcp.NewTool("whoami"), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		received = llm.RequestID(ctx)
		return mcp.NewToolResultText("ok"), nil
	})
	httpServer := s.NewStreamableHTTPServer()

	body, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "tools/call",
		"params":  map[string]any{"name": "whoami"},
		"id":      1,
	})
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(llm.WithRequestID(req.Context(), "req-7"))

	rec := httptest.NewRecorder()
	httpServer.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-7", received)
}

func TestServer_AuditsToolCalls(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	s := NewServer("1.0.0", NewAuditLogger(zap.New(core)), zap.NewNop())
	s.RegisterTool(mcp.NewTool("echo", mcp.WithString("sql")), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("done"), nil
	})

	s.MCP().HandleMessage(context.Background(), []byte(
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"echo","arguments":{"sql":"SELECT * FROM pii WHERE email = 'a@b.c'"}}}`))

	logs := recorded.FilterMessage("MCP tool call").All()
	require.Len(t, logs, 1)
	fields := logs[0].ContextMap()
	assert.Equal(t, "echo", fields["tool"])
	assert.Equal(t, false, fields["is_error"])
	assert.Equal(t, "done", fields["preview"])
	assert.Equal(t, map[string]any{"sql": "SELECT * FROM pii WHERE email = '***'"}, fields["params"])
}

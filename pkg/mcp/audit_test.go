package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestClassifyResult(t *testing.T) {
	tests := []struct {
		name      string
		result    *mcplib.CallToolResult
		wantLevel string
		wantFlags []string
	}{
		{"nil result", nil, securityNormal, nil},
		{"success", mcplib.NewToolResultText(`{"sql":"SELECT 1"}`), securityNormal, nil},
		{
			name: "unsafe query",
			result: &mcplib.CallToolResult{
				IsError: true,
				Content: []mcplib.Content{mcplib.TextContent{Type: "text", Text: `{"error":true,"code":"unsafe_query"}`}},
			},
			wantLevel: securityWarning,
			wantFlags: []string{"unsafe_query"},
		},
		{
			name: "ordinary tool error",
			result: &mcplib.CallToolResult{
				IsError: true,
				Content: []mcplib.Content{mcplib.TextContent{Type: "text", Text: `{"error":true,"code":"execution_failed"}`}},
			},
			wantLevel: securityNormal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, flags := classifyResult(tt.result)
			assert.Equal(t, tt.wantLevel, level)
			assert.Equal(t, tt.wantFlags, flags)
		})
	}
}

func TestSanitizeParams(t *testing.T) {
	t.Run("nil input", func(t *testing.T) {
		assert.Nil(t, sanitizeParams(nil))
		assert.Nil(t, sanitizeParams(map[string]any{}))
	})

	t.Run("redacts literals in sql keys only", func(t *testing.T) {
		got := sanitizeParams(map[string]any{
			"sql":      `SELECT * FROM pii WHERE "lastName" = 'O''Brien' AND city = 'Lahore'`,
			"question": "Orders shipped to 'Lahore'",
			"limit":    10,
		})
		assert.Equal(t, `SELECT * FROM pii WHERE "lastName" = '***' AND city = '***'`, got["sql"])
		assert.Equal(t, "Orders shipped to 'Lahore'", got["question"])
		assert.Equal(t, 10, got["limit"])
	})

	t.Run("truncates large values", func(t *testing.T) {
		got := sanitizeParams(map[string]any{"question": strings.Repeat("a", maxParamSize+10)})
		s := got["question"].(string)
		assert.True(t, strings.HasSuffix(s, "...[truncated]"))
		assert.Len(t, s, maxParamSize+len("...[truncated]"))
	})

	t.Run("hashes sensitive keys deterministically", func(t *testing.T) {
		a := sanitizeParams(map[string]any{"api_key": "sk-123", "nested": map[string]any{"password": "hunter2"}})
		b := sanitizeParams(map[string]any{"api_key": "sk-123"})

		hashed := a["api_key"].(string)
		assert.True(t, strings.HasPrefix(hashed, "sha256:"))
		assert.Len(t, hashed, len("sha256:")+16)
		assert.Equal(t, hashed, b["api_key"])
		assert.NotContains(t, a["nested"].(map[string]any)["password"], "hunter2")
	})
}

func TestIsSQLParam(t *testing.T) {
	for key, want := range map[string]bool{
		"sql": true, "SQL": true, "query": true, "last_sql": true, "search_query": true,
		"question": false, "format": false, "sqlite": false,
	} {
		assert.Equal(t, want, isSQLParam(key), key)
	}
}

func TestResultPreview(t *testing.T) {
	assert.Empty(t, resultPreview(nil))
	assert.Equal(t, "short", resultPreview(mcplib.NewToolResultText("short")))

	long := resultPreview(mcplib.NewToolResultText(strings.Repeat("x", 300)))
	assert.Equal(t, strings.Repeat("x", 200)+"...[truncated]", long)
}

func TestAuditLogger_OnError(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	a := NewAuditLogger(zap.New(core))

	req := &mcplib.CallToolRequest{}
	req.Params.Name = "ask"
	a.beforeCallTool(context.Background(), 1, req)
	a.onError(context.Background(), 1, mcplib.MethodToolsCall, req, errors.New("boom"))
	a.onError(context.Background(), 2, mcplib.MethodToolsList, nil, errors.New("ignored"))

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "MCP tool call failed", logs[0].Message)
	assert.Equal(t, "ask", logs[0].ContextMap()["tool"])
	assert.Equal(t, "boom", logs[0].ContextMap()["error"])

	_, stillTracked := a.startTimes.Load(1)
	assert.False(t, stillTracked)
}

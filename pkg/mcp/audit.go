package mcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/xkhani/shipping-agent/pkg/llm"
)

// AuditLogger writes one structured log entry per MCP tool call.
type AuditLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by JSON-RPC request ID.
	startTimes sync.Map
}

// NewAuditLogger creates an AuditLogger.
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.Named("mcp-audit")}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *AuditLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *AuditLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *AuditLogger) afterCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	fields := a.baseFields(ctx, id, req)
	level, flags := classifyResult(result)
	fields = append(fields, zap.Bool("is_error", result != nil && result.IsError))
	if preview := resultPreview(result); preview != "" {
		fields = append(fields, zap.String("preview", preview))
	}
	if len(flags) > 0 {
		fields = append(fields, zap.Strings("security_flags", flags))
	}

	switch level {
	case securityWarning:
		a.logger.Warn("MCP tool call", fields...)
	default:
		a.logger.Info("MCP tool call", fields...)
	}
}

func (a *AuditLogger) onError(ctx context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}
	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	fields := a.baseFields(ctx, id, req)
	fields = append(fields, zap.Error(err))
	a.logger.Error("MCP tool call failed", fields...)
}

func (a *AuditLogger) baseFields(ctx context.Context, id any, req *mcplib.CallToolRequest) []zap.Field {
	startTime := a.loadAndDeleteStart(id)
	fields := []zap.Field{
		zap.String("tool", req.Params.Name),
		zap.Int64("duration_ms", time.Since(startTime).Milliseconds()),
		zap.Any("params", sanitizeParams(req.Params.Arguments)),
	}
	if rid := llm.RequestID(ctx); rid != "" {
		fields = append(fields, zap.String("request_id", rid))
	}
	return fields
}

func (a *AuditLogger) loadAndDeleteStart(id any) time.Time {
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		return v.(time.Time)
	}
	return time.Now()
}

// maxParamSize is the maximum size of a string argument kept in audit logs.
const maxParamSize = 10240

// sqlStringLiteralPattern matches SQL string literals, including doubled quotes.
var sqlStringLiteralPattern = regexp.MustCompile(`'(?:[^']*(?:'')?)*[^']*'`)

var sensitiveKeyPattern = regexp.MustCompile(`(?i)(password|passwd|secret|token|api_?key|credential)`)

// sanitizeParams prepares tool arguments for the audit log: SQL literals are
// redacted, long strings truncated and sensitive values hashed.
func sanitizeParams(args any) map[string]any {
	params, ok := args.(map[string]any)
	if !ok || len(params) == 0 {
		return nil
	}

	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		sanitized[k] = sanitizeValue(k, v)
	}
	return sanitized
}

func sanitizeValue(key string, value any) any {
	if sensitiveKeyPattern.MatchString(key) {
		return hashSensitiveValue(value)
	}

	switch val := value.(type) {
	case string:
		return sanitizeStringParam(key, val)
	case map[string]any:
		return sanitizeParams(val)
	default:
		return value
	}
}

func sanitizeStringParam(key string, val string) string {
	if len(val) > maxParamSize {
		val = val[:maxParamSize] + "...[truncated]"
	}
	if isSQLParam(key) {
		val = redactSQLStringLiterals(val)
	}
	return val
}

// isSQLParam returns true if a parameter key likely contains SQL.
func isSQLParam(key string) bool {
	lower := strings.ToLower(key)
	return lower == "sql" || lower == "query" || strings.HasSuffix(lower, "_sql") || strings.HasSuffix(lower, "_query")
}

// redactSQLStringLiterals replaces string literal values in SQL with '***',
// keeping the statement shape readable.
func redactSQLStringLiterals(sql string) string {
	return sqlStringLiteralPattern.ReplaceAllString(sql, "'***'")
}

// hashSensitiveValue returns a SHA-256 prefix so entries can be correlated
// without storing the value.
func hashSensitiveValue(value any) string {
	str, ok := value.(string)
	if !ok {
		str = fmt.Sprintf("%v", value)
	}
	hash := sha256.Sum256([]byte(str))
	return "sha256:" + hex.EncodeToString(hash[:8])
}

const (
	securityNormal  = "normal"
	securityWarning = "warning"
)

// classifyResult flags tool results that point at a refused statement.
func classifyResult(result *mcplib.CallToolResult) (string, []string) {
	if result == nil || !result.IsError {
		return securityNormal, nil
	}
	for _, c := range result.Content {
		tc, ok := c.(mcplib.TextContent)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(tc.Text), "unsafe_query") {
			return securityWarning, []string{"unsafe_query"}
		}
	}
	return securityNormal, nil
}

func resultPreview(result *mcplib.CallToolResult) string {
	if result == nil {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			text := tc.Text
			if len(text) > 200 {
				text = text[:200] + "...[truncated]"
			}
			return text
		}
	}
	return ""
}

package tools

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/xkhani/shipping-agent/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results.
// It is returned as the text of a tool result with IsError set, so the
// calling model sees the code and can react to it instead of getting an
// opaque protocol failure.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for errors the caller can act on (bad arguments, unsafe SQL,
// generation that gave up). Infrastructure failures stay Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// errorCode maps a pipeline sentinel to the code reported to MCP clients.
func errorCode(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrMissingQuestion):
		return "missing_question"
	case errors.Is(err, apperrors.ErrSchemaUnavailable):
		return "schema_unavailable"
	case errors.Is(err, apperrors.ErrGenerationUnreachable):
		return "model_unreachable"
	case errors.Is(err, apperrors.ErrAttemptsExhausted):
		return "attempts_exhausted"
	case errors.Is(err, apperrors.ErrUnsafeQuery):
		return "unsafe_query"
	case errors.Is(err, apperrors.ErrExecutionFailed):
		return "execution_failed"
	}
	return "internal_error"
}

// isActionable reports whether err should be shown to the caller as a
// tool error result rather than returned as a protocol error.
func isActionable(err error) bool {
	return errorCode(err) != "internal_error"
}

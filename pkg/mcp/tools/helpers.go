package tools

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// trimString removes leading and trailing whitespace from a string.
func trimString(s string) string {
	return strings.TrimSpace(s)
}

// requireText reads a required string argument and rejects blank values.
// The returned result is non-nil when the argument is unusable.
func requireText(req mcp.CallToolRequest, key string) (string, *mcp.CallToolResult) {
	value, err := req.RequireString(key)
	if err != nil {
		return "", NewErrorResult("invalid_parameters", err.Error())
	}
	value = trimString(value)
	if value == "" {
		return "", NewErrorResult("invalid_parameters", "parameter '"+key+"' cannot be empty")
	}
	return value, nil
}

func jsonResult(v []byte) *mcp.CallToolResult {
	return mcp.NewToolResultText(string(v))
}

// getOptionalBool extracts an optional boolean parameter from the request.
func getOptionalBool(req mcp.CallToolRequest, key string) (bool, bool) {
	if args, ok := req.Params.Arguments.(map[string]any); ok {
		if val, ok := args[key].(bool); ok {
			return val, true
		}
	}
	return false, false
}

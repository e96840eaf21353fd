package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type healthResult struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	SQLModel     string `json:"sql_model,omitempty"`
	GeneralModel string `json:"general_model,omitempty"`
}

// HealthToolDeps describes what the health tool reports.
type HealthToolDeps struct {
	Version      string
	SQLModel     string
	GeneralModel string
}

// RegisterHealthTool adds a health check tool to the MCP server.
func RegisterHealthTool(s *server.MCPServer, deps HealthToolDeps) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status, version and the configured models"),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := json.Marshal(healthResult{
			Status:       "ok",
			Version:      deps.Version,
			SQLModel:     deps.SQLModel,
			GeneralModel: deps.GeneralModel,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return mcp.NewToolResultText(string(result)), nil
	})
}

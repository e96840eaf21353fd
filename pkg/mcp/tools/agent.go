package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/xkhani/shipping-agent/pkg/logging"
	"github.com/xkhani/shipping-agent/pkg/schema"
	"github.com/xkhani/shipping-agent/pkg/services"
)

// Asker answers a natural-language question end to end.
type Asker interface {
	Ask(ctx context.Context, question string) (*services.Answer, error)
}

// SchemaFetcher returns the current schema snapshot.
type SchemaFetcher interface {
	FetchSchema(ctx context.Context) (*schema.Snapshot, error)
}

// StatementExecutor runs a statement behind the read-only gate.
type StatementExecutor interface {
	Execute(ctx context.Context, sqlQuery string) (bool, string)
}

// AgentToolDeps contains dependencies for the shipping agent tools.
type AgentToolDeps struct {
	Agent     Asker
	Generator services.SQLGenerator
	Schema    SchemaFetcher
	Executor  StatementExecutor
	Logger    *zap.Logger
}

// RegisterAgentTools registers ask, generate_sql, get_schema and execute_sql.
func RegisterAgentTools(s *server.MCPServer, deps *AgentToolDeps) {
	registerAskTool(s, deps)
	registerGenerateSQLTool(s, deps)
	registerGetSchemaTool(s, deps)
	registerExecuteSQLTool(s, deps)
}

func registerAskTool(s *server.MCPServer, deps *AgentToolDeps) {
	tool := mcp.NewTool(
		"ask",
		mcp.WithDescription(
			"Answer a question about shipments, orders, couriers or accounts. "+
				"Data questions are translated to SQL, validated against the database and executed; "+
				"general questions are answered by the language model. The response is Markdown.",
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("Natural-language question, e.g. 'How many shipments are pending?'"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, errResult := requireText(req, "question")
		if errResult != nil {
			return errResult, nil
		}

		answer, err := deps.Agent.Ask(ctx, question)
		if err != nil {
			if isActionable(err) {
				return NewErrorResult(errorCode(err), err.Error()), nil
			}
			return nil, fmt.Errorf("failed to answer question: %w", err)
		}

		body, _ := json.Marshal(answer)
		return jsonResult(body), nil
	})
}

func registerGenerateSQLTool(s *server.MCPServer, deps *AgentToolDeps) {
	tool := mcp.NewTool(
		"generate_sql",
		mcp.WithDescription(
			"Generate a read-only PostgreSQL query for a question without running it. "+
				"The query is grounded against the live schema and checked with EXPLAIN before it is returned.",
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("Natural-language description of the data you need"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, errResult := requireText(req, "question")
		if errResult != nil {
			return errResult, nil
		}

		gen, err := deps.Generator.Generate(ctx, question)
		if err != nil {
			var exhausted *services.ExhaustedError
			if errors.As(err, &exhausted) {
				return NewErrorResultWithDetails(errorCode(err), exhausted.Error(), map[string]any{
					"attempts":     exhausted.Attempts,
					"last_sql":     exhausted.LastSQL,
					"last_message": exhausted.LastMessage,
				}), nil
			}
			if isActionable(err) {
				return NewErrorResult(errorCode(err), err.Error()), nil
			}
			return nil, fmt.Errorf("failed to generate SQL: %w", err)
		}

		deps.Logger.Debug("generate_sql tool produced query",
			zap.Int("attempts", gen.Attempts),
			zap.String("sql", logging.SanitizeQuery(gen.SQL)))

		body, _ := json.Marshal(struct {
			SQL      string `json:"sql"`
			Attempts int    `json:"attempts"`
		}{SQL: gen.SQL, Attempts: gen.Attempts})
		return jsonResult(body), nil
	})
}

func registerGetSchemaTool(s *server.MCPServer, deps *AgentToolDeps) {
	tool := mcp.NewTool(
		"get_schema",
		mcp.WithDescription(
			"Get the database schema the SQL generator sees: tables, columns with types and comments, and foreign keys.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snapshot, err := deps.Schema.FetchSchema(ctx)
		if err != nil {
			return NewErrorResult("schema_unavailable", err.Error()), nil
		}

		body, _ := json.Marshal(struct {
			Schema      string `json:"schema"`
			TableCount  int    `json:"table_count"`
			ForeignKeys int    `json:"foreign_key_count"`
		}{
			Schema:      snapshot.Text,
			TableCount:  len(snapshot.Tables),
			ForeignKeys: len(snapshot.ForeignKeys),
		})
		return jsonResult(body), nil
	})
}

func registerExecuteSQLTool(s *server.MCPServer, deps *AgentToolDeps) {
	tool := mcp.NewTool(
		"execute_sql",
		mcp.WithDescription(
			"Execute a read-only SQL query (SELECT, WITH, SHOW, DESCRIBE, EXPLAIN) and return the rows. "+
				"Statements that could modify data are refused.",
		),
		mcp.WithString(
			"sql",
			mcp.Required(),
			mcp.Description("SQL query to execute"),
		),
		mcp.WithBoolean(
			"format",
			mcp.Description("If true, return the result as Markdown instead of JSON (default: false)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sqlQuery, errResult := requireText(req, "sql")
		if errResult != nil {
			return errResult, nil
		}

		ok, payload := deps.Executor.Execute(ctx, sqlQuery)
		if !ok {
			var failure services.ErrorPayload
			_ = json.Unmarshal([]byte(payload), &failure)
			code := "execution_failed"
			if failure.Error == services.UnsafeExecutionMessage {
				code = "unsafe_query"
			}
			return NewErrorResult(code, failure.Error), nil
		}

		if format, _ := getOptionalBool(req, "format"); format {
			text, err := services.FormatResult(payload, sqlQuery)
			if err != nil {
				return NewErrorResult("formatting_failed", text), nil
			}
			return mcp.NewToolResultText(text), nil
		}
		return mcp.NewToolResultText(payload), nil
	})
}

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkhani/shipping-agent/pkg/adapters/datasource"
	"github.com/xkhani/shipping-agent/pkg/apperrors"
	"github.com/xkhani/shipping-agent/pkg/schema"
	"github.com/xkhani/shipping-agent/pkg/services"
)

type fakeAsker struct {
	answer *services.Answer
	err    error
	got    string
}

func (f *fakeAsker) Ask(_ context.Context, question string) (*services.Answer, error) {
	f.got = question
	return f.answer, f.err
}

type fakeGenerator struct {
	gen *services.Generation
	err error
}

func (f *fakeGenerator) Generate(context.Context, string) (*services.Generation, error) {
	return f.gen, f.err
}

type fakeSchema struct {
	snapshot *schema.Snapshot
	err      error
}

func (f *fakeSchema) FetchSchema(context.Context) (*schema.Snapshot, error) {
	return f.snapshot, f.err
}

type fakeRunner struct {
	result *datasource.ExecuteResult
	err    error
	calls  int
}

func (f *fakeRunner) Execute(context.Context, string) (*datasource.ExecuteResult, error) {
	f.calls++
	return f.result, f.err
}

type agentToolsFixture struct {
	server    *server.MCPServer
	asker     *fakeAsker
	generator *fakeGenerator
	schema    *fakeSchema
	runner    *fakeRunner
}

func newAgentToolsFixture(t *testing.T) *agentToolsFixture {
	t.Helper()
	f := &agentToolsFixture{
		server:    server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true)),
		asker:     &fakeAsker{},
		generator: &fakeGenerator{},
		schema:    &fakeSchema{},
		runner:    &fakeRunner{},
	}
	RegisterAgentTools(f.server, &AgentToolDeps{
		Agent:     f.asker,
		Generator: f.generator,
		Schema:    f.schema,
		Executor:  services.NewExecutor(f.runner, zap.NewNop()),
		Logger:    zap.NewNop(),
	})
	return f
}

func TestRegisterAgentTools(t *testing.T) {
	f := newAgentToolsFixture(t)
	assert.ElementsMatch(t, []string{"ask", "generate_sql", "get_schema", "execute_sql"}, listToolNames(t, f.server))
}

func TestAskTool(t *testing.T) {
	f := newAgentToolsFixture(t)
	f.asker.answer = &services.Answer{
		Question: "How many shipments are pending?",
		Route:    services.RouteData,
		SQL:      `SELECT COUNT(*) FROM shipment WHERE "internalStatus" = 'pending'`,
		Attempts: 1,
		Response: "Found **3** matching records.",
	}

	resp := callTool(t, f.server, "ask", map[string]any{"question": "  How many shipments are pending?  "})
	require.False(t, resp.IsError)
	assert.Equal(t, "How many shipments are pending?", f.asker.got)

	var answer services.Answer
	require.NoError(t, json.Unmarshal([]byte(resp.Text), &answer))
	assert.Equal(t, *f.asker.answer, answer)
}

func TestAskTool_MissingQuestion(t *testing.T) {
	f := newAgentToolsFixture(t)

	resp := callTool(t, f.server, "ask", map[string]any{"question": " "})
	assert.True(t, resp.IsError)
	assert.Contains(t, resp.Text, "invalid_parameters")
	assert.Empty(t, f.asker.got)
}

func TestGenerateSQLTool(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newAgentToolsFixture(t)
		f.generator.gen = &services.Generation{SQL: "SELECT COUNT(*) FROM courier", Attempts: 2}

		resp := callTool(t, f.server, "generate_sql", map[string]any{"question": "How many couriers are there?"})
		require.False(t, resp.IsError)
		assert.JSONEq(t, `{"sql":"SELECT COUNT(*) FROM courier","attempts":2}`, resp.Text)
	})

	t.Run("exhausted carries the last attempt", func(t *testing.T) {
		f := newAgentToolsFixture(t)
		f.generator.err = &services.ExhaustedError{
			Attempts:    3,
			LastSQL:     "SELECT citty FROM pii",
			LastMessage: `column "citty" does not exist`,
		}

		resp := callTool(t, f.server, "generate_sql", map[string]any{"question": "Which cities?"})
		require.True(t, resp.IsError)

		var errResp ErrorResponse
		require.NoError(t, json.Unmarshal([]byte(resp.Text), &errResp))
		assert.Equal(t, "attempts_exhausted", errResp.Code)
		details := errResp.Details.(map[string]any)
		assert.Equal(t, float64(3), details["attempts"])
		assert.Equal(t, "SELECT citty FROM pii", details["last_sql"])
	})

	t.Run("unreachable model", func(t *testing.T) {
		f := newAgentToolsFixture(t)
		f.generator.err = fmt.Errorf("%w: connection refused", apperrors.ErrGenerationUnreachable)

		resp := callTool(t, f.server, "generate_sql", map[string]any{"question": "Which cities?"})
		assert.True(t, resp.IsError)
		assert.Contains(t, resp.Text, "model_unreachable")
	})
}

func TestGetSchemaTool(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newAgentToolsFixture(t)
		f.schema.snapshot = &schema.Snapshot{
			Text:        "Table: courier\n  - id (integer)\n  - name (text)",
			Tables:      []schema.Table{{Name: "courier"}},
			ForeignKeys: nil,
		}

		resp := callTool(t, f.server, "get_schema", nil)
		require.False(t, resp.IsError)
		assert.JSONEq(t, `{"schema":"Table: courier\n  - id (integer)\n  - name (text)","table_count":1,"foreign_key_count":0}`, resp.Text)
	})

	t.Run("unavailable", func(t *testing.T) {
		f := newAgentToolsFixture(t)
		f.schema.err = fmt.Errorf("%w: connection refused", apperrors.ErrSchemaUnavailable)

		resp := callTool(t, f.server, "get_schema", nil)
		assert.True(t, resp.IsError)
		assert.Contains(t, resp.Text, "schema_unavailable")
	})
}

func TestExecuteSQLTool(t *testing.T) {
	countRows := &datasource.ExecuteResult{
		HasRows: true,
		Columns: []datasource.ColumnInfo{{Name: "count"}},
		Rows:    [][]any{{int64(4)}},
	}

	t.Run("json payload", func(t *testing.T) {
		f := newAgentToolsFixture(t)
		f.runner.result = countRows

		resp := callTool(t, f.server, "execute_sql", map[string]any{"sql": "SELECT COUNT(*) AS count FROM shipment"})
		require.False(t, resp.IsError)
		assert.JSONEq(t, `{"columns":["count"],"data":[[4]]}`, resp.Text)
	})

	t.Run("markdown", func(t *testing.T) {
		f := newAgentToolsFixture(t)
		f.runner.result = countRows

		resp := callTool(t, f.server, "execute_sql", map[string]any{"sql": "SELECT COUNT(*) AS count FROM shipment", "format": true})
		require.False(t, resp.IsError)
		assert.Contains(t, resp.Text, "Found **4** matching records.")
		assert.Contains(t, resp.Text, "```sql\nSELECT COUNT(*) AS count FROM shipment\n```")
	})

	t.Run("unsafe statement never runs", func(t *testing.T) {
		f := newAgentToolsFixture(t)

		resp := callTool(t, f.server, "execute_sql", map[string]any{"sql": "DELETE FROM shipment"})
		require.True(t, resp.IsError)

		var errResp ErrorResponse
		require.NoError(t, json.Unmarshal([]byte(resp.Text), &errResp))
		assert.Equal(t, "unsafe_query", errResp.Code)
		assert.Equal(t, services.UnsafeExecutionMessage, errResp.Message)
		assert.Zero(t, f.runner.calls)
	})

	t.Run("database error", func(t *testing.T) {
		f := newAgentToolsFixture(t)
		f.runner.err = datasource.NewQueryError("execute", errors.New(`ERROR: relation "shipments" does not exist`))

		resp := callTool(t, f.server, "execute_sql", map[string]any{"sql": "SELECT * FROM shipments"})
		require.True(t, resp.IsError)
		assert.Contains(t, resp.Text, "execution_failed")
		assert.Contains(t, resp.Text, `relation \"shipments\" does not exist`)
	})
}

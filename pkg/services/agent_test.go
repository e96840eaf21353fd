package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkhani/shipping-agent/pkg/adapters/datasource"
	"github.com/xkhani/shipping-agent/pkg/apperrors"
	"github.com/xkhani/shipping-agent/pkg/llm"
	"github.com/xkhani/shipping-agent/pkg/sql"
)

type agentFixture struct {
	agent    *Agent
	sqlModel *llm.MockClient
	general  *llm.MockClient
	db       *fakeDatabase
}

func newAgentFixture(t *testing.T, sqlModel *llm.MockClient, cfg OrchestratorConfig) *agentFixture {
	t.Helper()
	f := newOrchestratorFixture(t, sqlModel, nil, cfg)
	general := llm.NewMockClient("Freight is cargo moved by a carrier.")
	a := NewAgent(
		NewRouter(),
		f.orchestrator,
		NewExecutor(f.db, zap.NewNop()),
		NewGeneralAnswerer(general, GeneralConfig{}, zap.NewNop()),
		zap.NewNop(),
	)
	return &agentFixture{agent: a, sqlModel: sqlModel, general: general, db: f.db}
}

func TestAgent_DataQuestion(t *testing.T) {
	f := newAgentFixture(t, llm.NewMockClient("SELECT COUNT(*) FROM shipment WHERE internalstatus = 'pending';"), OrchestratorConfig{})
	f.db.ExecuteFunc = func(context.Context, string) (*datasource.ExecuteResult, error) {
		return countResult(3), nil
	}

	answer, err := f.agent.Ask(context.Background(), "  How many shipments are pending?  ")
	require.NoError(t, err)

	wantSQL := `SELECT COUNT(*) FROM shipment WHERE "internalStatus" = 'pending'`
	assert.Equal(t, "How many shipments are pending?", answer.Question)
	assert.Equal(t, RouteData, answer.Route)
	assert.Equal(t, wantSQL, answer.SQL)
	assert.Equal(t, 1, answer.Attempts)
	assert.Equal(t, "Found **3** matching records.\n\n--- Generated SQL for debugging ---\n```sql\n"+wantSQL+"\n```", answer.Response)
	assert.Equal(t, []string{wantSQL}, f.db.Executed())
	assert.Zero(t, f.general.Calls())
}

func TestAgent_GeneralQuestion(t *testing.T) {
	f := newAgentFixture(t, llm.NewMockClient("SELECT 1"), OrchestratorConfig{})

	answer, err := f.agent.Ask(context.Background(), "What is freight?")
	require.NoError(t, err)

	assert.Equal(t, RouteGeneral, answer.Route)
	assert.Equal(t, "Freight is cargo moved by a carrier.", answer.Response)
	assert.Empty(t, answer.SQL)
	assert.Zero(t, f.sqlModel.Calls())
	assert.Empty(t, f.db.Executed())
}

func TestAgent_ExecutionError(t *testing.T) {
	f := newAgentFixture(t, llm.NewMockClient("SELECT SUM(cost) FROM shipment"), OrchestratorConfig{})
	f.db.ExecuteFunc = func(context.Context, string) (*datasource.ExecuteResult, error) {
		return nil, datasource.NewQueryError("execute", errors.New("ERROR: canceling statement due to statement timeout"))
	}

	answer, err := f.agent.Ask(context.Background(), "Show the total cost of all shipments")
	require.NoError(t, err)

	assert.Equal(t, "SQL Execution Error: Database execution error: ERROR: canceling statement due to statement timeout\n```sql\nSELECT SUM(\"cost\") FROM shipment\n```", answer.Response)
}

func TestAgent_GenerationExhausted(t *testing.T) {
	f := newAgentFixture(t, llm.NewMockClient("DELETE FROM shipment"), OrchestratorConfig{MaxAttempts: 2})

	answer, err := f.agent.Ask(context.Background(), "delete every shipment")
	require.NoError(t, err)

	assert.Equal(t, "-- SQL generation failed after 2 attempts: "+sql.UnsafeQueryMessage, answer.SQL)
	assert.Equal(t, 2, answer.Attempts)
	assert.Contains(t, answer.Response, "SQL Generation Error:")
	assert.Contains(t, answer.Response, "DELETE FROM shipment")
	assert.Empty(t, f.db.Executed())
	assert.Empty(t, f.db.Planned())
}

func TestAgent_MissingQuestion(t *testing.T) {
	f := newAgentFixture(t, llm.NewMockClient("SELECT 1"), OrchestratorConfig{})

	_, err := f.agent.Ask(context.Background(), " ")

	assert.ErrorIs(t, err, apperrors.ErrMissingQuestion)
}

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkhani/shipping-agent/pkg/adapters/datasource"
	"github.com/xkhani/shipping-agent/pkg/audit"
)

func TestExecutor_Execute(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		result      *datasource.ExecuteResult
		err         error
		wantOK      bool
		wantPayload string
		wantCalls   int
	}{
		{
			name:        "count",
			query:       "SELECT 1 AS count",
			result:      countResult(1),
			wantOK:      true,
			wantPayload: `{"columns":["count"],"data":[[1]]}`,
			wantCalls:   1,
		},
		{
			name:  "mixed values",
			query: "SELECT id, cost, shipped FROM shipment",
			result: &datasource.ExecuteResult{
				HasRows: true,
				Columns: []datasource.ColumnInfo{{Name: "id"}, {Name: "cost"}, {Name: "shipped"}},
				Rows:    [][]any{{int32(1), 120.5, false}, {int32(2), nil, true}},
			},
			wantOK:      true,
			wantPayload: `{"columns":["id","cost","shipped"],"data":[[1,120.5,false],[2,null,true]]}`,
			wantCalls:   1,
		},
		{
			name:        "no rows keeps columns",
			query:       "SELECT id FROM shipment WHERE false",
			result:      &datasource.ExecuteResult{HasRows: true, Columns: []datasource.ColumnInfo{{Name: "id"}}},
			wantOK:      true,
			wantPayload: `{"columns":["id"],"data":[]}`,
			wantCalls:   1,
		},
		{
			name:        "no row description",
			query:       "SELECT pg_sleep(0)",
			result:      &datasource.ExecuteResult{RowsAffected: 3},
			wantOK:      true,
			wantPayload: `{"status":"success","rows_affected":3}`,
			wantCalls:   1,
		},
		{
			name:        "database error",
			query:       "SELECT nope FROM shipment",
			err:         datasource.NewQueryError("execute", errors.New("ERROR: column \"nope\" does not exist\nLINE 1: SELECT nope")),
			wantPayload: `{"error":"Database execution error: ERROR: column \"nope\" does not exist"}`,
			wantCalls:   1,
		},
		{
			name:        "unsafe",
			query:       "DELETE FROM shipment",
			wantPayload: `{"error":"Unsafe query detected. Execution halted."}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeDatabase{ExecuteFunc: func(context.Context, string) (*datasource.ExecuteResult, error) {
				return tt.result, tt.err
			}}
			e := NewExecutor(db, zap.NewNop())

			ok, payload := e.Execute(context.Background(), tt.query)

			assert.Equal(t, tt.wantOK, ok)
			assert.JSONEq(t, tt.wantPayload, payload)
			assert.Len(t, db.Executed(), tt.wantCalls)
		})
	}
}

func TestExecutor_TimestampsEncodeAsISO(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)
	db := &fakeDatabase{ExecuteFunc: func(context.Context, string) (*datasource.ExecuteResult, error) {
		return &datasource.ExecuteResult{
			HasRows: true,
			Columns: []datasource.ColumnInfo{{Name: "createdAt"}},
			Rows:    [][]any{{ts}},
		}, nil
	}}

	ok, payload := NewExecutor(db, zap.NewNop()).Execute(context.Background(), `SELECT "createdAt" FROM account`)

	assert.True(t, ok)
	assert.JSONEq(t, `{"columns":["createdAt"],"data":[["2024-03-09T14:30:00Z"]]}`, payload)
}

func TestExecutor_RecoversFromPanic(t *testing.T) {
	db := &fakeDatabase{ExecuteFunc: func(context.Context, string) (*datasource.ExecuteResult, error) {
		panic("driver exploded")
	}}

	var ok bool
	var payload string
	assert.NotPanics(t, func() {
		ok, payload = NewExecutor(db, zap.NewNop()).Execute(context.Background(), "SELECT 1")
	})
	assert.False(t, ok)
	assert.Contains(t, payload, "driver exploded")
}

func TestExecutor_AuditsRefusedStatements(t *testing.T) {
	core, recorded := observer.New(zapcore.WarnLevel)
	db := &fakeDatabase{}
	executor := NewExecutor(db, zap.NewNop())
	executor.SetAuditor(audit.NewSecurityAuditor(zap.New(core)))

	ok, _ := executor.Execute(context.Background(), "SELECT * FROM pii WHERE city = '1 UNION SELECT * FROM passwords'")
	assert.False(t, ok)
	ok, _ = executor.Execute(context.Background(), "DROP TABLE shipment")
	assert.False(t, ok)

	logs := recorded.All()
	require.Len(t, logs, 2)
	assert.Equal(t, "SQL injection attempt detected", logs[0].Message)
	assert.Equal(t, "Unsafe query rejected", logs[1].Message)
	assert.Empty(t, db.Executed())
}

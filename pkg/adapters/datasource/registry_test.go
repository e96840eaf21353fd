package datasource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpen_UnknownType(t *testing.T) {
	_, err := Open(context.Background(), "oracle", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported datasource type: oracle")
}

func TestRegisterAndOpen(t *testing.T) {
	var gotConfig map[string]any
	Register(DatasourceAdapterRegistration{
		Info: DatasourceAdapterInfo{Type: "fake-test", DisplayName: "Fake"},
		Factory: func(ctx context.Context, config map[string]any, logger *zap.Logger) (Adapter, error) {
			gotConfig = config
			require.NotNil(t, logger, "Open substitutes a no-op logger")
			return nil, errors.New("fake adapter cannot connect")
		},
	})

	assert.True(t, IsRegistered("fake-test"))

	types := make([]string, 0)
	for _, info := range RegisteredAdapters() {
		types = append(types, info.Type)
	}
	assert.Contains(t, types, "fake-test")

	_, err := Open(context.Background(), "fake-test", map[string]any{"host": "h"}, nil)
	require.EqualError(t, err, "fake adapter cannot connect")
	assert.Equal(t, "h", gotConfig["host"])
}

func TestQueryError(t *testing.T) {
	cause := errors.New("ERROR: relation \"shipments\" does not exist (SQLSTATE 42P01)")
	err := NewQueryError("validate", cause)

	assert.Equal(t, cause.Error(), err.Error())
	assert.ErrorIs(t, err, cause)

	var qe *QueryError
	require.True(t, errors.As(error(err), &qe))
	assert.Equal(t, "validate", qe.Op)
}

func TestExecuteResult_ColumnNames(t *testing.T) {
	r := &ExecuteResult{Columns: []ColumnInfo{{Name: "id", Type: "INT4"}, {Name: "count", Type: "INT8"}}}
	assert.Equal(t, []string{"id", "count"}, r.ColumnNames())
}

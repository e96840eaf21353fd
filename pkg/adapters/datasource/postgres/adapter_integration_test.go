//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkhani/shipping-agent/pkg/adapters/datasource"
	"github.com/xkhani/shipping-agent/pkg/testhelpers"
)

func setupAdapter(t *testing.T) *Adapter {
	t.Helper()

	testDB := testhelpers.GetTestDB(t)
	cfg, err := FromMap(testDB.DatasourceConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	adapter, err := NewAdapter(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { adapter.Close() })
	return adapter
}

func TestAdapter_TestConnection(t *testing.T) {
	adapter := setupAdapter(t)
	require.NoError(t, adapter.TestConnection(context.Background()))
}

func TestAdapter_DiscoverSchema(t *testing.T) {
	adapter := setupAdapter(t)
	ctx := context.Background()

	tables, err := adapter.DiscoverTables(ctx)
	require.NoError(t, err)

	var names []string
	for _, tbl := range tables {
		names = append(names, tbl.TableName)
	}
	assert.Equal(t, []string{"account", "courier", "order", "pii", "shipment"}, names)

	cols, err := adapter.DiscoverColumns(ctx, "public", "shipment")
	require.NoError(t, err)
	require.NotEmpty(t, cols)
	assert.Equal(t, "id", cols[0].ColumnName)
	assert.True(t, cols[0].IsPrimaryKey)

	var status *datasource.ColumnMetadata
	for i := range cols {
		if cols[i].ColumnName == "internalStatus" {
			status = &cols[i]
		}
	}
	require.NotNil(t, status)
	assert.Equal(t, "text", status.DataType)
	assert.False(t, status.IsNullable)
	assert.Contains(t, status.Comment, "pending")

	fks, err := adapter.DiscoverForeignKeys(ctx)
	require.NoError(t, err)
	assert.Contains(t, fks, datasource.ForeignKeyMetadata{
		ConstraintName: "shipment_shipToId_fkey",
		SourceSchema:   "public",
		SourceTable:    "shipment",
		SourceColumn:   "shipToId",
		TargetSchema:   "public",
		TargetTable:    "pii",
		TargetColumn:   "id",
	})
}

func TestAdapter_Execute_CountAndDecimal(t *testing.T) {
	adapter := setupAdapter(t)
	ctx := context.Background()

	result, err := adapter.Execute(ctx, `SELECT COUNT(*) FROM shipment WHERE "internalStatus" = 'pending'`)
	require.NoError(t, err)
	assert.True(t, result.HasRows)
	assert.Equal(t, []string{"count"}, result.ColumnNames())
	assert.Equal(t, [][]any{{int64(3)}}, result.Rows)

	result, err = adapter.Execute(ctx, `SELECT SUM(cost) AS total FROM shipment`)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{305.75}}, result.Rows)
}

func TestAdapter_Execute_EmptyResultKeepsColumns(t *testing.T) {
	adapter := setupAdapter(t)

	result, err := adapter.Execute(context.Background(), `SELECT id FROM shipment WHERE false`)
	require.NoError(t, err)
	assert.True(t, result.HasRows)
	assert.Equal(t, []string{"id"}, result.ColumnNames())
	assert.Empty(t, result.Rows)
}

func TestAdapter_ValidateQuery(t *testing.T) {
	adapter := setupAdapter(t)
	ctx := context.Background()

	require.NoError(t, adapter.ValidateQuery(ctx, `SELECT s.id FROM shipment s JOIN pii p ON s."shipToId" = p.id WHERE p.city = 'Lahore'`))

	err := adapter.ValidateQuery(ctx, `SELECT cityname FROM shipment`)
	require.Error(t, err)
	var qe *datasource.QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, "validate", qe.Op)
	assert.Contains(t, qe.Message, `column "cityname" does not exist`)
}

func TestAdapter_ValidateDoesNotExecute(t *testing.T) {
	adapter := setupAdapter(t)
	ctx := context.Background()

	_, err := adapter.Execute(ctx, `CREATE TABLE IF NOT EXISTS validate_probe (id int)`)
	require.NoError(t, err)
	t.Cleanup(func() { adapter.Execute(context.Background(), `DROP TABLE IF EXISTS validate_probe`) })

	require.NoError(t, adapter.ValidateQuery(ctx, `INSERT INTO validate_probe VALUES (1)`))

	result, err := adapter.Execute(ctx, `SELECT COUNT(*) FROM validate_probe`)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(0)}}, result.Rows)
}

func TestAdapter_ConnectionsReleasedAfterErrors(t *testing.T) {
	adapter := setupAdapter(t)
	ctx := context.Background()

	for i := 0; i < int(adapter.config.PoolMaxConns)*3; i++ {
		_ = adapter.ValidateQuery(ctx, `SELECT nope FROM shipment`)
		_, _ = adapter.Execute(ctx, `SELECT nope FROM shipment`)
	}

	assert.Equal(t, int32(0), adapter.pool.Stat().AcquiredConns())
}

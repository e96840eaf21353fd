package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkhani/shipping-agent/pkg/apperrors"
)

func TestCheckReadOnly_Allows(t *testing.T) {
	queries := []string{
		`SELECT COUNT(*) FROM shipment WHERE "internalStatus" = 'pending'`,
		`select id, type, title from account where "createdAt" > '2024-01-01';`,
		`WITH recent AS (SELECT * FROM shipment WHERE "createdAt" > '2024-06-01') SELECT COUNT(*) FROM recent`,
		`WITH RECURSIVE n(i) AS (SELECT 1 UNION ALL SELECT i + 1 FROM n WHERE i < 5) SELECT i FROM n`,
		`SELECT "update" FROM audit_log`,
		`SELECT * FROM pii WHERE city = 'Karachi'`,
	}
	for _, q := range queries {
		assert.NoError(t, CheckReadOnly(q), q)
		assert.True(t, IsReadOnly(q), q)
	}
}

func TestCheckReadOnly_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		sql    string
		reason string
	}{
		{"delete", "DELETE FROM shipment", `statement starts with "DELETE"`},
		{"update", "UPDATE shipment SET cost = 0", `statement starts with "UPDATE"`},
		{"insert", "INSERT INTO courier (name) VALUES ('x')", `statement starts with "INSERT"`},
		{"drop", "DROP TABLE shipment", `statement starts with "DROP"`},
		{"truncate", "TRUNCATE shipment", `statement starts with "TRUNCATE"`},
		{"create", "CREATE TABLE x (id int)", `statement starts with "CREATE"`},
		{"exec", "EXEC sp_who", `statement starts with "EXEC"`},
		{"empty", "   ", "empty statement"},
		{"stacked statements", "SELECT 1; DROP TABLE shipment", "multiple SQL statements"},
		{"modifying cte", "WITH gone AS (DELETE FROM shipment RETURNING *) SELECT COUNT(*) FROM gone", "DELETE is not allowed"},
		{"with into update", "WITH x AS (SELECT 1) UPDATE shipment SET cost = 0", `WITH must lead into SELECT, found "UPDATE"`},
		{"select into", "SELECT * INTO backup FROM shipment", "INTO is not allowed"},
		{"row locks", "SELECT * FROM shipment FOR UPDATE", "UPDATE is not allowed"},
		{"share locks", "SELECT * FROM shipment FOR SHARE", "row locking clause"},
		{"injected literal", "SELECT * FROM pii WHERE city = '1 UNION SELECT * FROM passwords'", "injection fingerprint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckReadOnly(tt.sql)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrUnsafeQuery)
			assert.Contains(t, err.Error(), tt.reason)
			assert.False(t, IsReadOnly(tt.sql))
		})
	}
}

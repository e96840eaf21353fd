package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/xkhani/shipping-agent/pkg/adapters/datasource"
	"github.com/xkhani/shipping-agent/pkg/sql"
)

func TestValidator_UnsafeStatementsNeverReachDatabase(t *testing.T) {
	queries := []string{
		"DELETE FROM shipment",
		"INSERT INTO courier (name) VALUES ('UPS')",
		"UPDATE shipment SET cost = 0",
		"DROP TABLE shipment",
		"CREATE TABLE x (id int)",
		"TRUNCATE shipment",
		"ALTER TABLE shipment ADD COLUMN x int",
		"WITH gone AS (DELETE FROM shipment RETURNING id) SELECT * FROM gone",
		"SELECT 1; DROP TABLE shipment",
		"",
	}

	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			db := &fakeDatabase{}
			v := NewValidator(db, zap.NewNop())

			ok, msg := v.Validate(context.Background(), q)

			assert.False(t, ok)
			assert.Equal(t, sql.UnsafeQueryMessage, msg)
			assert.Empty(t, db.Planned(), "no plan call for a rejected statement")
		})
	}
}

func TestValidator_PlanCheck(t *testing.T) {
	tests := []struct {
		name        string
		planErr     error
		wantOK      bool
		wantMessage string
	}{
		{
			name:        "valid",
			wantOK:      true,
			wantMessage: ValidSyntaxMessage,
		},
		{
			name: "engine rejection keeps first line",
			planErr: datasource.NewQueryError("validate",
				errors.New("ERROR: column \"shiptoid\" does not exist (SQLSTATE 42703)\nHINT: Perhaps you meant \"shipToId\".")),
			wantMessage: "ERROR: column \"shiptoid\" does not exist (SQLSTATE 42703)",
		},
		{
			name:        "connection failure",
			planErr:     errors.New("failed to connect to host=localhost: connection refused"),
			wantMessage: "An unexpected validation error occurred: failed to connect to host=localhost: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeDatabase{ValidateFunc: func(context.Context, string) error { return tt.planErr }}
			v := NewValidator(db, zap.NewNop())

			ok, msg := v.Validate(context.Background(), `SELECT COUNT(*) FROM shipment`)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantMessage, msg)
			assert.Equal(t, []string{`SELECT COUNT(*) FROM shipment`}, db.Planned())
		})
	}
}

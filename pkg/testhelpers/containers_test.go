//go:build integration

package testhelpers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShippingTestDB_Seeded(t *testing.T) {
	testDB := GetTestDB(t)
	ctx := context.Background()

	tests := []struct {
		table    string
		expected int
	}{
		{"account", 2},
		{"courier", 2},
		{"pii", 2},
		{`"order"`, 2},
		{"shipment", 4},
	}

	for _, tt := range tests {
		var count int
		err := testDB.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+tt.table).Scan(&count)
		require.NoError(t, err, tt.table)
		assert.Equal(t, tt.expected, count, tt.table)
	}
}

package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkhani/shipping-agent/pkg/apperrors"
)

func TestFormatResult(t *testing.T) {
	const query = "SELECT 1"
	const debugBlock = "\n\n--- Generated SQL for debugging ---\n```sql\nSELECT 1\n```"

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{
			name:    "count",
			payload: `{"columns":["count"],"data":[[1]]}`,
			want:    "Found **1** matching records.",
		},
		{
			name:    "count column among others",
			payload: `{"columns":["city","COUNT"],"data":[["Karachi",2]]}`,
			want:    "Found **2** matching records.",
		},
		{
			name:    "empty",
			payload: `{"columns":["id"],"data":[]}`,
			want:    NoRecordsMessage,
		},
		{
			name:    "rows",
			payload: `{"columns":["id","title","createdAt","cost"],"data":[["6f1c2b9e-8d0a-4c1e-9f3b-2a7d5e4c3b21","Acme Corp","2023-11-05T10:00:00Z",120.5],["0a8e4d52-1f6b-4b8e-a2c4-9d3e7f1b5c60","Jane Doe",null,45]]}`,
			want: "Here's what I found:\n" +
				"\n1. **id**: `6f1c2b9e...`, **title**: Acme Corp, **createdAt**: 2023-11-05, **cost**: 120.5" +
				"\n2. **id**: `0a8e4d52...`, **title**: Jane Doe, **createdAt**: null, **cost**: 45",
		},
		{
			name:    "extra values get positional names",
			payload: `{"columns":["a"],"data":[[true,"x"],[false,"y"]]}`,
			want:    "Here's what I found:\n\n1. **a**: true, **unnamed_col_1**: x\n2. **a**: false, **unnamed_col_1**: y",
		},
		{
			name:    "status",
			payload: `{"status":"success","rows_affected":0}`,
			want:    "Query executed successfully: 0 rows affected.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatResult(tt.payload, query)
			require.NoError(t, err)
			assert.Equal(t, tt.want+debugBlock, got)
		})
	}
}

func TestFormatResult_UnexpectedShape(t *testing.T) {
	for _, payload := range []string{`{"rows":[]}`, `not json`, `[1,2]`} {
		t.Run(payload, func(t *testing.T) {
			got, err := FormatResult(payload, "SELECT 1")
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrFormattingFailed))
			assert.Contains(t, got, "Unexpected Result Format from Database")
		})
	}
}

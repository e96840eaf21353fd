package postgres

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	"github.com/xkhani/shipping-agent/pkg/adapters/datasource"
	"github.com/xkhani/shipping-agent/pkg/logging"
)

// Execute runs the statement on a dedicated pooled connection.
func (a *Adapter) Execute(ctx context.Context, sqlStatement string) (*datasource.ExecuteResult, error) {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, sqlStatement)
	if err != nil {
		return nil, datasource.NewQueryError("execute", err)
	}
	defer rows.Close()

	result := &datasource.ExecuteResult{}

	fieldDescs := rows.FieldDescriptions()
	if len(fieldDescs) > 0 {
		result.HasRows = true
		result.Columns = make([]datasource.ColumnInfo, len(fieldDescs))
		for i, fd := range fieldDescs {
			result.Columns[i] = datasource.ColumnInfo{
				Name: fd.Name,
				Type: pgTypeNameFromOID(fd.DataTypeOID),
			}
		}
	}

	result.Rows = make([][]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}
		row := make([]any, len(values))
		for i, v := range values {
			row[i] = normalizeValue(v)
		}
		result.Rows = append(result.Rows, row)
	}

	// pgx defers errors until the rows are consumed.
	if err := rows.Err(); err != nil {
		a.logger.Debug("Statement failed",
			zap.String("sql", logging.SanitizeQuery(sqlStatement)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, datasource.NewQueryError("execute", err)
	}

	result.RowsAffected = rows.CommandTag().RowsAffected()
	return result, nil
}

// ValidateQuery runs EXPLAIN, which plans the statement without executing it.
func (a *Adapter) ValidateQuery(ctx context.Context, sqlQuery string) error {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "EXPLAIN "+sqlQuery); err != nil {
		return datasource.NewQueryError("validate", err)
	}
	return nil
}

// QuoteIdentifier uses PostgreSQL's standard double-quote quoting.
func (a *Adapter) QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// normalizeValue converts pgx decoded values into JSON-friendly types.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return finiteOrString(f.Float64)
	case float64:
		return finiteOrString(val)
	case float32:
		return finiteOrString(float64(val))
	case [16]byte:
		return uuid.UUID(val).String()
	case pgtype.Interval:
		if !val.Valid {
			return nil
		}
		return fmt.Sprintf("%d months %d days %d microseconds", val.Months, val.Days, val.Microseconds)
	case []byte:
		return string(val)
	default:
		return v
	}
}

// finiteOrString keeps NaN and infinities out of JSON encoding, which rejects them.
func finiteOrString(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Sprintf("%v", f)
	}
	return f
}

// pgTypeNameFromOID maps PostgreSQL type OIDs to human-readable type names.
// This covers the most common types; unknown types return "UNKNOWN".
func pgTypeNameFromOID(oid uint32) string {
	switch oid {
	case 16:
		return "BOOL"
	case 17:
		return "BYTEA"
	case 20:
		return "INT8"
	case 21:
		return "INT2"
	case 23:
		return "INT4"
	case 25:
		return "TEXT"
	case 114:
		return "JSON"
	case 700:
		return "FLOAT4"
	case 701:
		return "FLOAT8"
	case 1042:
		return "BPCHAR"
	case 1043:
		return "VARCHAR"
	case 1082:
		return "DATE"
	case 1114:
		return "TIMESTAMP"
	case 1184:
		return "TIMESTAMPTZ"
	case 1186:
		return "INTERVAL"
	case 1700:
		return "NUMERIC"
	case 2950:
		return "UUID"
	case 3802:
		return "JSONB"
	default:
		return "UNKNOWN"
	}
}

package mssql

import (
	"context"
	"fmt"
	"math"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xkhani/shipping-agent/pkg/adapters/datasource"
	"github.com/xkhani/shipping-agent/pkg/logging"
)

// Execute runs the statement on a dedicated connection from the pool.
// Statements without a result set report zero rows affected.
func (a *Adapter) Execute(ctx context.Context, sqlStatement string) (*datasource.ExecuteResult, error) {
	conn, err := a.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, sqlStatement)
	if err != nil {
		return nil, datasource.NewQueryError("execute", err)
	}
	defer rows.Close()

	result := &datasource.ExecuteResult{}

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	if len(columnTypes) > 0 {
		result.HasRows = true
		result.Columns = make([]datasource.ColumnInfo, len(columnTypes))
		for i, ct := range columnTypes {
			result.Columns[i] = datasource.ColumnInfo{
				Name: ct.Name(),
				Type: ct.DatabaseTypeName(),
			}
		}
	}

	result.Rows = make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columnTypes))
		valuePtrs := make([]any, len(columnTypes))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make([]any, len(values))
		for i, v := range values {
			row[i] = normalizeValue(columnTypes[i].DatabaseTypeName(), v)
		}
		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		a.logger.Debug("Statement failed",
			zap.String("sql", logging.SanitizeQuery(sqlStatement)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, datasource.NewQueryError("execute", err)
	}

	return result, nil
}

// ValidateQuery compiles the statement under SHOWPLAN_XML, which returns the
// estimated plan and never executes it. The setting is scoped to a
// dedicated connection and switched off before the connection goes back.
func (a *Adapter) ValidateQuery(ctx context.Context, sqlQuery string) error {
	conn, err := a.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SET SHOWPLAN_XML ON"); err != nil {
		return fmt.Errorf("enable showplan: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), "SET SHOWPLAN_XML OFF"); err != nil {
			a.logger.Warn("Failed to disable showplan", zap.String("error", logging.SanitizeError(err)))
		}
	}()

	rows, err := conn.QueryContext(ctx, sqlQuery)
	if err != nil {
		return datasource.NewQueryError("validate", err)
	}
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return datasource.NewQueryError("validate", err)
	}
	return rows.Close()
}

// QuoteIdentifier uses SQL Server's square bracket syntax: [name]
func (a *Adapter) QuoteIdentifier(name string) string {
	return quoteName(name)
}

// normalizeValue converts driver values into JSON-friendly types. The driver
// returns DECIMAL and MONEY as their string form in []byte and
// UNIQUEIDENTIFIER as 16 raw bytes in SQL Server's mixed-endian order.
func normalizeValue(dbType string, v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		switch {
		case isDecimalType(dbType):
			d, err := decimal.NewFromString(string(val))
			if err != nil {
				return string(val)
			}
			f, _ := d.Float64()
			return f
		case dbType == "UNIQUEIDENTIFIER":
			var u mssql.UniqueIdentifier
			if err := u.Scan(val); err != nil {
				return string(val)
			}
			return u.String()
		default:
			return string(val)
		}
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Sprintf("%v", val)
		}
		return val
	default:
		return v
	}
}

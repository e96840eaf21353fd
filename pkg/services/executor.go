package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkhani/shipping-agent/pkg/adapters/datasource"
	"github.com/xkhani/shipping-agent/pkg/audit"
	"github.com/xkhani/shipping-agent/pkg/logging"
	"github.com/xkhani/shipping-agent/pkg/sql"
)

// Messages carried in executor error payloads.
const (
	UnsafeExecutionMessage = "Unsafe query detected. Execution halted."
	executionErrorPrefix   = "Database execution error: "
)

// StatementRunner runs one statement. datasource.QueryExecutor satisfies it.
type StatementRunner interface {
	Execute(ctx context.Context, sqlStatement string) (*datasource.ExecuteResult, error)
}

// RowsPayload is the executor payload for a statement that returned rows.
type RowsPayload struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

// StatusPayload is the executor payload for a statement without a row
// description.
type StatusPayload struct {
	Status       string `json:"status"`
	RowsAffected int64  `json:"rows_affected"`
}

// ErrorPayload is the executor payload for a failed statement.
type ErrorPayload struct {
	Error string `json:"error"`
}

// Executor runs validated statements and serializes the outcome as JSON.
type Executor struct {
	runner  StatementRunner
	auditor *audit.SecurityAuditor
	logger  *zap.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(runner StatementRunner, logger *zap.Logger) *Executor {
	return &Executor{runner: runner, logger: logger.Named("executor")}
}

// SetAuditor records refused and executed statements with auditor.
func (e *Executor) SetAuditor(auditor *audit.SecurityAuditor) {
	e.auditor = auditor
}

// Execute runs sqlQuery and returns ok plus a JSON payload: RowsPayload or
// StatusPayload on success, ErrorPayload on failure. The read-only gate is
// applied again here, so Execute is safe to call with unvalidated SQL.
func (e *Executor) Execute(ctx context.Context, sqlQuery string) (ok bool, payload string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Recovered panic during execution",
				zap.Any("panic", r),
				zap.String("sql", logging.SanitizeQuery(sqlQuery)))
			ok, payload = false, errorPayload(fmt.Sprintf("An unexpected error occurred during execution: %v", r))
		}
	}()

	if err := sql.CheckReadOnly(sqlQuery); err != nil {
		e.logger.Warn("Refused to execute unsafe query",
			zap.String("sql", logging.SanitizeQuery(sqlQuery)),
			zap.String("reason", logging.SanitizeError(err)))
		e.auditor.LogRejectedQuery(ctx, audit.SourceExecution, sqlQuery, err)
		return false, errorPayload(UnsafeExecutionMessage)
	}

	result, err := e.runner.Execute(ctx, sqlQuery)
	if err != nil {
		message := executionErrorPrefix + executionErrorLine(err)
		e.logger.Error("Query execution failed",
			zap.String("sql", logging.SanitizeQuery(sqlQuery)),
			zap.String("error", message))
		return false, errorPayload(message)
	}

	var body any
	if result.HasRows {
		rows := result.Rows
		if rows == nil {
			rows = [][]any{}
		}
		body = RowsPayload{Columns: result.ColumnNames(), Data: rows}
		e.auditor.LogQueryExecution(ctx, sqlQuery, len(rows))
	} else {
		body = StatusPayload{Status: "success", RowsAffected: result.RowsAffected}
	}

	data, err := json.Marshal(body)
	if err != nil {
		e.logger.Error("Failed to encode query result", zap.Error(err))
		return false, errorPayload(fmt.Sprintf("An unexpected error occurred during execution: %v", err))
	}
	return true, string(data)
}

func executionErrorLine(err error) string {
	var qe *datasource.QueryError
	if errors.As(err, &qe) {
		return logging.FirstLine(qe.Message)
	}
	return logging.FirstLine(logging.SanitizeError(err))
}

func errorPayload(message string) string {
	data, _ := json.Marshal(ErrorPayload{Error: message})
	return string(data)
}

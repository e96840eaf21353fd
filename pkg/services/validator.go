package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkhani/shipping-agent/pkg/adapters/datasource"
	"github.com/xkhani/shipping-agent/pkg/audit"
	"github.com/xkhani/shipping-agent/pkg/logging"
	"github.com/xkhani/shipping-agent/pkg/sql"
)

// ValidSyntaxMessage is returned by Validate when the engine accepts the plan.
const ValidSyntaxMessage = "Valid syntax"

// QueryPlanner asks the database for an execution plan without running the
// statement. datasource.QueryExecutor satisfies it.
type QueryPlanner interface {
	ValidateQuery(ctx context.Context, sqlQuery string) error
}

// QueryValidator decides whether a candidate may be executed. The message
// is fed back to the model when ok is false.
type QueryValidator interface {
	Validate(ctx context.Context, sqlQuery string) (ok bool, message string)
}

// Validator gates statements through the read-only check and then a
// plan-only check against the live database.
type Validator struct {
	planner QueryPlanner
	auditor *audit.SecurityAuditor
	logger  *zap.Logger
}

// NewValidator creates a Validator.
func NewValidator(planner QueryPlanner, logger *zap.Logger) *Validator {
	return &Validator{planner: planner, logger: logger.Named("validator")}
}

// SetAuditor reports statements refused by the safety gate to auditor.
func (v *Validator) SetAuditor(auditor *audit.SecurityAuditor) {
	v.auditor = auditor
}

// Validate returns (true, "Valid syntax") for a statement the database can
// plan. Statements that fail the safety gate are rejected with
// sql.UnsafeQueryMessage without touching the database.
func (v *Validator) Validate(ctx context.Context, sqlQuery string) (bool, string) {
	if err := sql.CheckReadOnly(sqlQuery); err != nil {
		v.logger.Info("Rejected unsafe query",
			zap.String("sql", logging.SanitizeQuery(sqlQuery)),
			zap.String("reason", logging.SanitizeError(err)))
		v.auditor.LogRejectedQuery(ctx, audit.SourceGeneration, sqlQuery, err)
		return false, sql.UnsafeQueryMessage
	}

	if err := v.planner.ValidateQuery(ctx, sqlQuery); err != nil {
		message := planErrorMessage(err)
		v.logger.Debug("Query failed plan check",
			zap.String("sql", logging.SanitizeQuery(sqlQuery)),
			zap.String("message", message))
		return false, message
	}

	return true, ValidSyntaxMessage
}

// planErrorMessage keeps the first line of an engine error. Anything that is
// not an engine rejection is reported as an unexpected failure.
func planErrorMessage(err error) string {
	var qe *datasource.QueryError
	if errors.As(err, &qe) {
		return logging.FirstLine(qe.Message)
	}
	return fmt.Sprintf("An unexpected validation error occurred: %s", logging.FirstLine(logging.SanitizeError(err)))
}

var _ QueryValidator = (*Validator)(nil)

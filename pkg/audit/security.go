// Package audit provides security audit logging for SIEM consumption.
// Every statement the read-only gate refuses is logged as a structured JSON
// event so that injection attempts arriving through questions or MCP calls
// can be alerted on separately from ordinary application logs.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkhani/shipping-agent/pkg/llm"
	"github.com/xkhani/shipping-agent/pkg/logging"
	"github.com/xkhani/shipping-agent/pkg/sql"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection flags a literal in a refused statement.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventUnsafeQuery is logged when a statement is refused for any other reason.
	EventUnsafeQuery SecurityEventType = "unsafe_query_rejected"
	// EventQueryExecution is logged for a successful execution (debug level, high volume).
	EventQueryExecution SecurityEventType = "query_execution"
)

// Source names where a statement came from.
type Source string

const (
	SourceGeneration Source = "generation"
	SourceExecution  Source = "execution"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	ID        uuid.UUID         `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	RequestID string            `json:"request_id,omitempty"`
	Source    Source            `json:"source"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// SQLInjectionDetails contains specifics of a detected SQL injection attempt.
type SQLInjectionDetails struct {
	Literal     string `json:"literal"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
	SQL         string `json:"sql"`
}

// UnsafeQueryDetails describes a statement refused by the read-only gate.
type UnsafeQueryDetails struct {
	Reason string `json:"reason"`
	SQL    string `json:"sql"`
}

// SecurityAuditor logs security events for SIEM consumption.
// A nil *SecurityAuditor is valid and logs nothing.
type SecurityAuditor struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewSecurityAuditor creates a new security auditor under the
// "security_audit" logger namespace.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit"), now: time.Now}
}

// LogRejectedQuery records a statement the read-only gate refused. When a
// string literal in it matches an injection fingerprint the event is logged
// at ERROR with critical severity; otherwise at WARN.
func (a *SecurityAuditor) LogRejectedQuery(ctx context.Context, source Source, sqlQuery string, reason error) {
	if a == nil {
		return
	}

	sanitized := logging.SanitizeQuery(sqlQuery)
	if flagged := sql.CheckLiterals(sqlQuery); len(flagged) > 0 {
		details := SQLInjectionDetails{
			Literal:     logging.RedactedText,
			Fingerprint: flagged[0].Fingerprint,
			SQL:         sanitized,
		}
		event := a.event(ctx, EventSQLInjectionAttempt, source, details, "critical")
		a.logger.Error("SQL injection attempt detected",
			zap.String("event_json", marshal(event)),
			zap.String("request_id", event.RequestID),
			zap.String("source", string(source)),
			zap.String("fingerprint", details.Fingerprint),
			zap.String("severity", event.Severity),
		)
		return
	}

	details := UnsafeQueryDetails{SQL: sanitized}
	if reason != nil {
		details.Reason = logging.SanitizeError(reason)
	}
	event := a.event(ctx, EventUnsafeQuery, source, details, "warning")
	a.logger.Warn("Unsafe query rejected",
		zap.String("event_json", marshal(event)),
		zap.String("request_id", event.RequestID),
		zap.String("source", string(source)),
		zap.String("reason", details.Reason),
		zap.String("severity", event.Severity),
	)
}

// LogQueryExecution records a successful execution for the audit trail.
// It is logged at DEBUG since every answered question produces one.
func (a *SecurityAuditor) LogQueryExecution(ctx context.Context, sqlQuery string, rows int) {
	if a == nil {
		return
	}

	event := a.event(ctx, EventQueryExecution, SourceExecution, map[string]any{
		"sql":  logging.SanitizeQuery(sqlQuery),
		"rows": rows,
	}, "info")
	a.logger.Debug("Query executed",
		zap.String("event_json", marshal(event)),
		zap.String("request_id", event.RequestID),
		zap.Int("rows", rows),
		zap.String("severity", event.Severity),
	)
}

func (a *SecurityAuditor) event(ctx context.Context, t SecurityEventType, source Source, details any, severity string) SecurityEvent {
	return SecurityEvent{
		ID:        uuid.New(),
		Timestamp: a.now().UTC(),
		EventType: t,
		RequestID: llm.RequestID(ctx),
		Source:    source,
		Details:   details,
		Severity:  severity,
	}
}

// Ignoring the error: the event types are all plain structs and maps.
func marshal(event SecurityEvent) string {
	b, _ := json.Marshal(event)
	return string(b)
}

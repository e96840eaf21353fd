package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkhani/shipping-agent/pkg/llm"
)

// setupTestLogger creates a test logger with an observer to capture log entries.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)
	return zap.New(core), recorded
}

func newTestAuditor(t *testing.T) (*SecurityAuditor, *observer.ObservedLogs) {
	t.Helper()
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)
	auditor.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return auditor, recorded
}

func decodeEvent(t *testing.T, entry observer.LoggedEntry) SecurityEvent {
	t.Helper()
	raw, ok := entry.ContextMap()["event_json"].(string)
	require.True(t, ok, "event_json field missing")
	var event SecurityEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &event))
	return event
}

func TestLogRejectedQuery_Injection(t *testing.T) {
	auditor, recorded := newTestAuditor(t)
	ctx := llm.WithRequestID(context.Background(), "req-42")

	auditor.LogRejectedQuery(ctx, SourceExecution,
		"SELECT * FROM pii WHERE city = '1 UNION SELECT * FROM passwords'",
		errors.New("unsafe query: literal matches injection fingerprint"))

	logs := recorded.All()
	require.Len(t, logs, 1)
	entry := logs[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "SQL injection attempt detected", entry.Message)
	assert.Equal(t, "security_audit", entry.LoggerName)

	fields := entry.ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "execution", fields["source"])
	assert.Equal(t, "critical", fields["severity"])
	assert.NotEmpty(t, fields["fingerprint"])

	event := decodeEvent(t, entry)
	assert.Equal(t, EventSQLInjectionAttempt, event.EventType)
	assert.Equal(t, "req-42", event.RequestID)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), event.Timestamp)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", event.ID.String())

	details, ok := event.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "[REDACTED]", details["literal"], "payload must not be logged verbatim")
}

func TestLogRejectedQuery_Unsafe(t *testing.T) {
	auditor, recorded := newTestAuditor(t)

	auditor.LogRejectedQuery(context.Background(), SourceGeneration,
		"DELETE FROM shipment", errors.New(`unsafe query: statement starts with "DELETE"`))

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, zapcore.WarnLevel, logs[0].Level)
	assert.Equal(t, "Unsafe query rejected", logs[0].Message)

	fields := logs[0].ContextMap()
	assert.Equal(t, "generation", fields["source"])
	assert.Equal(t, "warning", fields["severity"])
	assert.Contains(t, fields["reason"], "DELETE")

	event := decodeEvent(t, logs[0])
	assert.Equal(t, EventUnsafeQuery, event.EventType)
	assert.Empty(t, event.RequestID)
}

func TestLogQueryExecution(t *testing.T) {
	auditor, recorded := newTestAuditor(t)

	auditor.LogQueryExecution(context.Background(), "SELECT COUNT(*) FROM shipment", 1)

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, zapcore.DebugLevel, logs[0].Level)
	assert.Equal(t, int64(1), logs[0].ContextMap()["rows"])
	assert.Equal(t, EventQueryExecution, decodeEvent(t, logs[0]).EventType)
}

func TestNilAuditor(t *testing.T) {
	var auditor *SecurityAuditor
	assert.NotPanics(t, func() {
		auditor.LogRejectedQuery(context.Background(), SourceExecution, "DROP TABLE x", nil)
		auditor.LogQueryExecution(context.Background(), "SELECT 1", 1)
	})
}

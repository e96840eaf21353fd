// Package history keeps the accepted and rejected question/SQL pairs that
// are fed back to the model as few-shot context.
package history

import (
	"context"
	"time"
)

// DefaultLimit is how many records of each kind are retained.
const DefaultLimit = 50

// Kind separates accepted pairs from rejected attempts.
type Kind string

const (
	KindAccepted Kind = "accepted"
	KindRejected Kind = "rejected"
)

// Record is one history entry. Accepted records carry SQL; rejected ones
// carry BadSQL and the Reason it was refused.
type Record struct {
	Prompt    string    `json:"prompt"`
	SQL       string    `json:"sql,omitempty"`
	BadSQL    string    `json:"bad_sql,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is an append-only, size-bounded log of attempts. Recent returns
// records oldest first.
type Store interface {
	AppendAccepted(ctx context.Context, prompt, sql string) error
	AppendRejected(ctx context.Context, prompt, badSQL, reason string) error
	RecentAccepted(ctx context.Context, n int) ([]Record, error)
	RecentRejected(ctx context.Context, n int) ([]Record, error)
}

// tail returns the last n records, or all of them when n is not positive.
func tail(records []Record, n int) []Record {
	if n <= 0 || n >= len(records) {
		return append([]Record(nil), records...)
	}
	return append([]Record(nil), records[len(records)-n:]...)
}

// bound drops the oldest records beyond limit.
func bound(records []Record, limit int) []Record {
	if limit > 0 && len(records) > limit {
		return records[len(records)-limit:]
	}
	return records
}

var nowFunc = func() time.Time { return time.Now().UTC() }

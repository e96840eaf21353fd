package services

import (
	"context"
	"sync"

	"github.com/xkhani/shipping-agent/pkg/adapters/datasource"
)

// fakeDatabase records every plan and execute call.
type fakeDatabase struct {
	ValidateFunc func(ctx context.Context, sqlQuery string) error
	ExecuteFunc  func(ctx context.Context, sqlQuery string) (*datasource.ExecuteResult, error)

	mu       sync.Mutex
	planned  []string
	executed []string
}

func (f *fakeDatabase) ValidateQuery(ctx context.Context, sqlQuery string) error {
	f.mu.Lock()
	f.planned = append(f.planned, sqlQuery)
	f.mu.Unlock()
	if f.ValidateFunc != nil {
		return f.ValidateFunc(ctx, sqlQuery)
	}
	return nil
}

func (f *fakeDatabase) Execute(ctx context.Context, sqlQuery string) (*datasource.ExecuteResult, error) {
	f.mu.Lock()
	f.executed = append(f.executed, sqlQuery)
	f.mu.Unlock()
	if f.ExecuteFunc != nil {
		return f.ExecuteFunc(ctx, sqlQuery)
	}
	return &datasource.ExecuteResult{HasRows: true}, nil
}

func (f *fakeDatabase) Planned() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.planned...)
}

func (f *fakeDatabase) Executed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.executed...)
}

// countResult is the result of a single-column count query.
func countResult(n int64) *datasource.ExecuteResult {
	return &datasource.ExecuteResult{
		HasRows: true,
		Columns: []datasource.ColumnInfo{{Name: "count", Type: "INT8"}},
		Rows:    [][]any{{n}},
	}
}

// alwaysInvalid rejects every candidate with the same message.
type alwaysInvalid struct {
	message string

	mu    sync.Mutex
	calls int
}

func (v *alwaysInvalid) Validate(ctx context.Context, sqlQuery string) (bool, string) {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	return false, v.message
}

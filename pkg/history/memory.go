package history

import (
	"context"
	"sync"
)

// MemoryStore keeps history in process memory only.
type MemoryStore struct {
	mu       sync.Mutex
	limit    int
	accepted []Record
	rejected []Record
}

// NewMemoryStore creates an empty store retaining limit records per kind.
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &MemoryStore{limit: limit}
}

func (s *MemoryStore) AppendAccepted(_ context.Context, prompt, sql string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepted = bound(append(s.accepted, Record{Prompt: prompt, SQL: sql, Timestamp: nowFunc()}), s.limit)
	return nil
}

func (s *MemoryStore) AppendRejected(_ context.Context, prompt, badSQL, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected = bound(append(s.rejected, Record{Prompt: prompt, BadSQL: badSQL, Reason: reason, Timestamp: nowFunc()}), s.limit)
	return nil
}

func (s *MemoryStore) RecentAccepted(_ context.Context, n int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tail(s.accepted, n), nil
}

func (s *MemoryStore) RecentRejected(_ context.Context, n int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tail(s.rejected, n), nil
}

var _ Store = (*MemoryStore)(nil)

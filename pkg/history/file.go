package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// FileStore persists each kind as a JSON array in its own file. Every
// append reads the whole file and rewrites it. The mutex serializes this
// process only; concurrent processes race and the last writer wins.
type FileStore struct {
	mu           sync.Mutex
	acceptedPath string
	rejectedPath string
	limit        int
	logger       *zap.Logger
}

// NewFileStore creates a store over two JSON files. Missing files are
// treated as empty and created on first append.
func NewFileStore(acceptedPath, rejectedPath string, limit int, logger *zap.Logger) *FileStore {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{
		acceptedPath: acceptedPath,
		rejectedPath: rejectedPath,
		limit:        limit,
		logger:       logger.Named("history"),
	}
}

func (s *FileStore) AppendAccepted(_ context.Context, prompt, sql string) error {
	return s.append(s.acceptedPath, Record{Prompt: prompt, SQL: sql, Timestamp: nowFunc()})
}

func (s *FileStore) AppendRejected(_ context.Context, prompt, badSQL, reason string) error {
	return s.append(s.rejectedPath, Record{Prompt: prompt, BadSQL: badSQL, Reason: reason, Timestamp: nowFunc()})
}

func (s *FileStore) RecentAccepted(_ context.Context, n int) ([]Record, error) {
	return s.recent(s.acceptedPath, n)
}

func (s *FileStore) RecentRejected(_ context.Context, n int) ([]Record, error) {
	return s.recent(s.rejectedPath, n)
}

func (s *FileStore) recent(path string, n int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(path)
	if err != nil {
		return nil, err
	}
	return tail(records, n), nil
}

func (s *FileStore) append(path string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(path)
	if err != nil {
		return err
	}
	records = bound(append(records, rec), s.limit)
	return s.save(path, records)
}

// load reads a history file. A missing file is empty; a corrupt one is
// logged and treated as empty so the next append replaces it.
func (s *FileStore) load(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("Discarding unreadable history file", zap.String("path", path), zap.Error(err))
		return nil, nil
	}
	return records, nil
}

// save writes records through a temp file and rename so a crash never
// leaves a half-written array behind.
func (s *FileStore) save(path string, records []Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write history %s: %w", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write history %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write history %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write history %s: %w", path, err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)

package llm

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// WorkerPoolConfig configures the model worker pool.
type WorkerPoolConfig struct {
	// MaxConcurrent caps outstanding model calls. A local Ollama serves one
	// request at a time per loaded model, so the default is small.
	MaxConcurrent int
}

// DefaultWorkerPoolConfig returns the default pool size.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{MaxConcurrent: 2}
}

// WorkerPool runs batches of model-bound work with bounded parallelism.
type WorkerPool struct {
	config WorkerPoolConfig
	logger *zap.Logger
}

// NewWorkerPool creates a WorkerPool.
func NewWorkerPool(config WorkerPoolConfig, logger *zap.Logger) *WorkerPool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = DefaultWorkerPoolConfig().MaxConcurrent
	}
	return &WorkerPool{
		config: config,
		logger: logger.Named("llm.pool"),
	}
}

// WorkItem is a unit of work.
type WorkItem[T any] struct {
	ID      string
	Execute func(ctx context.Context) (T, error)
}

// WorkResult is the outcome of one WorkItem.
type WorkResult[T any] struct {
	ID       string
	Result   T
	Err      error
	Duration time.Duration
}

// Process runs every item and returns the results in submission order.
// A failing item does not stop the others. Items still waiting for a slot
// when ctx is done fail with ctx.Err() without running. onProgress, if set,
// is called from a single goroutine after each completion.
func Process[T any](
	ctx context.Context,
	pool *WorkerPool,
	items []WorkItem[T],
	onProgress func(completed, total int),
) []WorkResult[T] {
	if len(items) == 0 {
		return nil
	}

	type indexed struct {
		index  int
		result WorkResult[T]
	}

	results := make([]WorkResult[T], len(items))
	done := make(chan indexed, len(items))
	sem := make(chan struct{}, pool.config.MaxConcurrent)

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item WorkItem[T]) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				done <- indexed{i, WorkResult[T]{ID: item.ID, Err: ctx.Err()}}
				return
			}

			start := time.Now()
			result, err := item.Execute(ctx)
			if err != nil {
				pool.logger.Debug("Work item failed", zap.String("id", item.ID), zap.Error(err))
			}
			done <- indexed{i, WorkResult[T]{ID: item.ID, Result: result, Err: err, Duration: time.Since(start)}}
		}(i, item)
	}

	go func() {
		wg.Wait()
		close(done)
	}()

	completed := 0
	for r := range done {
		results[r.index] = r.result
		completed++
		if onProgress != nil {
			onProgress(completed, len(items))
		}
	}
	return results
}

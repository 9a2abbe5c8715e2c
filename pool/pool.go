package pool

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/utkarsh5026/panotile/internal/cpu"
)

// WorkerPool is a bounded pool running batches of tasks.
//
// Type parameters:
//   - T: The input task type
//   - R: The result type
type WorkerPool[T any, R any] struct {
	conf workerPoolConfig
}

// ProcessFunc processes a single task. A returned error stops the batch.
type ProcessFunc[T any, R any] func(ctx context.Context, task T) (R, error)

// NewWorkerPool creates a new worker pool with the given options.
// Default configuration: one worker, buffer = worker count.
func NewWorkerPool[T any, R any](opts ...WorkerPoolOption) *WorkerPool[T, R] {
	cfg := workerPoolConfig{workerCount: 1}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.taskBuffer == 0 {
		cfg.taskBuffer = cfg.workerCount
	}
	return &WorkerPool[T, R]{conf: cfg}
}

// Workers returns the configured worker count.
func (wp *WorkerPool[T, R]) Workers() int {
	return wp.conf.workerCount
}

// Process runs every task and returns the results in input order.
// It blocks until all workers have exited; no result is visible to the
// caller before that join completes.
//
// The first task error cancels the dispatch of the remaining tasks and is
// returned with a nil result slice.
func (wp *WorkerPool[T, R]) Process(
	ctx context.Context,
	tasks []T,
	processFn ProcessFunc[T, R],
) ([]R, error) {
	if len(tasks) == 0 {
		return []R{}, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	taskChan := make(chan indexedTask[T], wp.conf.taskBuffer)

	// Each index is written by exactly one worker and read only after Wait.
	results := make([]R, len(tasks))

	numWorkers := min(wp.conf.workerCount, len(tasks))
	for slot := range numWorkers {
		g.Go(func() error {
			return wp.worker(ctx, slot, taskChan, results, processFn)
		})
	}

	g.Go(func() error {
		defer close(taskChan)
		for idx, task := range tasks {
			select {
			case taskChan <- indexedTask[T]{index: idx, task: task}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// indexedTask wraps a task with its original index
type indexedTask[T any] struct {
	index int
	task  T
}

func (wp *WorkerPool[T, R]) worker(
	ctx context.Context,
	slot int,
	taskChan <-chan indexedTask[T],
	results []R,
	processFn ProcessFunc[T, R],
) error {
	if wp.conf.affinity {
		release := cpu.Pin(slot)
		defer release()
	}

	for {
		select {
		case t, ok := <-taskChan:
			if !ok {
				return nil
			}

			if wp.conf.rateLimiter != nil {
				if err := wp.conf.rateLimiter.Wait(ctx); err != nil {
					return err
				}
			}

			if wp.conf.beforeTaskStart != nil {
				wp.conf.beforeTaskStart(t.index)
			}
			result, err := processWithRecovery(ctx, t.task, processFn)
			if wp.conf.onTaskEnd != nil {
				wp.conf.onTaskEnd(t.index, err)
			}
			if err != nil {
				return err
			}
			results[t.index] = result
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// processWithRecovery executes a task with panic recovery.
// If a panic occurs, it's converted to an error to prevent crashing the worker.
func processWithRecovery[T, R any](
	ctx context.Context,
	task T,
	processFn ProcessFunc[T, R],
) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = fmt.Errorf("worker panic: %v\nstack trace:\n%s", r, buf[:n])
		}
	}()

	return processFn(ctx, task)
}

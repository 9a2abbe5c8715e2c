package pool

import (
	"golang.org/x/time/rate"
)

// WorkerPoolOption is a functional option for configuring the worker pool.
type WorkerPoolOption func(*workerPoolConfig)

type workerPoolConfig struct {
	workerCount     int
	taskBuffer      int
	rateLimiter     *rate.Limiter
	affinity        bool
	beforeTaskStart func(index int)
	onTaskEnd       func(index int, err error)
}

// WithWorkerCount sets the number of concurrent workers.
// If not specified, the pool runs a single worker.
func WithWorkerCount(count int) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		if count > 0 {
			cfg.workerCount = count
		}
	}
}

// WithTaskBuffer sets the buffer size for the task channel.
// If not specified, defaults to the number of workers.
func WithTaskBuffer(size int) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		if size >= 0 {
			cfg.taskBuffer = size
		}
	}
}

// WithRateLimit caps how many tasks may start per second.
// burst is the number of tasks that may start back to back.
// Non-positive values leave the pool unthrottled.
//
// Example:
//
//	WithRateLimit(10, 5) // 10 tasks/sec with a burst of 5
func WithRateLimit(tasksPerSecond float64, burst int) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		if tasksPerSecond > 0 && burst > 0 {
			cfg.rateLimiter = rate.NewLimiter(rate.Limit(tasksPerSecond), burst)
		}
	}
}

// WithLimiter throttles task starts with a caller-owned limiter. Pools, or
// other callers, sharing one limiter share its budget across Process calls.
// A nil limiter leaves the pool unthrottled.
func WithLimiter(l *rate.Limiter) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		cfg.rateLimiter = l
	}
}

// WithAffinity locks every worker goroutine to its own OS thread and, where
// the platform allows it, pins that thread to one CPU.
func WithAffinity() WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		cfg.affinity = true
	}
}

// WithBeforeTaskStart registers a hook called with the task's slice index
// right before the task runs. Hooks run on worker goroutines.
func WithBeforeTaskStart(fn func(index int)) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		cfg.beforeTaskStart = fn
	}
}

// WithOnTaskEnd registers a hook called with the task's slice index and
// error once the task returns. Hooks run on worker goroutines.
func WithOnTaskEnd(fn func(index int, err error)) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		cfg.onTaskEnd = fn
	}
}

// Package pool provides a small generic worker pool for running a batch of
// independent tasks concurrently.
//
// The primary type is WorkerPool[T, R], a bounded pool of workers which
// process tasks of type T and return results of type R. Results come back in
// the order of the input slice regardless of completion order.
//
// # Basic Usage
//
//	ctx := context.Background()
//	tasks := []int{1, 2, 3, 4}
//	wp := pool.NewWorkerPool[int, int](pool.WithWorkerCount(4))
//	results, err := wp.Process(ctx, tasks, func(ctx context.Context, t int) (int, error) {
//	    return t * 2, nil
//	})
//
// # Error Handling
//
// The pool is fail-fast: the first task error stops the dispatch of further
// tasks and is returned from Process. Tasks already running are not
// interrupted; their results are discarded. Panics inside a task are
// recovered and converted to errors carrying the stack trace.
//
// There is no retry policy. Retrying is the caller's decision.
//
// # Configuration Options
//
//   - WithWorkerCount(n): number of concurrent workers (default: 1)
//   - WithTaskBuffer(n): task channel buffer size (default: worker count)
//   - WithRateLimit(tasksPerSecond, burst): throttle task starts
//   - WithLimiter(l): throttle with a limiter shared across pools and calls
//   - WithAffinity(): lock each worker to an OS thread pinned to one CPU
//   - WithBeforeTaskStart / WithOnTaskEnd: observation hooks
//
// With one worker the tasks run strictly one after another in slice order.
package pool

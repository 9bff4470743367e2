// Package pool provides a small generic worker pool whose workers can be
// pinned to physical CPU cores.
//
// The primary type is WorkerPool[T, R], a configurable pool of workers
// which process tasks of type T and return results of type R. The pool
// supports context-aware processing, panic recovery, rate limiting and
// per-worker start hooks via functional options.
//
// # Basic Usage
//
//	ctx := context.Background()
//	tasks := []int{1, 2, 3, 4}
//	pool := NewWorkerPool[int, int](WithWorkerCount(4))
//	results, err := pool.Process(ctx, tasks, func(ctx context.Context, t int) (int, error) {
//	    return t * 2, nil
//	})
//
// # Parallel Regions
//
// Run executes one function on every worker and waits for all of them,
// which is the shape of a compute kernel split by worker id:
//
//	err := pool.Run(ctx, func(ctx context.Context, workerID int) error {
//	    return kernel(chunks[workerID])
//	})
//
// # Core Binding
//
// An affinity.Manager decides the default worker count and where each
// worker runs:
//
//	m := affinity.Default()
//	pool.ApplyAffinity(m, 0) // default workers = physical cores
//	wp := pool.NewWorkerPool[int, int](pool.WithAffinity(m))
//
// Worker i is pinned to the i-th physical core before it takes any work.
// When an OpenMP style environment variable already controls placement,
// or the platform cannot pin threads, workers run unpinned.
//
// # Rate Limiting
//
//	pool := NewWorkerPool[string, APIResponse](
//	    WithWorkerCount(10),
//	    WithRateLimit(5.0, 10), // 5 tasks/sec, burst of 10
//	)
//
// # Debugging
//
// Build with -tags debug to log worker placement to stderr.
package pool

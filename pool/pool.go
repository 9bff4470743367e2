package pool

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// WorkerPool is a generic worker pool with a fixed number of workers.
//
// Type parameters:
//   - T: The input task type
//   - R: The result type
type WorkerPool[T any, R any] struct {
	workerCount     int
	taskBuffer      int
	rateLimiter     *rate.Limiter
	continueOnError bool
	workerStart     func(workerID int)
	bindWorker      func(workerID int)
}

// NewWorkerPool creates a new worker pool with the given options.
// Default configuration: workers = DefaultWorkerCount(), buffer = worker count.
//
// Example:
//
//	m := affinity.New(topology.Discover())
//	pool.ApplyAffinity(m, 0)
//	wp := pool.NewWorkerPool[Image, Label](pool.WithAffinity(m))
func NewWorkerPool[T any, R any](opts ...WorkerPoolOption) *WorkerPool[T, R] {
	cfg := &workerPoolConfig{
		workerCount: DefaultWorkerCount(),
		taskBuffer:  -1,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.taskBuffer < 0 {
		cfg.taskBuffer = cfg.workerCount
	}

	return &WorkerPool[T, R]{
		workerCount:     cfg.workerCount,
		taskBuffer:      cfg.taskBuffer,
		rateLimiter:     cfg.rateLimiter,
		continueOnError: cfg.continueOnError,
		workerStart:     cfg.workerStart,
		bindWorker:      cfg.bindWorker,
	}
}

// WorkerCount returns the number of workers Process and Run start.
func (wp *WorkerPool[T, R]) WorkerCount() int {
	return wp.workerCount
}

// Process executes tasks concurrently using a pool of workers.
// Results keep the order of tasks. Unless WithContinueOnError is set, the
// first failing task cancels the others and its error is returned.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - tasks: Slice of tasks to process
//   - processFn: Function to process each task
//
// Returns:
//   - results: Slice of all results (may be partial if errors occurred)
//   - error: First error encountered, if any
func (wp *WorkerPool[T, R]) Process(
	ctx context.Context,
	tasks []T,
	processFn ProcessFunc[T, R],
) ([]R, error) {
	if len(tasks) == 0 {
		return []R{}, nil
	}

	g, ctx := errgroup.WithContext(ctx)

	taskChan := make(chan indexedTask[T], wp.taskBuffer)
	resultChan := make(chan Result[R], len(tasks))

	numWorkers := min(wp.workerCount, len(tasks))
	for id := range numWorkers {
		g.Go(func() error {
			wp.startWorker(id)
			return wp.worker(ctx, taskChan, resultChan, processFn)
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

	results := make([]R, len(tasks))
	var collectionErr error
	var collectionWg sync.WaitGroup
	collectionWg.Add(1)

	go func() {
		defer collectionWg.Done()
		for result := range resultChan {
			if result.Error != nil {
				if collectionErr == nil {
					collectionErr = result.Error
				}
				continue
			}
			if result.Index >= 0 && result.Index < len(results) {
				results[result.Index] = result.Value
			}
		}
	}()

	err := g.Wait()
	close(resultChan)
	collectionWg.Wait()

	if err != nil {
		return results, err
	}
	return results, collectionErr
}

// Run starts every worker, runs fn once on each of them and waits for all to
// return. It is the pool's parallel region: with WithAffinity each call runs
// on a thread pinned to its own core. The first error cancels ctx for the
// remaining workers and is returned.
func (wp *WorkerPool[T, R]) Run(ctx context.Context, fn RegionFunc) error {
	g, ctx := errgroup.WithContext(ctx)

	for id := range wp.workerCount {
		g.Go(func() error {
			wp.startWorker(id)
			return runWithRecovery(ctx, id, fn)
		})
	}

	return g.Wait()
}

package pool

import (
	"golang.org/x/time/rate"

	"github.com/utkarsh5026/corebind/affinity"
)

// WorkerPoolOption is a functional option for configuring the worker pool.
type WorkerPoolOption func(*workerPoolConfig)

type workerPoolConfig struct {
	workerCount     int
	taskBuffer      int
	rateLimiter     *rate.Limiter
	continueOnError bool
	workerStart     func(workerID int)
	bindWorker      func(workerID int)
}

// WithWorkerCount sets the number of concurrent workers.
// If not specified, defaults to DefaultWorkerCount().
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

// WithRateLimit caps task throughput.
// tasksPerSecond is the sustained rate, burst the number of tasks allowed at once.
//
// Example:
//
//	WithRateLimit(10, 5) // Allow 10 tasks/sec with burst of 5
func WithRateLimit(tasksPerSecond float64, burst int) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		if tasksPerSecond > 0 && burst > 0 {
			cfg.rateLimiter = rate.NewLimiter(rate.Limit(tasksPerSecond), burst)
		}
	}
}

// WithContinueOnError keeps workers going after a task fails. The first error
// is still returned once every task has run.
func WithContinueOnError(enabled bool) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		cfg.continueOnError = enabled
	}
}

// WithWorkerStart registers a hook that every worker goroutine runs once,
// with its zero-based id, before it takes any work. With WithAffinity the
// hook runs after the worker is pinned, whatever the option order.
func WithWorkerStart(fn func(workerID int)) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		cfg.workerStart = fn
	}
}

// WithAffinity pins worker i to the i-th physical core chosen by m. Workers
// are locked to their OS threads for their whole life. When m does not allow
// binding the workers run unpinned.
func WithAffinity(m *affinity.Manager) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		if m == nil {
			return
		}
		cfg.bindWorker = func(workerID int) {
			if !m.BindWorkerToCore(workerID) {
				debugLog("worker %d left unpinned", workerID)
			}
		}
	}
}

package pool

import (
	"context"
	"fmt"
	"runtime"

	"github.com/utkarsh5026/corebind/internal/cpu"
)

// startWorker prepares the calling goroutine before it takes work. A pinning
// pool locks the goroutine to its OS thread and binds it first, then the
// user start hook runs.
func (wp *WorkerPool[T, R]) startWorker(workerID int) {
	if wp.bindWorker != nil {
		cpu.LockThread()
		wp.bindWorker(workerID)
	}
	if wp.workerStart != nil {
		wp.workerStart(workerID)
	}
}

// worker is the core worker function that processes tasks from the task channel.
// It includes panic recovery to prevent a single task from crashing the entire pool.
func (wp *WorkerPool[T, R]) worker(
	ctx context.Context,
	taskChan <-chan indexedTask[T],
	resultChan chan<- Result[R],
	processFn ProcessFunc[T, R],
) error {
	for {
		select {
		case t, ok := <-taskChan:
			if !ok {
				return nil
			}

			if wp.rateLimiter != nil {
				if err := wp.rateLimiter.Wait(ctx); err != nil {
					return err
				}
			}

			result, err := processWithRecovery(ctx, t.task, processFn)

			select {
			case resultChan <- Result[R]{Value: result, Error: err, Index: t.index}:
			case <-ctx.Done():
				return ctx.Err()
			}

			if err != nil && !wp.continueOnError {
				return err
			}
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
			err = panicError(r)
		}
	}()

	return processFn(ctx, task)
}

func runWithRecovery(ctx context.Context, workerID int, fn RegionFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %d: %w", workerID, panicError(r))
		}
	}()

	return fn(ctx, workerID)
}

func panicError(r any) error {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return fmt.Errorf("worker panic: %v\nstack trace:\n%s", r, buf[:n])
}

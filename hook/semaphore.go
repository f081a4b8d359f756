// Package hook collects small collaborators that bridge fiberio's core
// (Fiber, Scheduler, IOManager) to call sites that would otherwise block a
// whole OS thread: counting semaphores and polled-condition waits. None
// of this is a protocol implementation: HTTP, database pools, and wire
// codecs remain out of scope, as documented in the core package.
package hook

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/star-cs/fiberio"
)

// FiberSemaphore is a counting semaphore whose Acquire suspends the calling
// fiber (via fiberio.Yield) instead of blocking its goroutine outright,
// so a worker's OS thread stays free to run other fibers while one waits.
// Built on golang.org/x/sync/semaphore.Weighted for the actual counting;
// its FIFO wake order applies only to blocking (non-fiber) callers, while
// fibers retry TryAcquire after each yield in no particular order. The
// fiber-yield loop is what makes it safe to call from fiber-scheduled code
// without stalling the worker.
type FiberSemaphore struct {
	sem *semaphore.Weighted
}

// NewFiberSemaphore constructs a semaphore with the given capacity.
func NewFiberSemaphore(n int64) *FiberSemaphore {
	return &FiberSemaphore{sem: semaphore.NewWeighted(n)}
}

// Acquire reserves one unit of capacity. When called from inside a fiber
// (fiberio.CurrentFiber() != nil) and the semaphore is momentarily full, it
// yields and is rescheduled by the owning Scheduler rather than blocking;
// outside a fiber it falls back to sem.Acquire directly, matching the
// non-fiber escape hatch fiberio's core itself uses for its idle fiber.
func (s *FiberSemaphore) Acquire(ctx context.Context) error {
	if fiberio.CurrentFiber() == nil {
		return s.sem.Acquire(ctx, 1)
	}
	for {
		if s.sem.TryAcquire(1) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		sched := fiberio.CurrentScheduler()
		if sched == nil {
			return s.sem.Acquire(ctx, 1)
		}
		fiberio.Yield()
	}
}

// TryAcquire reserves one unit without blocking or yielding, reporting
// whether it succeeded.
func (s *FiberSemaphore) TryAcquire() bool { return s.sem.TryAcquire(1) }

// Release returns one unit of capacity.
func (s *FiberSemaphore) Release() { s.sem.Release(1) }

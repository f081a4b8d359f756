package fiberio

import (
	"runtime"
	"sync"
)

// goroutineID returns the calling goroutine's runtime id, parsed out of the
// traceback header. Adapted from the teacher's getGoroutineID (loop.go):
// there is no supported API for this, but the "goroutine NNN [state]:"
// prefix of runtime.Stack's output is stable enough across Go releases to
// rely on for a best-effort thread-local anchor.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

// fiberAnchor maps goroutine ids to the Fiber currently executing on them.
// This is the mechanism behind CurrentFiber/Yield: since Go has no true
// thread-local storage, and a Fiber's callable may itself migrate across
// OS threads if it blocks and resumes (the Go scheduler is free to do this
// between any two goroutine-visible events), the anchor is keyed by
// goroutine id rather than OS thread id, since a fiber's callable runs on
// exactly one goroutine for its whole lifetime, which is the granularity
// that matters here, unlike the source's thread-local t_fiber.
type fiberAnchor struct {
	m sync.Map // goroutine id (uint64) -> *Fiber
}

var currentFiberAnchor fiberAnchor

func (a *fiberAnchor) set(f *Fiber) {
	a.m.Store(goroutineID(), f)
}

func (a *fiberAnchor) clear() {
	a.m.Delete(goroutineID())
}

func (a *fiberAnchor) get() (*Fiber, bool) {
	v, ok := a.m.Load(goroutineID())
	if !ok {
		return nil, false
	}
	return v.(*Fiber), true
}

// workerAnchor maps goroutine ids to the Scheduler worker index executing
// on them, mirroring loop.go's single loopGoroutineID but generalized to N
// workers instead of one. Used by CurrentScheduler (and through it by
// Scheduler.Start's reentrancy check) and by Fiber.Resume, which passes the
// resuming worker on to the fiber's own goroutine.
type workerAnchor struct {
	m sync.Map // goroutine id (uint64) -> *worker
}

var currentWorkerAnchor workerAnchor

func (a *workerAnchor) set(w *worker) {
	a.m.Store(goroutineID(), w)
}

func (a *workerAnchor) clear() {
	a.m.Delete(goroutineID())
}

func (a *workerAnchor) get() (*worker, bool) {
	v, ok := a.m.Load(goroutineID())
	if !ok {
		return nil, false
	}
	return v.(*worker), true
}

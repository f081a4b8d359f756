package hook

import "github.com/star-cs/fiberio"

// Await suspends the calling fiber, repeatedly yielding and re-checking
// poll until it reports ready, then returns the produced value.
//
// This is deliberately poll-based rather than callback-resume-based: the
// scheduler's dispatch loop already re-enqueues a fiber unconditionally
// whenever it yields (it cannot tell "yielded because done" from "yielded
// because waiting"), so a callback that itself re-schedules the fiber would
// race with that automatic re-enqueue and could resume it twice. Driving
// completion through a value poll-and-Yield loop sidesteps that race
// entirely; it's the same pattern FiberSemaphore.Acquire already uses.
func Await[T any](poll func() (T, bool)) T {
	if fiberio.CurrentFiber() == nil {
		panic("hook: Await called outside a fiber")
	}
	for {
		if v, ok := poll(); ok {
			return v
		}
		fiberio.Yield()
	}
}

// Package fiberio is a fused fiber/scheduler/epoll/timer concurrency
// runtime: stackful-style fibers, an M:N work-queue [Scheduler], an
// epoll/kqueue-backed [IOManager], and a monotonic [TimerManager], wired so
// that every blocking point in user code becomes a fiber yield and every
// wake-up becomes a re-enqueue of a ready fiber.
//
// # Architecture
//
// A [Fiber] is a goroutine paired with a rendezvous channel pair, started
// lazily on first [Fiber.Resume] and suspended with [Yield]. A [Scheduler]
// runs a fixed pool of worker goroutines, each cycling seek ([Scheduler]'s
// task queue) / execute (resume the fiber) / idle. [IOManager] specializes
// Scheduler's idle step into one epoll_wait (kqueue on Darwin) pass per
// idle cycle, draining expired timers from its [TimerManager] and firing
// ready file descriptor events through [IOManager.AddEvent] registrations.
//
// # Platform support
//
// I/O polling uses the platform-native readiness mechanism:
//   - Linux: epoll, edge-triggered
//   - macOS: kqueue
//   - Windows: not implemented; [NewIOManager] returns an error
//     wrapping errUnsupportedPoll (see DESIGN.md)
//
// # Thread safety
//
// [Scheduler.Schedule] and [Scheduler.ScheduleBatch] are safe to call from
// any goroutine. [IOManager.AddEvent] requires the caller be running
// inside a fiber when cb is nil (the current fiber becomes the wake
// target). [TimerManager] methods are safe from any
// goroutine.
//
// # Usage
//
//	mgr, err := fiberio.NewIOManager(fiberio.WithWorkers(4))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer mgr.Stop()
//
//	mgr.Schedule(fiberio.NewFiberTask(fiberio.NewFiber(func() {
//		// blocking-looking code; Yield() inside a hook suspends here
//		// and resumes when the registered event or timer fires.
//	}, 0, true)))
package fiberio

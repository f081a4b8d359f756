package fiberio

import (
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// fiberLog is the package-level structured logger. Logging is an
// infrastructure cross-cutting concern shared by every Scheduler/IOManager
// instance in a process, so, following the teacher's logging.go design,
// it lives behind a package-level variable rather than a per-instance
// dependency, swappable via SetLogger.
var fiberLog struct {
	sync.RWMutex
	l *logiface.Logger[*stumpy.Event]
}

func init() {
	SetLogger(logiface.New[*stumpy.Event](stumpy.L.WithStumpy()))
}

// SetLogger replaces the package-level structured logger used for
// background errors: fiber panics, timer callback panics, epoll_ctl/
// epoll_wait failures, and scheduler lifecycle events. The default writes
// JSON lines to stderr via stumpy. The replacement must also be a
// stumpy-event logger (*logiface.Logger[*stumpy.Event]), for example one
// writing to a different destination; loggers built on other logiface
// backends have a different type and are not accepted.
func SetLogger(l *logiface.Logger[*stumpy.Event]) {
	fiberLog.Lock()
	defer fiberLog.Unlock()
	fiberLog.l = l
}

func getLogger() *logiface.Logger[*stumpy.Event] {
	fiberLog.RLock()
	defer fiberLog.RUnlock()
	return fiberLog.l
}

// logPanic records a recovered panic from a fiber callable or timer
// callback. Per spec §7, user-code errors are caught, logged, and
// swallowed, never propagated across a fiber or timer boundary.
func logPanic(category string, fiberID uint64, r any) {
	getLogger().Err().
		Str("category", category).
		Uint64("fiber_id", fiberID).
		Any("panic", r).
		Log("recovered panic")
}

// logSystemError records a background failure from a syscall that the
// triggering caller has already been returned a SystemError for.
func logSystemError(op string, fd int, err error) {
	getLogger().Warning().
		Str("op", op).
		Int("fd", fd).
		Err(err).
		Log("system call failed")
}

// logLifecycle records a scheduler/IOManager lifecycle transition at debug
// level: started, stopped.
func logLifecycle(name string, event string) {
	getLogger().Debug().
		Str("scheduler", name).
		Str("event", event).
		Log("lifecycle")
}

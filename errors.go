package fiberio

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every fiberio operation that spec'd an "error code"
// returns one of these (or nil), matchable with errors.Is, resolving the
// inconsistent 0-means-ok/0-means-empty ambiguity of the original source by
// picking exactly one convention and keeping it everywhere.
var (
	// ErrAlreadyStopped is returned when an operation is attempted on a
	// Scheduler/IOManager that has already been stopped.
	ErrAlreadyStopped = errors.New("fiberio: scheduler already stopped")

	// ErrDuplicateEvent is returned by AddEvent when the (fd, event) pair
	// is already registered.
	ErrDuplicateEvent = errors.New("fiberio: event already registered")

	// ErrNoSuchFD is returned when an operation references an fd that has
	// no FdContext.
	ErrNoSuchFD = errors.New("fiberio: no such fd")

	// ErrNoSuchEvent is returned when DelEvent/CancelEvent references an
	// event kind that isn't currently armed on the fd.
	ErrNoSuchEvent = errors.New("fiberio: no such event")

	// ErrReentrantRun is returned when Start is called from a fiber running
	// on one of the scheduler's own workers.
	ErrReentrantRun = errors.New("fiberio: cannot start scheduler from within itself")
)

// SystemError wraps an errno-class failure from a syscall (epoll_ctl,
// epoll_wait, eventfd, pipe). Background system errors are only logged; the
// offending fd is not evicted from the poller or the fd table. SystemError
// is what's returned to the direct caller that triggered the syscall.
type SystemError struct {
	Op  string
	Fd  int
	Err error
}

func (e *SystemError) Error() string {
	if e.Fd >= 0 {
		return fmt.Sprintf("fiberio: %s(fd=%d): %v", e.Op, e.Fd, e.Err)
	}
	return fmt.Sprintf("fiberio: %s: %v", e.Op, e.Err)
}

func (e *SystemError) Unwrap() error { return e.Err }

// ErrSystem reports whether err is (or wraps) a SystemError.
func ErrSystem(err error) bool {
	var sysErr *SystemError
	return errors.As(err, &sysErr)
}

// wrapSystem is a small helper used throughout the poller/wakeup code to
// build a *SystemError from a raw syscall error with op/fd context.
func wrapSystem(op string, fd int, err error) error {
	if err == nil {
		return nil
	}
	return &SystemError{Op: op, Fd: fd, Err: err}
}

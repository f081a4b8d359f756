package fiberio

import "errors"

// IOEvent is a readiness condition on a file descriptor (spec Glossary).
type IOEvent uint32

const (
	// EventRead indicates the file descriptor is ready for reading.
	EventRead IOEvent = 1 << iota
	// EventWrite indicates the file descriptor is ready for writing.
	EventWrite
	// eventError and eventHangup are never armed directly by callers;
	// EPOLLERR/EPOLLHUP are folded into both READ and WRITE by the idle
	// fiber (spec §4.3 idle-fiber step 4).
	eventError
	eventHangup
)

var (
	errFDOutOfRange    = errors.New("fiberio: fd out of range")
	errPollerClosed    = errors.New("fiberio: poller closed")
	errUnsupportedPoll = errors.New("fiberio: platform poller unavailable")
)

// maxTrackedFD bounds fdTable growth: a registration above this is almost
// certainly a caller bug (a raw syscall fd number, not a leaked counter),
// and left unchecked would grow the table to match it.
const maxTrackedFD = 1 << 20

// polledEvent is one readiness notification returned from a poller wait.
type polledEvent struct {
	fd     int
	events IOEvent
}

// fdPoller is the minimal platform-specific readiness multiplexer
// IOManager drives. Linux gets a full epoll implementation
// (poller_linux.go, adapted from the teacher's FastPoller); Darwin gets a
// kqueue implementation (poller_darwin.go); Windows carries a build-tag
// stub (poller_windows.go) returning errUnsupportedPoll, since a faithful
// IOCP realization needs overlapped I/O plumbed through every syscall
// fiberio hooks, which is collaborator territory (spec §1), not core;
// see DESIGN.md.
type fdPoller interface {
	init() error
	close() error
	add(fd int, ev IOEvent) error
	mod(fd int, ev IOEvent) error
	del(fd int) error
	wait(timeoutMs int, out []polledEvent) (int, error)
}

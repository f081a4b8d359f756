//go:build linux

package fiberio

import (
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// epollPoller adapts the teacher's FastPoller (poller_linux.go): edge
// triggered, with a version counter bumped on every registration change.
// wait never discards what EpollWait reports: an edge-triggered readiness
// dropped once is not reported again, and a result that went stale during
// the wait is filtered out by fdcontext.go's per-row armed mask. Unlike the
// teacher's direct-indexed [maxFDs]fdInfo array (which stores callbacks
// itself), epollPoller only tracks raw epoll registration state; the
// FdContext/EventContext layer above it (fdcontext.go) owns callbacks and
// one-shot semantics, since spec §4.3 requires explicit re-arm rather than
// the teacher's always-armed callback model.
type epollPoller struct {
	epfd     int32
	version  atomic.Uint64
	eventBuf [256]unix.EpollEvent
	closed   atomic.Bool
}

func (p *epollPoller) init() error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p.epfd = int32(epfd)
	return nil
}

func (p *epollPoller) close() error {
	p.closed.Store(true)
	if p.epfd > 0 {
		return unix.Close(int(p.epfd))
	}
	return nil
}

func ioEventToEpoll(ev IOEvent) uint32 {
	var e uint32
	if ev&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if ev&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e | unix.EPOLLET
}

func epollToIOEvent(e uint32) IOEvent {
	var ev IOEvent
	if e&unix.EPOLLIN != 0 {
		ev |= EventRead
	}
	if e&unix.EPOLLOUT != 0 {
		ev |= EventWrite
	}
	if e&unix.EPOLLERR != 0 {
		ev |= eventError
	}
	if e&unix.EPOLLHUP != 0 {
		ev |= eventHangup
	}
	return ev
}

func (p *epollPoller) add(fd int, ev IOEvent) error {
	if p.closed.Load() {
		return errPollerClosed
	}
	p.version.Add(1)
	e := &unix.EpollEvent{Events: ioEventToEpoll(ev), Fd: int32(fd)}
	return unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_ADD, fd, e)
}

func (p *epollPoller) mod(fd int, ev IOEvent) error {
	if p.closed.Load() {
		return errPollerClosed
	}
	p.version.Add(1)
	e := &unix.EpollEvent{Events: ioEventToEpoll(ev), Fd: int32(fd)}
	return unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_MOD, fd, e)
}

func (p *epollPoller) del(fd int) error {
	if p.closed.Load() {
		return errPollerClosed
	}
	p.version.Add(1)
	return unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) wait(timeoutMs int, out []polledEvent) (int, error) {
	if p.closed.Load() {
		return 0, errPollerClosed
	}
	n, err := unix.EpollWait(int(p.epfd), p.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	m := n
	if m > len(out) {
		m = len(out)
	}
	for i := 0; i < m; i++ {
		out[i] = polledEvent{fd: int(p.eventBuf[i].Fd), events: epollToIOEvent(p.eventBuf[i].Events)}
	}
	return m, nil
}

func newFdPoller() fdPoller { return &epollPoller{} }

//go:build darwin

package fiberio

import (
	"golang.org/x/sys/unix"
)

// kqueuePoller adapts the teacher's Darwin FastPoller (poller_darwin.go)
// to the fdPoller interface: same EVFILT_READ/EVFILT_WRITE split, same
// EV_ADD/EV_DELETE diffing on mod. Unlike epollPoller it keeps no version
// counter; like epollPoller it returns every event Kevent reports, leaving
// stale ones to be filtered by fdcontext.go's per-row armed mask.
type kqueuePoller struct {
	kq       int32
	eventBuf [256]unix.Kevent_t
}

func (p *kqueuePoller) init() error {
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(kq)
	p.kq = int32(kq)
	return nil
}

func (p *kqueuePoller) close() error {
	if p.kq > 0 {
		return unix.Close(int(p.kq))
	}
	return nil
}

func (p *kqueuePoller) changeList(fd int, ev IOEvent, flags uint16) []unix.Kevent_t {
	var kevs []unix.Kevent_t
	if ev&EventRead != 0 {
		kevs = append(kevs, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if ev&EventWrite != 0 {
		kevs = append(kevs, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return kevs
}

func (p *kqueuePoller) add(fd int, ev IOEvent) error {
	kevs := p.changeList(fd, ev, unix.EV_ADD|unix.EV_ENABLE|unix.EV_CLEAR)
	if len(kevs) == 0 {
		return nil
	}
	_, err := unix.Kevent(int(p.kq), kevs, nil, nil)
	return err
}

func (p *kqueuePoller) mod(fd int, ev IOEvent) error {
	// kqueue has no direct "modify" op; re-issue EV_ADD for the desired
	// set and EV_DELETE for both filters first so stale registrations
	// from a previous mask never linger.
	_ = p.del(fd)
	return p.add(fd, ev)
}

func (p *kqueuePoller) del(fd int) error {
	kevs := p.changeList(fd, EventRead|EventWrite, unix.EV_DELETE)
	if len(kevs) == 0 {
		return nil
	}
	_, _ = unix.Kevent(int(p.kq), kevs, nil, nil)
	return nil
}

func (p *kqueuePoller) wait(timeoutMs int, out []polledEvent) (int, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{Sec: int64(timeoutMs / 1000), Nsec: int64((timeoutMs % 1000) * 1e6)}
	}
	n, err := unix.Kevent(int(p.kq), nil, p.eventBuf[:], ts)
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
		kev := &p.eventBuf[i]
		var ev IOEvent
		switch kev.Filter {
		case unix.EVFILT_READ:
			ev = EventRead
		case unix.EVFILT_WRITE:
			ev = EventWrite
		}
		if kev.Flags&unix.EV_ERROR != 0 {
			ev |= eventError
		}
		if kev.Flags&unix.EV_EOF != 0 {
			ev |= eventHangup
		}
		out[i] = polledEvent{fd: int(kev.Ident), events: ev}
	}
	return m, nil
}

func newFdPoller() fdPoller { return &kqueuePoller{} }

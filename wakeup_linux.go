//go:build linux

package fiberio

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// wakeSource is the self-pipe IOManager registers with its poller so a
// schedule/stop call on a non-worker thread can break every idle worker
// out of epoll_wait (spec §4.2 "Tickle"). Adapted from the teacher's
// eventfd-based wakeup_linux.go.
type wakeSource struct {
	fd int
}

func newWakeSource() (*wakeSource, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &wakeSource{fd: fd}, nil
}

func (w *wakeSource) readFD() int { return w.fd }

// signal writes one wake unit. Multiple signals before the reader drains
// coalesce into a single eventfd counter increment, which is fine here:
// IOManager's idle fiber drains then re-checks the task queue itself
// rather than relying on counting exact wake-ups.
func (w *wakeSource) signal() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(w.fd, buf[:])
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

func (w *wakeSource) drain() {
	var buf [8]byte
	for {
		_, err := unix.Read(w.fd, buf[:])
		if err != nil {
			return
		}
	}
}

func (w *wakeSource) close() error { return unix.Close(w.fd) }

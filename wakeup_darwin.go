//go:build darwin

package fiberio

import "golang.org/x/sys/unix"

// wakeSource on Darwin is a true self-pipe (no eventfd on BSD kqueue
// systems): a nonblocking pipe whose read end is registered with the
// kqueuePoller, mirroring the original sylar design this spec is drawn
// from more closely than the teacher's Linux-only eventfd does.
type wakeSource struct {
	r, w int
}

func newWakeSource() (*wakeSource, error) {
	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, err
	}
	return &wakeSource{r: fds[0], w: fds[1]}, nil
}

func (w *wakeSource) readFD() int { return w.r }

func (w *wakeSource) signal() error {
	_, err := unix.Write(w.w, []byte{1})
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

func (w *wakeSource) drain() {
	var buf [64]byte
	for {
		_, err := unix.Read(w.r, buf[:])
		if err != nil {
			return
		}
	}
}

func (w *wakeSource) close() error {
	_ = unix.Close(w.w)
	return unix.Close(w.r)
}

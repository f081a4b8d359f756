//go:build !windows

package main

import (
	"errors"
	"log"
	"time"

	"golang.org/x/sys/unix"

	"github.com/star-cs/fiberio"
)

// runServe builds an IOManager, binds a listening socket, and schedules one
// fiber running a non-blocking accept loop hooked through IOManager.AddEvent
// This follows the shape of spec.md's S3 "TCP accept loop" scenario: accept yields on
// EAGAIN instead of blocking a worker, and resumes when the poller reports
// the listening fd readable.
func runServe(cfg *Config) error {
	mgr, err := fiberio.NewIOManager(
		fiberio.WithWorkers(cfg.Workers),
		fiberio.WithMaxTimeout(cfg.MaxTimeout),
		fiberio.WithName("fiberio-demo"),
	)
	if err != nil {
		return err
	}
	defer func() { _ = mgr.Close() }()

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return err
	}
	defer func() { _ = unix.Close(fd) }()

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return err
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: cfg.Port}); err != nil {
		return err
	}
	if err := unix.Listen(fd, 128); err != nil {
		return err
	}
	if sa, err := unix.Getsockname(fd); err == nil {
		if in4, ok := sa.(*unix.SockaddrInet4); ok {
			log.Printf("fiberio-demo: listening on port %d", in4.Port)
		}
	}

	connected := make(chan struct{}, 1)
	accept := fiberio.NewFiber(func() { acceptLoop(mgr, fd, connected) }, 0, true)

	if err := mgr.Schedule(fiberio.NewFiberTask(accept)); err != nil {
		return err
	}

	select {
	case <-connected:
		log.Println("fiberio-demo: accepted and served one connection")
	case <-time.After(cfg.Timeout):
		log.Println("fiberio-demo: timed out waiting for a connection")
	}
	return mgr.Stop()
}

func acceptLoop(mgr *fiberio.IOManager, listenFD int, connected chan<- struct{}) {
	for {
		connFD, _, err := unix.Accept(listenFD)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				if err := mgr.AddEvent(listenFD, fiberio.EventRead, nil); err != nil {
					return
				}
				fiberio.Yield()
				continue
			}
			return
		}
		_, _ = unix.Write(connFD, []byte("C"))
		_ = unix.Close(connFD)
		select {
		case connected <- struct{}{}:
		default:
		}
	}
}

//go:build windows

package main

import "errors"

// runServe has no Windows implementation: fiberio's IOManager carries only
// a build-tag stub poller on Windows (see poller_windows.go), since a
// faithful IOCP realization needs overlapped I/O threaded through every
// hooked syscall, which this demo does not attempt.
func runServe(cfg *Config) error {
	return errors.New("fiberio-demo: serve is not implemented on windows")
}

//go:build windows

package fiberio

// wakeSource has no Windows realization in this module: see poller_windows.go.
type wakeSource struct{}

func newWakeSource() (*wakeSource, error) { return nil, errUnsupportedPoll }
func (w *wakeSource) readFD() int         { return -1 }
func (w *wakeSource) signal() error       { return errUnsupportedPoll }
func (w *wakeSource) drain()              {}
func (w *wakeSource) close() error        { return nil }

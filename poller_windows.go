//go:build windows

package fiberio

// windowsPoller is a build-tag placeholder: the teacher carries a full
// IOCP-based FastPoller (poller_windows.go), but a faithful port needs
// overlapped I/O threaded through every hooked syscall (ReadFile/WriteFile
// with OVERLAPPED structures), which belongs to the hook collaborator
// (spec §1, §9 "Hooking"), not the epoll-shaped core this module
// implements. It is carried as a stub satisfying fdPoller so fiberio
// builds on Windows; NewIOManager on Windows fails with an error wrapping
// errUnsupportedPoll, since the stub wakeSource cannot be created. See
// DESIGN.md.
type windowsPoller struct{}

func (p *windowsPoller) init() error                                  { return nil }
func (p *windowsPoller) close() error                                 { return nil }
func (p *windowsPoller) add(fd int, ev IOEvent) error                 { return errUnsupportedPoll }
func (p *windowsPoller) mod(fd int, ev IOEvent) error                 { return errUnsupportedPoll }
func (p *windowsPoller) del(fd int) error                             { return errUnsupportedPoll }
func (p *windowsPoller) wait(timeoutMs int, out []polledEvent) (int, error) {
	return 0, errUnsupportedPoll
}

func newFdPoller() fdPoller { return &windowsPoller{} }

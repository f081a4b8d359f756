package fiberio

import (
	"sync/atomic"
	"time"
)

// IOManager specializes Scheduler (spec §4.3): its idle behavior is
// epoll_wait (kqueue on Darwin) instead of a spin, and it maps (fd, event)
// pairs to fibers or callables. Go has no subclassing, so "specializes"
// here means NewIOManager builds a Scheduler and then overwrites its
// tickle/tickleAll/idleStep/stoppingHook function fields, the same
// pattern options.go's functional options use, generalized to pluggable
// behavior rather than static configuration.
type IOManager struct {
	*Scheduler

	poller fdPoller
	wake   *wakeSource
	fds    *fdTable
	timers *TimerManager

	pendingEvents atomic.Int32
}

// NewIOManager constructs the base scheduler, an epoll/kqueue instance,
// the self-pipe, presizes the FdContext table, and starts the scheduler
// (spec §4.3 Construct: "... then calls start").
func NewIOManager(opts ...Option) (*IOManager, error) {
	sched := NewScheduler(opts...)

	m := &IOManager{
		Scheduler: sched,
		poller:    newFdPoller(),
		fds:       newFdTable(256),
		timers:    NewTimerManager(),
	}

	if err := m.poller.init(); err != nil {
		return nil, wrapSystem("poller.init", -1, err)
	}
	wake, err := newWakeSource()
	if err != nil {
		_ = m.poller.close()
		return nil, wrapSystem("wake.init", -1, err)
	}
	m.wake = wake
	if err := m.poller.add(wake.readFD(), EventRead); err != nil {
		_ = wake.close()
		_ = m.poller.close()
		return nil, wrapSystem("epoll_ctl", wake.readFD(), err)
	}

	sched.tickle = func() { _ = m.wake.signal() }
	sched.tickleAll = sched.tickle
	sched.stoppingHook = func() bool {
		return m.pendingEvents.Load() == 0 && m.timers.Len() == 0
	}
	sched.idleStep = m.idleStep

	m.timers.onFront = sched.tickle

	if err := sched.Start(); err != nil {
		return nil, err
	}
	return m, nil
}

// AddEvent ensures an FdContext exists for fd (growing the table 1.5x if
// needed), and arms ev with either cb (if non-nil) or, if cb is nil, the
// currently running fiber as the wake target (spec §4.3 AddEvent).
func (m *IOManager) AddEvent(fd int, ev IOEvent, cb func()) error {
	if fd < 0 {
		return ErrNoSuchFD
	}
	if fd > maxTrackedFD {
		return errFDOutOfRange
	}
	row := m.fds.get(fd)

	row.mu.Lock()
	ctx := row.contextFor(ev)
	if ctx == nil {
		row.mu.Unlock()
		return ErrNoSuchEvent
	}
	if !ctx.empty() {
		row.mu.Unlock()
		return ErrDuplicateEvent
	}
	if cb != nil {
		*ctx = eventContext{callback: cb}
	} else {
		*ctx = eventContext{fiber: CurrentFiber()}
	}
	firstEvent := row.events == 0
	row.events |= ev
	newMask := row.events
	row.mu.Unlock()

	var err error
	if firstEvent {
		err = m.poller.add(fd, newMask)
	} else {
		err = m.poller.mod(fd, newMask)
	}
	if err != nil {
		row.mu.Lock()
		*ctx = eventContext{}
		row.events &^= ev
		row.mu.Unlock()
		logSystemError("epoll_ctl", fd, err)
		return wrapSystem("epoll_ctl", fd, err)
	}
	m.pendingEvents.Add(1)
	return nil
}

// DelEvent removes ev from fd's armed mask without firing its callback.
func (m *IOManager) DelEvent(fd int, ev IOEvent) error {
	row := m.fds.peek(fd)
	if row == nil {
		return ErrNoSuchFD
	}
	row.mu.Lock()
	ctx := row.contextFor(ev)
	if ctx == nil || ctx.empty() {
		row.mu.Unlock()
		return ErrNoSuchEvent
	}
	*ctx = eventContext{}
	row.events &^= ev
	remaining := row.events
	row.mu.Unlock()

	m.pendingEvents.Add(-1)
	return m.rearm(fd, remaining)
}

// CancelEvent behaves like DelEvent but synchronously fires the armed
// callback once, as if the event had triggered (spec §4.3 CancelEvent).
func (m *IOManager) CancelEvent(fd int, ev IOEvent) error {
	row := m.fds.peek(fd)
	if row == nil {
		return ErrNoSuchFD
	}
	row.mu.Lock()
	ctx := row.contextFor(ev)
	if ctx == nil || ctx.empty() {
		row.mu.Unlock()
		return ErrNoSuchEvent
	}
	fired := *ctx
	*ctx = eventContext{}
	row.events &^= ev
	remaining := row.events
	row.mu.Unlock()

	m.pendingEvents.Add(-1)
	err := m.rearm(fd, remaining)
	fired.fire(m.Scheduler)
	return err
}

// CancelAll fires every registered callback on fd then deregisters it
// entirely (spec §4.3 CancelAll).
func (m *IOManager) CancelAll(fd int) error {
	row := m.fds.peek(fd)
	if row == nil {
		return ErrNoSuchFD
	}
	row.mu.Lock()
	var toFire []eventContext
	had := row.events
	if !row.read.empty() {
		toFire = append(toFire, row.read)
		row.read = eventContext{}
	}
	if !row.write.empty() {
		toFire = append(toFire, row.write)
		row.write = eventContext{}
	}
	row.events = 0
	row.mu.Unlock()

	if had&EventRead != 0 {
		m.pendingEvents.Add(-1)
	}
	if had&EventWrite != 0 {
		m.pendingEvents.Add(-1)
	}
	_ = m.poller.del(fd)
	m.fds.clear(fd)
	for _, ec := range toFire {
		ec.fire(m.Scheduler)
	}
	return nil
}

// AddTimer delegates to the IOManager's TimerManager.
func (m *IOManager) AddTimer(d time.Duration, fn func(), recurring bool) *Timer {
	return m.timers.AddTimer(d, fn, recurring)
}

// AddConditionTimer delegates to the IOManager's TimerManager.
func (m *IOManager) AddConditionTimer(d time.Duration, fn func(), cond any, recurring bool) *Timer {
	return m.timers.AddConditionTimer(d, fn, cond, recurring)
}

func (m *IOManager) rearm(fd int, remaining IOEvent) error {
	var err error
	if remaining == 0 {
		err = m.poller.del(fd)
	} else {
		err = m.poller.mod(fd, remaining)
	}
	if err != nil {
		logSystemError("epoll_ctl", fd, err)
		return wrapSystem("epoll_ctl", fd, err)
	}
	return nil
}

// idleStep is installed as Scheduler.idleStep: one epoll_wait pass (spec
// §4.3 "Idle fiber (override)").
func (m *IOManager) idleStep(w *worker) {
	timeout := m.cfg.maxTimeout
	if deadline, ok := m.timers.NextDeadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	timeoutMs := int(timeout / time.Millisecond)
	if timeoutMs < 0 {
		timeoutMs = 0
	}

	var buf [64]polledEvent
	var n int
	var err error
	runSyscallLocked(func() { n, err = m.poller.wait(timeoutMs, buf[:]) })
	if err != nil {
		logSystemError("epoll_wait", -1, err)
	}

	for _, fn := range m.timers.ListExpired(time.Now()) {
		fn := fn
		m.enqueueInternal(NewTask(fn))
	}

	for i := 0; i < n; i++ {
		ev := buf[i]
		if ev.fd == m.wake.readFD() {
			m.wake.drain()
			continue
		}
		m.dispatchFD(ev.fd, ev.events)
	}
}

func (m *IOManager) dispatchFD(fd int, events IOEvent) {
	row := m.fds.peek(fd)
	if row == nil {
		return
	}

	row.mu.Lock()
	triggered := events & row.events
	if events&(eventError|eventHangup) != 0 {
		triggered = row.events // EPOLLERR/EPOLLHUP imply both READ and WRITE
	}
	var toFire []eventContext
	if triggered&EventRead != 0 && !row.read.empty() {
		toFire = append(toFire, row.read)
		row.read = eventContext{}
		row.events &^= EventRead
	}
	if triggered&EventWrite != 0 && !row.write.empty() {
		toFire = append(toFire, row.write)
		row.write = eventContext{}
		row.events &^= EventWrite
	}
	remaining := row.events
	row.mu.Unlock()

	for range toFire {
		m.pendingEvents.Add(-1)
	}
	_ = m.rearm(fd, remaining)
	for _, ec := range toFire {
		ec.fire(m.Scheduler)
	}
}

// Close releases the poller and self-pipe. Call after Stop.
func (m *IOManager) Close() error {
	_ = m.wake.close()
	return m.poller.close()
}

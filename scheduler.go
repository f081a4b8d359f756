package fiberio

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// NewTask constructs a Task wrapping a plain callable, eligible to run on
// any worker. Prefer this (or NewFiberTask) over a bare Task{} literal,
// since the zero value of TargetThread is 0 (a specific worker id), not
// AnyThread.
func NewTask(callable func()) Task {
	return Task{Callable: callable, TargetThread: AnyThread}
}

// NewFiberTask constructs a Task wrapping an already-built Fiber, eligible
// to run on any worker.
func NewFiberTask(f *Fiber) Task {
	return Task{Fiber: f, TargetThread: AnyThread}
}

// Scheduler is an M:N dispatcher: it multiplexes Fibers and callables over
// a fixed pool of worker goroutines (optionally including the caller),
// following spec §4.2. IOManager embeds and specializes it (tickle,
// idle behavior, quiescence hook) rather than subclassing it. Go has no
// inheritance, so the "virtual idle fiber" and "virtual tickle" of the
// source become function fields installed at construction, the same
// pattern the corpus uses for pluggable hooks.
type Scheduler struct {
	cfg *Config

	mu    sync.Mutex
	queue *taskQueue

	state    *fastState
	stopping atomic.Bool

	activeThreads atomic.Int32
	idleThreads   atomic.Int32
	tasksExecuted atomic.Int64
	tickCount     atomic.Int64

	workers []*worker
	group   errgroup.Group

	fiberPool sync.Pool

	// tickle wakes at most one idle worker. Base: no-op (spinning idle
	// fiber notices on its own). IOManager: writes to the wake eventfd.
	tickle func()

	// tickleAll wakes every worker, used by Stop to break every idle
	// worker out of its idle fiber so it can observe the stopping flag.
	// Base: calls tickle once per worker. IOManager overrides with a
	// single broadcast-style wake.
	tickleAll func()

	// idleStep performs one pass of idle-fiber work for worker w. Base:
	// a tight spin (spec §4.2: "spinning is acceptable for the base
	// class"). IOManager: one epoll_wait pass.
	idleStep func(w *worker)

	// stoppingHook reports additional subclass-specific quiescence
	// conditions (IOManager: pending_events == 0 and no pending timers).
	stoppingHook func() bool
}

// worker is one dispatch-loop participant: either a spawned goroutine or,
// in use-caller mode, the constructing goroutine itself (run from Stop).
type worker struct {
	id        int
	sched     *Scheduler
	idleFiber *Fiber
}

// NewScheduler constructs a Scheduler per spec §4.2 Construct. Schedule is
// usable immediately, before Start.
func NewScheduler(opts ...Option) *Scheduler {
	cfg := resolveConfig(opts)
	s := &Scheduler{
		cfg:          cfg,
		queue:        newTaskQueue(),
		state:        newFastState(SchedulerCreated),
		workers:      make([]*worker, cfg.workers),
		tickle:       func() {},
		stoppingHook: func() bool { return true },
	}
	s.tickleAll = func() {
		for i := 0; i < s.cfg.workers; i++ {
			s.tickle()
		}
	}
	s.idleStep = baseIdleStep
	return s
}

func baseIdleStep(w *worker) {
	runtime.Gosched()
}

// String implements fmt.Stringer, surfacing the scheduler's diagnostic
// name (sylar::Scheduler(name) in the original source).
func (s *Scheduler) String() string {
	return fmt.Sprintf("Scheduler(%s)", s.cfg.name)
}

// Start spawns thread_count - (use_caller ? 1 : 0) worker goroutines.
// Idempotent: calling Start when already started is a no-op. Calling Start
// from within a fiber running on one of this scheduler's own workers would
// deadlock that worker waiting on its own dispatch loop, so it is rejected
// with ErrReentrantRun instead.
func (s *Scheduler) Start() error {
	if CurrentScheduler() == s {
		return ErrReentrantRun
	}
	if !s.state.TryTransition(SchedulerCreated, SchedulerRunning) {
		return nil
	}
	first := 0
	if s.cfg.useCaller {
		first = 1
	}
	for i := first; i < s.cfg.workers; i++ {
		w := &worker{id: i, sched: s}
		s.workers[i] = w
		s.group.Go(func() error {
			w.dispatchLoop()
			return nil
		})
	}
	logLifecycle(s.cfg.name, "started")
	return nil
}

// Schedule appends a task to the FIFO under the queue lock; if the queue
// was empty it tickles one idle worker. An explicit targetThread argument
// overrides t.TargetThread. Schedule rejects brand-new external work once
// the scheduler is stopping; see enqueueInternal for re-enqueuing work that
// was already accepted before Stop was called.
func (s *Scheduler) Schedule(t Task, targetThread ...int) error {
	if len(targetThread) > 0 {
		t.TargetThread = targetThread[0]
	}
	if s.stopping.Load() {
		return ErrAlreadyStopped
	}
	s.enqueueInternal(t)
	return nil
}

// enqueueInternal appends t to the FIFO unconditionally, bypassing the
// stopping guard Schedule enforces. Stop drains the queue by running the
// dispatch loop to quiescence after setting stopping=true; a fiber that
// yields, a timer that fires, or an fd event that triggers during that
// drain is work the scheduler already accepted before Stop was called, not
// new external work, so it must still be re-enqueued or it is silently
// lost (and, for a yielded fiber, leaked: it never reaches FiberTerm).
func (s *Scheduler) enqueueInternal(t Task) {
	s.mu.Lock()
	wasEmpty := s.queue.Length() == 0
	s.queue.Push(t)
	s.mu.Unlock()
	if wasEmpty {
		s.tickle()
	}
}

// ScheduleBatch appends every task in ts under a single lock acquisition.
func (s *Scheduler) ScheduleBatch(ts []Task) error {
	if s.stopping.Load() {
		return ErrAlreadyStopped
	}
	s.mu.Lock()
	wasEmpty := s.queue.Length() == 0
	for _, t := range ts {
		s.queue.Push(t)
	}
	s.mu.Unlock()
	if wasEmpty && len(ts) > 0 {
		s.tickle()
	}
	return nil
}

// Stop sets the stopping flag and tickles every worker. If use_caller was
// configured, the calling goroutine now runs worker 0's dispatch loop
// until quiescent. Stop then joins every other worker. The scheduler is
// not restartable once Stop returns.
func (s *Scheduler) Stop() error {
	if !s.stopping.CompareAndSwap(false, true) {
		return ErrAlreadyStopped
	}
	s.state.Store(SchedulerStopping)
	s.tickleAll()
	if s.cfg.useCaller {
		w := &worker{id: 0, sched: s}
		s.workers[0] = w
		w.dispatchLoop()
	}
	_ = s.group.Wait()
	s.state.Store(SchedulerStopped)
	logLifecycle(s.cfg.name, "stopped")
	return nil
}

// Metrics is a point-in-time snapshot of scheduler activity.
type Metrics struct {
	ActiveThreads int32
	IdleThreads   int32
	PendingEvents int32
	QueueDepth    int
	TasksExecuted int64
	TickCount     int64
}

// Snapshot returns the current Metrics for this scheduler.
func (s *Scheduler) Snapshot(pendingEvents int32) Metrics {
	s.mu.Lock()
	depth := s.queue.Length()
	s.mu.Unlock()
	return Metrics{
		ActiveThreads: s.activeThreads.Load(),
		IdleThreads:   s.idleThreads.Load(),
		PendingEvents: pendingEvents,
		QueueDepth:    depth,
		TasksExecuted: s.tasksExecuted.Load(),
		TickCount:     s.tickCount.Load(),
	}
}

func (s *Scheduler) quiescent() bool {
	s.mu.Lock()
	empty := s.queue.Length() == 0
	s.mu.Unlock()
	return empty && s.activeThreads.Load() == 0 && s.stoppingHook()
}

func (s *Scheduler) popTask(workerID int) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.PopFor(workerID)
}

func (s *Scheduler) acquireFiber(callable func()) *Fiber {
	if v := s.fiberPool.Get(); v != nil {
		f := v.(*Fiber)
		f.Reset(callable)
		return f
	}
	return NewFiber(callable, s.cfg.stackSize, true)
}

func (s *Scheduler) releaseFiber(f *Fiber) {
	if f.State() == FiberTerm {
		s.fiberPool.Put(f)
	}
}

// dispatchLoop is the body of spec §4.2's per-worker cycle: seek, execute,
// idle.
func (w *worker) dispatchLoop() {
	currentWorkerAnchor.set(w)
	defer currentWorkerAnchor.clear()

	for {
		if w.sched.stopping.Load() && w.sched.quiescent() {
			return
		}

		task, ok := w.sched.popTask(w.id)
		if !ok {
			w.goIdle()
			continue
		}
		w.execute(task)
	}
}

func (w *worker) execute(t Task) {
	w.sched.activeThreads.Add(1)
	defer w.sched.activeThreads.Add(-1)

	fib := t.Fiber
	if fib == nil {
		fib = w.sched.acquireFiber(t.Callable)
	}

	state := fib.Resume()
	w.sched.tasksExecuted.Add(1)

	switch state {
	case FiberReady:
		w.sched.enqueueInternal(Task{Fiber: fib, TargetThread: t.TargetThread})
	case FiberTerm:
		w.sched.releaseFiber(fib)
	}
}

func (w *worker) goIdle() {
	w.sched.idleThreads.Add(1)
	defer w.sched.idleThreads.Add(-1)

	callable := func() { w.sched.idleStep(w) }
	if w.idleFiber == nil {
		w.idleFiber = NewFiber(callable, w.sched.cfg.stackSize, true)
	} else {
		w.idleFiber.Reset(callable)
	}
	w.idleFiber.Resume()
	w.sched.tickCount.Add(1)
}

// CurrentScheduler returns the Scheduler owning the calling goroutine's
// worker, or nil if the calling goroutine is not a scheduler worker.
func CurrentScheduler() *Scheduler {
	if w, ok := currentWorkerAnchor.get(); ok {
		return w.sched
	}
	return nil
}

